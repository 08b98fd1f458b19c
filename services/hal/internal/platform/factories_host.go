// services/hal/internal/platform/factories_host.go
//go:build !rp2040 && !rp2350

package platform

import (
	"envcode-go/drivers/bme280"
	"envcode-go/drivers/bme280/bme280sim"
	"envcode-go/services/hal/internal/halcore"
)

// ----------------------------- I²C (host) ------------------------------------

// DefaultI2CFactory creates emulated host I²C buses: "i2c0" carries a BME280
// at the primary address and "i2c1" a BMP280 at the secondary one.
func DefaultI2CFactory() halcore.I2CBusFactory {
	env := bme280sim.New(bme280.ChipIDBME280)

	baro := bme280sim.New(bme280.ChipIDBMP280)
	baro.Address = bme280.AddressSecondary

	return halcore.I2CBuses{
		"i2c0": env.I2C(),
		"i2c1": baro.I2C(),
	}
}
