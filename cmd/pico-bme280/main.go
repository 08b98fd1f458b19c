//go:build rp2040 || rp2350

// Command pico-bme280 drives a BME280 on I2C0 with the blocking driver API
// and prints one reading per second over USB serial.
package main

import (
	"machine"
	"time"

	"envcode-go/drivers/bme280"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("[pico-bme280] boot")

	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.I2C0_SDA_PIN,
		SCL:       machine.I2C0_SCL_PIN,
	}); err != nil {
		println("[pico-bme280] i2c configure:", err.Error())
	}

	var dev *bme280.Device
	for {
		d, err := bme280.New(bme280.NewI2C(i2c, bme280.AddressPrimary), nil, bme280.DefaultConfig())
		if err == nil {
			dev = d
			break
		}
		println("[pico-bme280] init:", err.Error())
		time.Sleep(time.Second)
	}
	println("[pico-bme280] found", dev.Variant().String(), "id", dev.ChipID())

	for {
		raw, err := dev.ReadRaw()
		if err != nil {
			println("[pico-bme280] read:", err.Error())
			time.Sleep(time.Second)
			continue
		}
		m, err := bme280.Compensate(raw, dev.Calibration())
		if err != nil {
			println("[pico-bme280] compensate:", err.Error())
			time.Sleep(time.Second)
			continue
		}
		println("[pico-bme280]",
			"dC:", m.DeciCelsius(),
			"Pa:", m.Pascal(),
			"RHx100:", m.RHx100(),
			"adcT:", raw.Temperature)
		time.Sleep(time.Second)
	}
}
