package hostbus

import (
	"io"

	"envcode-go/drivers/bme280"

	"golang.org/x/xerrors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"tinygo.org/x/drivers"
)

// PeriphI2C exposes a periph I²C bus as a tinygo drivers.I2C, so the same
// bus can back bme280.NewI2C and the HAL bus factories.
type PeriphI2C struct {
	Bus i2c.Bus
}

var _ drivers.I2C = PeriphI2C{}

func (p PeriphI2C) Tx(addr uint16, w, r []byte) error {
	if err := p.Bus.Tx(addr, w, r); err != nil {
		return xerrors.Errorf("%s: tx 0x%02x: %w", p.Bus, addr, err)
	}
	return nil
}

// OpenPeriph opens the named I²C bus through the periph registry ("" picks
// the first one) and probes a sensor at addr. periph's host.Init must have
// run. The returned closer releases the bus.
func OpenPeriph(name string, addr uint16, cfg bme280.Config) (*bme280.Device, io.Closer, error) {
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, nil, xerrors.Errorf("i2creg.Open(%q): %w", name, err)
	}
	d, err := bme280.New(bme280.NewI2C(PeriphI2C{Bus: b}, addr), bme280.Sleep, cfg)
	if err != nil {
		b.Close()
		return nil, nil, xerrors.Errorf("bme280.New: %w", err)
	}
	return d, b, nil
}
