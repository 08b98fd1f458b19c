//go:build linux

package hostbus

import (
	"io"

	"envcode-go/drivers/bme280"

	"github.com/go-daq/smbus"
	"golang.org/x/xerrors"
)

// OpenSMBus opens /dev/i2c-<bus> and probes a sensor at addr. The returned
// closer releases the device file.
func OpenSMBus(bus int, addr uint8, cfg bme280.Config) (*bme280.Device, io.Closer, error) {
	c, err := smbus.Open(bus, addr)
	if err != nil {
		return nil, nil, xerrors.Errorf("smbus.Open(%d, 0x%02x): %w", bus, addr, err)
	}
	d, err := bme280.New(&SMBus{conn: c, addr: addr}, bme280.Sleep, cfg)
	if err != nil {
		c.Close()
		return nil, nil, xerrors.Errorf("bme280.New: %w", err)
	}
	return d, c, nil
}
