package bme280

import (
	"time"

	"tinygo.org/x/drivers"
)

// Transport is the register-level bus capability the driver consumes.
// Both operations start at reg and auto-increment for multi-byte transfers.
type Transport interface {
	ReadRegister(reg uint8, buf []byte) error
	WriteRegister(reg uint8, data []byte) error
}

// Delayer busy-waits (or sleeps) for the given number of milliseconds.
type Delayer interface {
	DelayMs(ms uint32)
}

// DelayFunc adapts a plain function to Delayer.
type DelayFunc func(ms uint32)

func (f DelayFunc) DelayMs(ms uint32) { f(ms) }

// Sleep is a Delayer backed by time.Sleep.
var Sleep Delayer = DelayFunc(func(ms uint32) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
})

// ---- I2C ----

// I2C adapts a tinygo drivers.I2C bus to Transport.
//
// NOTE: Tx MUST perform a write followed by a repeated-start read when both
// w and r are provided, without releasing the bus.
type I2C struct {
	bus  drivers.I2C
	addr uint16
	w    [2 * dataTPHLen]byte
}

// NewI2C binds a transport to addr (AddressPrimary if zero).
func NewI2C(bus drivers.I2C, addr uint16) *I2C {
	if addr == 0 {
		addr = AddressPrimary
	}
	return &I2C{bus: bus, addr: addr}
}

// Address returns the 7-bit device address.
func (t *I2C) Address() uint16 { return t.addr }

func (t *I2C) ReadRegister(reg uint8, buf []byte) error {
	t.w[0] = reg
	return t.bus.Tx(t.addr, t.w[:1], buf)
}

// WriteRegister sends (reg, value) pairs; the device does not auto-increment
// on writes, so each byte carries its own address.
func (t *I2C) WriteRegister(reg uint8, data []byte) error {
	w := pairs(t.w[:0], reg, data, 0xFF)
	return t.bus.Tx(t.addr, w, nil)
}

// ---- SPI ----

// SPI adapts a tinygo drivers.SPI bus to Transport. Register bit 7 selects the
// direction: set for reads, cleared for writes.
type SPI struct {
	bus drivers.SPI
	// CS drives chip select; level false selects the device. Nil when the bus
	// handles chip select itself.
	CS func(level bool)

	w [1 + calibTPLen]byte
	r [1 + calibTPLen]byte
}

func NewSPI(bus drivers.SPI, cs func(level bool)) *SPI {
	if cs != nil {
		cs(true)
	}
	return &SPI{bus: bus, CS: cs}
}

func (t *SPI) ReadRegister(reg uint8, buf []byte) error {
	n := len(buf) + 1
	var w, r []byte
	if n <= len(t.w) {
		w, r = t.w[:n], t.r[:n]
		for i := range w {
			w[i] = 0
		}
	} else {
		w, r = make([]byte, n), make([]byte, n)
	}
	w[0] = reg | 0x80
	t.selectChip(false)
	err := t.bus.Tx(w, r)
	t.selectChip(true)
	if err != nil {
		return err
	}
	copy(buf, r[1:])
	return nil
}

func (t *SPI) WriteRegister(reg uint8, data []byte) error {
	var w []byte
	if 2*len(data) <= len(t.w) {
		w = t.w[:0]
	}
	w = pairs(w, reg, data, 0x7F)
	t.selectChip(false)
	err := t.bus.Tx(w, nil)
	t.selectChip(true)
	return err
}

func (t *SPI) selectChip(level bool) {
	if t.CS != nil {
		t.CS(level)
	}
}

// pairs appends (reg+i)&mask, data[i] for every byte of data.
func pairs(dst []byte, reg uint8, data []byte, mask uint8) []byte {
	for i, b := range data {
		dst = append(dst, (reg+uint8(i))&mask, b)
	}
	return dst
}
