// Package bme280sim emulates the register file of a BME280/BMP280 for host
// builds and tests. A Chip satisfies bme280.Transport directly and tinygo's
// drivers.I2C / drivers.SPI through I2C() and SPI().
package bme280sim

import (
	"errors"
	"sync"

	"envcode-go/drivers/bme280"

	"tinygo.org/x/drivers"
)

// Register addresses mirrored from the datasheet.
const (
	regCalibTP  = 0x88
	regChipID   = 0xD0
	regReset    = 0xE0
	regCalibH   = 0xE1
	regCtrlHum  = 0xF2
	regStatus   = 0xF3
	regCtrlMeas = 0xF4
	regConfig   = 0xF5
	regData     = 0xF7

	statusMeasuring = 0x08
	statusImUpdate  = 0x01
)

// Reference values: datasheet temperature/pressure coefficients and a
// typical humidity trimming set.
const (
	RefRawTemperature = 519888
	RefRawPressure    = 415148
	RefRawHumidity    = 28795
)

var ErrNoDevice = errors.New("bme280sim: no device at address")

// ReferenceCalibration returns the coefficient set used by New.
func ReferenceCalibration() bme280.Calibration {
	return bme280.Calibration{
		T1: 27504, T2: 26435, T3: -1000,
		P1: 36477, P2: -10685, P3: 3024, P4: 2855, P5: 140, P6: -7, P7: 15500, P8: -14600, P9: 6000,
		H1: 75, H2: 362, H3: 0, H4: 313, H5: 50, H6: 30,
	}
}

// Write records one register write in arrival order.
type Write struct {
	Reg uint8
	Val uint8
}

// Chip is an emulated sensor. All fields may be changed between operations;
// the zero value is not usable, construct with New.
type Chip struct {
	mu   sync.Mutex
	regs [256]byte

	// Address answered on I2C.
	Address uint16

	// ResetBusyReads is the number of STATUS reads reporting im_update after
	// a soft reset. Negative keeps the bit set forever.
	ResetBusyReads int
	// MeasureBusyReads is the number of STATUS reads reporting measuring
	// after a forced trigger. Negative keeps the bit set forever.
	MeasureBusyReads int

	// FailRead / FailWrite, when non-nil, are returned by the next transfer
	// touching the matching register (any register if FailReg < 0).
	FailRead  error
	FailWrite error
	FailReg   int

	raw      [3]uint32 // temperature, pressure, humidity
	humidity bool
	busy     int
	busyBit  byte

	Writes []Write
	Reads  []uint8 // start register of every read
}

// New returns a chip with the given ID, reference calibration and reference
// raw values latched on the next conversion.
func New(chipID uint8) *Chip {
	c := &Chip{Address: bme280.AddressPrimary, FailReg: -1}
	c.regs[regChipID] = chipID
	c.humidity = bme280.VariantOf(chipID).HasHumidity()
	c.SetCalibration(ReferenceCalibration())
	c.SetRaw(RefRawTemperature, RefRawPressure, RefRawHumidity)
	return c
}

// SetCalibration loads coefficients into the calibration registers.
func (c *Chip) SetCalibration(cal bme280.Calibration) {
	tp, h := cal.Bytes()
	c.mu.Lock()
	copy(c.regs[regCalibTP:], tp[:])
	copy(c.regs[regCalibH:], h[:])
	c.mu.Unlock()
}

// SetCalibrationBytes loads raw calibration register blocks.
func (c *Chip) SetCalibrationBytes(tp, h []byte) {
	c.mu.Lock()
	copy(c.regs[regCalibTP:], tp)
	copy(c.regs[regCalibH:], h)
	c.mu.Unlock()
}

// SetRaw sets the ADC codes published by the next conversion.
func (c *Chip) SetRaw(t, p, h uint32) {
	c.mu.Lock()
	c.raw = [3]uint32{t, p, h}
	c.mu.Unlock()
}

// FailNextRead makes the next read fail with err. Safe while a driver is
// using the chip from another goroutine.
func (c *Chip) FailNextRead(err error) {
	c.mu.Lock()
	c.FailRead, c.FailReg = err, -1
	c.mu.Unlock()
}

// SetMeasureBusy changes MeasureBusyReads under the chip lock.
func (c *Chip) SetMeasureBusy(n int) {
	c.mu.Lock()
	c.MeasureBusyReads = n
	c.mu.Unlock()
}

// Reg returns the current value of a register.
func (c *Chip) Reg(reg uint8) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[reg]
}

// ---- bme280.Transport ----

func (c *Chip) ReadRegister(reg uint8, buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Reads = append(c.Reads, reg)
	if c.FailRead != nil && (c.FailReg < 0 || c.FailReg == int(reg)) {
		err := c.FailRead
		c.FailRead = nil
		return err
	}
	for i := range buf {
		r := reg + uint8(i)
		if r == regStatus {
			buf[i] = c.status()
			continue
		}
		buf[i] = c.regs[r]
	}
	return nil
}

func (c *Chip) WriteRegister(reg uint8, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailWrite != nil && (c.FailReg < 0 || c.FailReg == int(reg)) {
		err := c.FailWrite
		c.FailWrite = nil
		return err
	}
	for i, v := range data {
		c.write(reg+uint8(i), v)
	}
	return nil
}

func (c *Chip) write(reg, v uint8) {
	c.Writes = append(c.Writes, Write{Reg: reg, Val: v})
	switch reg {
	case regReset:
		if v != 0xB6 {
			return
		}
		id := c.regs[regChipID]
		for r := regCtrlHum; r <= regConfig; r++ {
			c.regs[r] = 0
		}
		c.regs[regChipID] = id
		c.busy, c.busyBit = c.ResetBusyReads, statusImUpdate
		if c.busy == 0 {
			c.busyBit = 0
		}
	case regCtrlMeas:
		c.regs[reg] = v
		switch v & 0x03 {
		case 0x01, 0x02:
			c.busy, c.busyBit = c.MeasureBusyReads, statusMeasuring
			if c.busy == 0 {
				c.finish()
			}
		case 0x03:
			c.latch()
		}
	case regCtrlHum, regConfig:
		c.regs[reg] = v
	}
}

// status consumes one busy read.
func (c *Chip) status() byte {
	if c.busyBit == 0 {
		return 0
	}
	if c.busy < 0 {
		return c.busyBit
	}
	if c.busy == 0 {
		c.finish()
		return 0
	}
	c.busy--
	return c.busyBit
}

func (c *Chip) finish() {
	if c.busyBit == statusMeasuring || c.regs[regCtrlMeas]&0x03 != 0 {
		c.latch()
		// Forced mode returns to sleep.
		if c.regs[regCtrlMeas]&0x03 != 0x03 {
			c.regs[regCtrlMeas] &^= 0x03
		}
	}
	c.busyBit = 0
}

// latch publishes the raw values, honouring skipped channels.
func (c *Chip) latch() {
	meas := c.regs[regCtrlMeas]
	t, p, h := c.raw[0], c.raw[1], c.raw[2]
	if meas>>5 == 0 {
		t = 0x80000
	}
	if (meas>>2)&0x07 == 0 {
		p = 0x80000
	}
	if c.regs[regCtrlHum]&0x07 == 0 {
		h = 0x8000
	}
	put20(c.regs[regData:], p)
	put20(c.regs[regData+3:], t)
	if c.humidity {
		c.regs[regData+6] = byte(h >> 8)
		c.regs[regData+7] = byte(h)
	}
}

func put20(b []byte, v uint32) {
	b[0] = byte(v >> 12)
	b[1] = byte(v >> 4)
	b[2] = byte(v<<4) & 0xF0
}

// ---- tinygo drivers.I2C ----

type i2cView struct{ c *Chip }

// I2C exposes the chip as a tinygo drivers.I2C bus with a single device.
func (c *Chip) I2C() drivers.I2C { return i2cView{c} }

func (v i2cView) Tx(addr uint16, w, r []byte) error {
	if addr != v.c.Address {
		return ErrNoDevice
	}
	if len(w) == 0 {
		return nil
	}
	if len(r) > 0 {
		return v.c.ReadRegister(w[0], r)
	}
	// (reg, value) pairs.
	for i := 0; i+1 < len(w); i += 2 {
		if err := v.c.WriteRegister(w[i], w[i+1:i+2]); err != nil {
			return err
		}
	}
	return nil
}

// ---- tinygo drivers.SPI ----

type spiView struct{ c *Chip }

// SPI exposes the chip as a tinygo drivers.SPI bus (mode 0, chip always
// selected).
func (c *Chip) SPI() drivers.SPI { return spiView{c} }

func (v spiView) Tx(w, r []byte) error {
	if len(w) == 0 {
		return nil
	}
	if w[0]&0x80 != 0 {
		if len(r) < len(w) {
			return errors.New("bme280sim: short spi read buffer")
		}
		return v.c.ReadRegister(w[0]|0x80, r[1:len(w)])
	}
	for i := 0; i+1 < len(w); i += 2 {
		if err := v.c.WriteRegister(w[i]|0x80, w[i+1:i+2]); err != nil {
			return err
		}
	}
	return nil
}

func (v spiView) Transfer(b byte) (byte, error) { return 0, nil }
