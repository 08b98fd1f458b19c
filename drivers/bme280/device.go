// Package bme280 provides a driver for the Bosch BME280 temperature, pressure
// and humidity sensor and its humidity-less sibling, the BMP280.
//
// The driver offers two call conventions over the same register protocol:
//
//	m, err := d.Measure()        // blocking: trigger, wait, read, compensate
//
//	wait, err := d.Trigger()     // split-phase: start a conversion (fast)
//	err = d.Collect(&s)          // returns ErrNotReady while converting
//
// The split-phase form never sleeps and suits cooperative schedulers such as
// the HAL measure worker. Compensation is exposed as the pure functions
// Compensate (integer) and CompensateFloat.
package bme280

import "time"

// Variant identifies the chip family behind a chip-ID value.
type Variant uint8

const (
	VariantUnknown Variant = iota
	VariantBMP280
	VariantBME280
)

func (v Variant) HasHumidity() bool { return v == VariantBME280 }

func (v Variant) String() string {
	switch v {
	case VariantBMP280:
		return "bmp280"
	case VariantBME280:
		return "bme280"
	default:
		return "unknown"
	}
}

// VariantOf maps a chip-ID register value to a Variant.
func VariantOf(id uint8) Variant {
	switch id {
	case ChipIDBME280:
		return VariantBME280
	case ChipIDBMP280, ChipIDBMP280S1, ChipIDBMP280S2:
		return VariantBMP280
	default:
		return VariantUnknown
	}
}

// Sample is the result of a split-phase Collect.
type Sample struct {
	Raw   Raw
	Fixed MeasurementsFixed
}

// Device is a BME280/BMP280 bound to one Transport. It is not safe for
// concurrent use.
type Device struct {
	t     Transport
	delay Delayer
	cfg   Config

	chipID  uint8
	variant Variant
	cal     Calibration

	// Fixed buffers to avoid per-call heap allocations.
	buf [calibTPLen]byte
	w   [1]byte
}

// New identifies the chip, soft-resets it, reads the calibration block and
// writes cfg. A nil delay selects Sleep.
func New(t Transport, delay Delayer, cfg Config) (*Device, error) {
	if t == nil {
		return nil, ErrInvalidConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if delay == nil {
		delay = Sleep
	}
	d := &Device{t: t, delay: delay, cfg: cfg.withDefaults()}
	if err := d.Reset(); err != nil {
		return nil, err
	}
	return d, nil
}

// Introspection.
func (d *Device) ChipID() uint8            { return d.chipID }
func (d *Device) Variant() Variant         { return d.variant }
func (d *Device) Config() Config           { return d.cfg }
func (d *Device) Calibrated() bool         { return d.cal.valid }
func (d *Device) Calibration() Calibration { return d.cal }

// Reset re-runs the full start-up sequence: identify, soft reset, wait for
// the NVM copy, read calibration, write configuration. On failure the device
// is left uncalibrated.
func (d *Device) Reset() error {
	d.cal = Calibration{}

	id, err := d.readReg(regChipID)
	if err != nil {
		return err
	}
	v := VariantOf(id)
	if v == VariantUnknown {
		return &ChipError{ID: id}
	}
	d.chipID, d.variant = id, v

	if err := d.writeReg(regReset, resetCommand); err != nil {
		return err
	}
	d.delay.DelayMs(2)
	if err := d.waitStatus(statusImUpdate | statusMeasuring); err != nil {
		return err
	}

	cal, err := d.readCalibration()
	if err != nil {
		return err
	}
	if err := d.writeConfig(d.cfg); err != nil {
		return err
	}
	d.cal = cal
	return nil
}

// Configure rewrites the control registers without repeating identification
// or calibration.
func (d *Device) Configure(cfg Config) error {
	if !d.cal.valid {
		return ErrNotCalibrated
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.withDefaults()
	if err := d.writeConfig(cfg); err != nil {
		return err
	}
	d.cfg = cfg
	return nil
}

// ---- Blocking convention ----

// ReadRaw triggers a conversion when in forced mode, waits for it to finish
// and burst-reads the data block.
func (d *Device) ReadRaw() (Raw, error) {
	if !d.cal.valid {
		return Raw{}, ErrNotCalibrated
	}
	if d.cfg.Mode == ModeForced {
		if err := d.trigger(); err != nil {
			return Raw{}, err
		}
		d.delay.DelayMs(ceilMs(MeasurementTime(d.cfg, d.variant.HasHumidity())))
		if err := d.waitStatus(statusMeasuring); err != nil {
			return Raw{}, err
		}
	}
	return d.readRaw()
}

// Measure performs a full cycle and compensates in floating point.
func (d *Device) Measure() (Measurements, error) {
	raw, err := d.ReadRaw()
	if err != nil {
		return Measurements{}, err
	}
	return CompensateFloat(raw, d.cal)
}

// MeasureFixed performs a full cycle and compensates with integer maths.
func (d *Device) MeasureFixed() (MeasurementsFixed, error) {
	raw, err := d.ReadRaw()
	if err != nil {
		return MeasurementsFixed{}, err
	}
	return Compensate(raw, d.cal)
}

// ---- Split-phase convention ----

// Trigger starts a forced conversion and returns the datasheet maximum
// conversion time. In normal mode nothing is written.
func (d *Device) Trigger() (time.Duration, error) {
	if !d.cal.valid {
		return 0, ErrNotCalibrated
	}
	if d.cfg.Mode == ModeForced {
		if err := d.trigger(); err != nil {
			return 0, err
		}
	}
	return MeasurementTime(d.cfg, d.variant.HasHumidity()), nil
}

// Collect fetches and compensates the latest conversion. In forced mode it
// returns ErrNotReady while the device is still measuring.
func (d *Device) Collect(out *Sample) error {
	if !d.cal.valid {
		return ErrNotCalibrated
	}
	if d.cfg.Mode == ModeForced {
		st, err := d.readReg(regStatus)
		if err != nil {
			return err
		}
		if st&statusMeasuring != 0 {
			return ErrNotReady
		}
	}
	raw, err := d.readRaw()
	if err != nil {
		return err
	}
	m, err := Compensate(raw, d.cal)
	if err != nil {
		return err
	}
	if out != nil {
		out.Raw = raw
		out.Fixed = m
	}
	return nil
}

// ---- Protocol core ----

func (d *Device) trigger() error {
	return d.writeReg(regCtrlMeas, d.cfg.ctrlMeas(ModeForced))
}

// writeConfig enters sleep so that config is accepted, then writes ctrl_hum,
// config and finally ctrl_meas, which latches ctrl_hum.
func (d *Device) writeConfig(cfg Config) error {
	if err := d.writeReg(regCtrlMeas, cfg.ctrlMeas(ModeSleep)); err != nil {
		return err
	}
	if d.variant.HasHumidity() {
		if err := d.writeReg(regCtrlHum, cfg.ctrlHum()); err != nil {
			return err
		}
	}
	if err := d.writeReg(regConfig, cfg.config()); err != nil {
		return err
	}
	mode := ModeSleep
	if cfg.Mode == ModeNormal {
		mode = ModeNormal
	}
	return d.writeReg(regCtrlMeas, cfg.ctrlMeas(mode))
}

func (d *Device) readCalibration() (Calibration, error) {
	tp := d.buf[:calibTPLen]
	if err := d.read(regCalibTP, tp); err != nil {
		return Calibration{}, err
	}
	if !d.variant.HasHumidity() {
		return ParseCalibration(tp, nil)
	}
	var h [calibHLen]byte
	if err := d.read(regCalibH, h[:]); err != nil {
		return Calibration{}, err
	}
	return ParseCalibration(tp, h[:])
}

func (d *Device) readRaw() (Raw, error) {
	n := dataTPLen
	if d.variant.HasHumidity() {
		n = dataTPHLen
	}
	b := d.buf[:n]
	if err := d.read(regData, b); err != nil {
		return Raw{}, err
	}
	return decodeRaw(b), nil
}

// decodeRaw assembles 20-bit pressure/temperature codes and, for an 8-byte
// block, the 16-bit humidity code.
func decodeRaw(b []byte) Raw {
	r := Raw{
		Pressure:    uint32(b[0])<<12 | uint32(b[1])<<4 | uint32(b[2])>>4,
		Temperature: uint32(b[3])<<12 | uint32(b[4])<<4 | uint32(b[5])>>4,
		Humidity:    HumidityUnavailable,
	}
	if len(b) >= dataTPHLen {
		r.Humidity = uint32(b[6])<<8 | uint32(b[7])
	}
	return r
}

// waitStatus polls STATUS until all bits in mask are clear.
func (d *Device) waitStatus(mask byte) error {
	for i := 0; i < d.cfg.PollLimit; i++ {
		st, err := d.readReg(regStatus)
		if err != nil {
			return err
		}
		if st&mask == 0 {
			return nil
		}
		d.delay.DelayMs(d.cfg.PollDelayMs)
	}
	return ErrTimeout
}

// Register I/O; transport failures are wrapped as BusError.

func (d *Device) readReg(reg uint8) (byte, error) {
	if err := d.read(reg, d.buf[:1]); err != nil {
		return 0, err
	}
	return d.buf[0], nil
}

func (d *Device) read(reg uint8, b []byte) error {
	if err := d.t.ReadRegister(reg, b); err != nil {
		return &BusError{Op: "read", Reg: reg, Err: err}
	}
	return nil
}

func (d *Device) writeReg(reg, val uint8) error {
	d.w[0] = val
	if err := d.t.WriteRegister(reg, d.w[:1]); err != nil {
		return &BusError{Op: "write", Reg: reg, Err: err}
	}
	return nil
}

func ceilMs(t time.Duration) uint32 {
	return uint32((t + time.Millisecond - 1) / time.Millisecond)
}
