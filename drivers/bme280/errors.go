package bme280

import "errors"

var (
	// Sentinel errors (TinyGo-safe; no fmt)
	ErrUnsupportedChip = errors.New("bme280: unsupported chip")
	ErrBus             = errors.New("bme280: bus error")
	ErrTimeout         = errors.New("bme280: timeout")
	ErrNotCalibrated   = errors.New("bme280: not calibrated")
	ErrNotReady        = errors.New("bme280: not ready")
	ErrInvalidConfig   = errors.New("bme280: invalid config")
	ErrBadCalibration  = errors.New("bme280: bad calibration block")
)

// BusError wraps a transport failure with the operation and register involved.
// It matches ErrBus under errors.Is; the transport error is kept as-is.
type BusError struct {
	Op  string // "read" or "write"
	Reg uint8
	Err error
}

func (e *BusError) Error() string {
	s := "bme280: " + e.Op + " 0x" + hex8(e.Reg)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *BusError) Unwrap() error { return e.Err }

func (e *BusError) Is(target error) bool { return target == ErrBus }

// ChipError reports the identity byte that did not match a supported variant.
type ChipError struct {
	ID uint8
}

func (e *ChipError) Error() string {
	return ErrUnsupportedChip.Error() + " (id 0x" + hex8(e.ID) + ")"
}

func (e *ChipError) Unwrap() error { return ErrUnsupportedChip }

func hex8(b uint8) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0x0F]})
}
