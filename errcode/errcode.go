package errcode

import (
	"context"
	"errors"

	"envcode-go/drivers/bme280"
)

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK                Code = "ok"
	Busy              Code = "busy"
	Unsupported       Code = "unsupported"
	InvalidParams     Code = "invalid_params"
	InvalidPayload    Code = "invalid_payload"
	InvalidPeriod     Code = "invalid_period"
	InvalidCapAddr    Code = "invalid_capability_address"
	UnknownCapability Code = "unknown_capability"
	UnknownDeviceType Code = "unknown_device_type"
	NoAdaptor         Code = "no_adaptor"

	MissingBusRef Code = "missing_bus_ref"
	UnknownBus    Code = "unknown_bus"
	Timeout       Code = "timeout"

	// Sensor-level failures.
	IOError         Code = "io_error"
	UnsupportedChip Code = "unsupported_chip"
	NotCalibrated   Code = "not_calibrated"
	NotReady        Code = "not_ready"
	BadCalibration  Code = "bad_calibration"

	Error Code = "error" // generic fallback
)

// E wraps a Code with an operation name and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap attaches a code classified from err.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: MapDriverErr(err), Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	return MapDriverErr(err)
}

// MapDriverErr classifies low-level driver errors.
func MapDriverErr(err error) Code {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, bme280.ErrUnsupportedChip):
		return UnsupportedChip
	case errors.Is(err, bme280.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return Timeout
	case errors.Is(err, bme280.ErrNotCalibrated):
		return NotCalibrated
	case errors.Is(err, bme280.ErrNotReady):
		return NotReady
	case errors.Is(err, bme280.ErrBadCalibration):
		return BadCalibration
	case errors.Is(err, bme280.ErrInvalidConfig):
		return InvalidParams
	case errors.Is(err, bme280.ErrBus):
		return IOError
	default:
		return Error
	}
}
