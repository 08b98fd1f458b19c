// services/hal/internal/consts/consts.go
package consts

// Topic tokens
const (
	TokConfig     = "config"
	TokHAL        = "hal"
	TokCapability = "capability"
	TokInfo       = "info"
	TokState      = "state"
	TokValue      = "value"
	TokControl    = "control"
)

// Control verbs
const (
	CtrlReadNow     = "read_now"
	CtrlSetRate     = "set_rate"
	CtrlConfigure   = "configure"
	CtrlCalibration = "calibration"
)

// Bus reference types
const (
	BusI2C = "i2c"
)
