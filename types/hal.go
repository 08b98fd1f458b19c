package types

import "time"

// ------------------------
// Common HAL state (retained)
// ------------------------

type HALState struct {
	Level  string    `json:"level"`  // "idle", "ready", "error", "stopped"
	Status string    `json:"status"` // short code
	Error  string    `json:"error,omitempty"`
	TS     time.Time `json:"ts"`
}

// Link is the link/state reported for a capability.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

type CapabilityState struct {
	Link  Link      `json:"link"`
	TS    time.Time `json:"ts"`
	Error string    `json:"error,omitempty"` // machine-readable short code
}

// ------------------------
// Capability kinds
// ------------------------

type Kind string

const (
	KindTemperature Kind = "temperature"
	KindPressure    Kind = "pressure"
	KindHumidity    Kind = "humidity"
)

// ------------------------
// HAL configuration (topic "config/hal", retained)
// ------------------------

type HALConfig struct {
	Devices []HALDevice `json:"devices"`
}

type HALDevice struct {
	ID     string `json:"id"`   // logical device id
	Type   string `json:"type"` // e.g. "bme280"
	Params any    `json:"params,omitempty"`
	BusRef BusRef `json:"bus_ref,omitempty"`
}

// BusRef names a bus configured by the platform layer.
type BusRef struct {
	Type string `json:"type"` // "i2c"
	ID   string `json:"id"`   // "i2c0"
}

// ------------------------
// Controls and replies
// ------------------------

// SetRate is the payload for control/set_rate.
type SetRate struct {
	Period time.Duration `json:"period"`
}

type SetRateAck struct {
	OK     bool          `json:"ok"`
	Period time.Duration `json:"period"`
}

type ReadNowAck struct {
	OK bool `json:"ok"`
}

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
