package types

// ------------------------
// Environmental sensing
// ------------------------

// EnvInfo is the retained info document of temperature, pressure and
// humidity capabilities.
type EnvInfo struct {
	Sensor string `json:"sensor"` // "bme280", "bmp280"
	ChipID uint8  `json:"chip_id"`
	Addr   uint16 `json:"addr"` // I2C address
	Bus    string `json:"bus"`  // "i2c0", ...
	Unit   string `json:"unit"`
}

// Value payloads appear on hal/capability/<kind>/<id>/value.
// Fixed-point, small types to suit TinyGo.

type TemperatureValue struct {
	// Tenths of °C (e.g. 231 => 23.1°C).
	DeciC int16 `json:"deci_c"`
	TsMs  int64 `json:"ts_ms"`
}

type PressureValue struct {
	// Whole pascals (e.g. 100653 => 1006.53 hPa).
	Pa   uint32 `json:"pa"`
	TsMs int64  `json:"ts_ms"`
}

type HumidityValue struct {
	// Hundredths of %RH (0..10000 for 0..100.00%).
	RHx100 uint16 `json:"rh_x100"`
	TsMs   int64  `json:"ts_ms"`
}

// EnvConfigure is the payload for control/configure on any capability of an
// environmental sensor. Zero fields keep the current setting; oversampling
// values are sample counts (0 keeps, 1..16), -1 skips the channel.
type EnvConfigure struct {
	OversamplingT int    `json:"oversampling_t,omitempty"`
	OversamplingP int    `json:"oversampling_p,omitempty"`
	OversamplingH int    `json:"oversampling_h,omitempty"`
	Filter        int    `json:"filter,omitempty"` // IIR coefficient 0..16 (-1 for off)
	StandbyMs     int    `json:"standby_ms,omitempty"`
	Mode          string `json:"mode,omitempty"` // "forced" or "normal"; "" keeps
}

// EnvConfigured is the reply to control/configure.
type EnvConfigured struct {
	OK            bool   `json:"ok"`
	OversamplingT int    `json:"oversampling_t"`
	OversamplingP int    `json:"oversampling_p"`
	OversamplingH int    `json:"oversampling_h"`
	Filter        int    `json:"filter"`
	Mode          string `json:"mode"`
	StandbyMs     int    `json:"standby_ms"` // 1 for 0.5 ms, 62 for 62.5 ms
	MeasureUs     int    `json:"measure_us"`
}

// Calibration is the reply to control/calibration: the trimming block as
// read from the sensor, unscaled.
type Calibration struct {
	T [3]int32 `json:"t"`
	P [9]int32 `json:"p"`
	H [6]int32 `json:"h"` // zero on BMP280
}
