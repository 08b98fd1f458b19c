package bme280dev

import (
	"time"

	"envcode-go/drivers/bme280"
	"envcode-go/errcode"
	"envcode-go/types"
)

// Params is the device-specific part of a HAL config entry.
//
//	{"addr": 118, "oversampling_p": 16, "filter": 16, "mode": "forced", "period_ms": 2000}
//
// Oversampling values are sample counts (1, 2, 4, 8, 16); -1 skips the
// channel and 0 keeps the default. Filter takes the IIR coefficient
// (2, 4, 8, 16), -1 for off.
type Params struct {
	Addr          int    `json:"addr"`
	OversamplingT int    `json:"oversampling_t"`
	OversamplingP int    `json:"oversampling_p"`
	OversamplingH int    `json:"oversampling_h"`
	Filter        int    `json:"filter"`
	StandbyMs     int    `json:"standby_ms"` // normal mode; 1 selects 0.5 ms, 2000/4000 on BMP280 only
	Mode          string `json:"mode"`       // "forced" (default) or "normal"
	PeriodMs      int    `json:"period_ms"`
}

const (
	defaultPeriod = 2 * time.Second
	modeForced    = "forced"
	modeNormal    = "normal"
)

// config merges p over base for the given chip variant.
func (p Params) config(base bme280.Config, v bme280.Variant) (bme280.Config, error) {
	return applyEnv(base, types.EnvConfigure{
		OversamplingT: p.OversamplingT,
		OversamplingP: p.OversamplingP,
		OversamplingH: p.OversamplingH,
		Filter:        p.Filter,
		StandbyMs:     p.StandbyMs,
		Mode:          p.Mode,
	}, v)
}

// applyEnv merges a configure request over cfg. Zero fields keep the
// current setting.
func applyEnv(cfg bme280.Config, e types.EnvConfigure, v bme280.Variant) (bme280.Config, error) {
	var ok bool
	if cfg.Mode, ok = mode(e.Mode, cfg.Mode); !ok {
		return cfg, errcode.InvalidParams
	}
	if cfg.TemperatureOversampling, ok = oversampling(e.OversamplingT, cfg.TemperatureOversampling); !ok {
		return cfg, errcode.InvalidParams
	}
	if cfg.PressureOversampling, ok = oversampling(e.OversamplingP, cfg.PressureOversampling); !ok {
		return cfg, errcode.InvalidParams
	}
	if cfg.HumidityOversampling, ok = oversampling(e.OversamplingH, cfg.HumidityOversampling); !ok {
		return cfg, errcode.InvalidParams
	}
	if cfg.Filter, ok = filter(e.Filter, cfg.Filter); !ok {
		return cfg, errcode.InvalidParams
	}
	if cfg.Standby, ok = standby(e.StandbyMs, cfg.Standby, v); !ok {
		return cfg, errcode.InvalidParams
	}
	return cfg, nil
}

func mode(s string, keep bme280.Mode) (bme280.Mode, bool) {
	switch s {
	case "":
		return keep, true
	case modeForced:
		return bme280.ModeForced, true
	case modeNormal:
		return bme280.ModeNormal, true
	}
	return keep, false
}

func modeName(m bme280.Mode) string {
	switch m {
	case bme280.ModeNormal:
		return modeNormal
	case bme280.ModeForced:
		return modeForced
	}
	return "sleep"
}

func oversampling(n int, keep bme280.Oversampling) (bme280.Oversampling, bool) {
	switch n {
	case 0:
		return keep, true
	case -1:
		return bme280.OversamplingSkip, true
	case 1:
		return bme280.Oversampling1X, true
	case 2:
		return bme280.Oversampling2X, true
	case 4:
		return bme280.Oversampling4X, true
	case 8:
		return bme280.Oversampling8X, true
	case 16:
		return bme280.Oversampling16X, true
	}
	return keep, false
}

func filter(n int, keep bme280.Filter) (bme280.Filter, bool) {
	switch n {
	case 0:
		return keep, true
	case -1:
		return bme280.FilterOff, true
	case 2:
		return bme280.Filter2, true
	case 4:
		return bme280.Filter4, true
	case 8:
		return bme280.Filter8, true
	case 16:
		return bme280.Filter16, true
	}
	return keep, false
}

// standby maps a period in ms to the t_sb code. The top two codes differ
// between BME280 (10, 20 ms) and BMP280 (2000, 4000 ms).
func standby(ms int, keep bme280.Standby, v bme280.Variant) (bme280.Standby, bool) {
	switch ms {
	case 0:
		return keep, true
	case 1:
		return bme280.Standby0_5ms, true
	case 62, 63:
		return bme280.Standby62_5ms, true
	case 125:
		return bme280.Standby125ms, true
	case 250:
		return bme280.Standby250ms, true
	case 500:
		return bme280.Standby500ms, true
	case 1000:
		return bme280.Standby1000ms, true
	}
	if v == bme280.VariantBMP280 {
		switch ms {
		case 2000:
			return bme280.Standby2000ms, true
		case 4000:
			return bme280.Standby4000ms, true
		}
		return keep, false
	}
	switch ms {
	case 10:
		return bme280.Standby10ms, true
	case 20:
		return bme280.Standby20ms, true
	}
	return keep, false
}

// standbyMs reports a t_sb code back in the units standby accepts.
func standbyMs(s bme280.Standby, v bme280.Variant) int {
	switch s {
	case bme280.Standby0_5ms:
		return 1
	case bme280.Standby62_5ms:
		return 62
	case bme280.Standby10ms:
		if v == bme280.VariantBMP280 {
			return 2000
		}
		return 10
	case bme280.Standby20ms:
		if v == bme280.VariantBMP280 {
			return 4000
		}
		return 20
	}
	return 125 << (s - bme280.Standby125ms)
}

// samples reports an oversampling setting back as a sample count (-1 skip).
func samples(o bme280.Oversampling) int {
	if n := o.Samples(); n > 0 {
		return int(n)
	}
	return -1
}

func filterCoeff(f bme280.Filter) int {
	if f == bme280.FilterOff {
		return -1
	}
	return 1 << f
}
