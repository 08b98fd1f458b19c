package bme280

import "time"

// Oversampling selects how many ADC samples are averaged per reading.
// OversamplingSkip disables the channel.
type Oversampling uint8

const (
	OversamplingSkip Oversampling = iota
	Oversampling1X
	Oversampling2X
	Oversampling4X
	Oversampling8X
	Oversampling16X
)

// Samples returns the number of ADC samples (0 for skip).
func (o Oversampling) Samples() uint32 {
	if o == OversamplingSkip || o > Oversampling16X {
		return 0
	}
	return 1 << (o - 1)
}

// Mode is the sensor power mode.
type Mode uint8

const (
	ModeSleep  Mode = 0x00
	ModeForced Mode = 0x01
	ModeNormal Mode = 0x03
)

// Standby is the inactive period between conversions in normal mode.
type Standby uint8

const (
	Standby0_5ms  Standby = iota // 0.5 ms
	Standby62_5ms                // 62.5 ms
	Standby125ms
	Standby250ms
	Standby500ms
	Standby1000ms
	Standby10ms // BME280: 10 ms (BMP280: 2000 ms)
	Standby20ms // BME280: 20 ms (BMP280: 4000 ms)
)

// BMP280 reads the top two standby codes as long periods.
const (
	Standby2000ms = Standby10ms
	Standby4000ms = Standby20ms
)

// Filter is the IIR filter coefficient.
type Filter uint8

const (
	FilterOff Filter = iota
	Filter2
	Filter4
	Filter8
	Filter16
)

// Default status polling budget.
const (
	DefaultPollLimit   = 20
	DefaultPollDelayMs = 2
)

// Config holds the sensor operating configuration.
type Config struct {
	TemperatureOversampling Oversampling
	PressureOversampling    Oversampling
	HumidityOversampling    Oversampling // ignored on BMP280
	Mode                    Mode
	Standby                 Standby // normal mode only
	Filter                  Filter

	// PollLimit bounds the number of status reads while waiting for reset or
	// a conversion. Zero selects DefaultPollLimit.
	PollLimit int
	// PollDelayMs is the pause between status reads. Zero selects
	// DefaultPollDelayMs.
	PollDelayMs uint32
}

// DefaultConfig configures 2x temperature, 16x pressure and 1x humidity
// oversampling, IIR coefficient 16 and forced mode.
func DefaultConfig() Config {
	return Config{
		TemperatureOversampling: Oversampling2X,
		PressureOversampling:    Oversampling16X,
		HumidityOversampling:    Oversampling1X,
		Mode:                    ModeForced,
		Standby:                 Standby0_5ms,
		Filter:                  Filter16,
	}
}

// Validate reports ErrInvalidConfig for out-of-range fields.
func (c Config) Validate() error {
	switch {
	case c.TemperatureOversampling > Oversampling16X,
		c.PressureOversampling > Oversampling16X,
		c.HumidityOversampling > Oversampling16X:
		return ErrInvalidConfig
	case c.Mode != ModeSleep && c.Mode != ModeForced && c.Mode != ModeNormal:
		return ErrInvalidConfig
	case c.Standby > Standby20ms, c.Filter > Filter16:
		return ErrInvalidConfig
	case c.PollLimit < 0:
		return ErrInvalidConfig
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.PollLimit == 0 {
		c.PollLimit = DefaultPollLimit
	}
	if c.PollDelayMs == 0 {
		c.PollDelayMs = DefaultPollDelayMs
	}
	return c
}

// Register encodings.

func (c Config) ctrlHum() byte { return byte(c.HumidityOversampling) & 0x07 }

func (c Config) ctrlMeas(mode Mode) byte {
	return (byte(c.TemperatureOversampling)&0x07)<<5 |
		(byte(c.PressureOversampling)&0x07)<<2 |
		byte(mode)&0x03
}

func (c Config) config() byte {
	return (byte(c.Standby)&0x07)<<5 | (byte(c.Filter)&0x07)<<2
}

// MeasurementTime returns the datasheet maximum conversion time for a forced
// measurement with the given configuration:
//
//	1.25 + 2.3*T + (2.3*P + 0.575) + (2.3*H + 0.575) ms
//
// Skipped channels contribute nothing. Computed in microseconds.
func MeasurementTime(c Config, humidity bool) time.Duration {
	us := uint32(1250)
	if n := c.TemperatureOversampling.Samples(); n > 0 {
		us += 2300 * n
	}
	if n := c.PressureOversampling.Samples(); n > 0 {
		us += 2300*n + 575
	}
	if n := c.HumidityOversampling.Samples(); humidity && n > 0 {
		us += 2300*n + 575
	}
	return time.Duration(us) * time.Microsecond
}
