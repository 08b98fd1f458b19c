//go:build linux

package main

import (
	"flag"
	"strconv"
	"time"

	"envcode-go/drivers/bme280"

	"golang.org/x/xerrors"
)

// config is read from ENVCODE_* variables, then overridden by flags.
type config struct {
	Transport string // "periph" or "smbus"
	Bus       string // periph bus name, or SMBus number
	Addr      uint16
	Interval  time.Duration
	LogLevel  string

	InfluxHost   string
	InfluxToken  string
	InfluxBucket string
	Measure      string
	Location     string
}

func loadConfig(getenv func(string) string, args []string) (config, error) {
	c := config{
		Transport:    "periph",
		Addr:         bme280.AddressPrimary,
		Interval:     10 * time.Second,
		LogLevel:     "info",
		InfluxBucket: "envcode",
		Measure:      "environment",
	}

	env := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	env("ENVCODE_TRANSPORT", &c.Transport)
	env("ENVCODE_BUS", &c.Bus)
	env("ENVCODE_LOG_LEVEL", &c.LogLevel)
	env("ENVCODE_INFLUX_HOST", &c.InfluxHost)
	env("ENVCODE_INFLUX_TOKEN", &c.InfluxToken)
	env("ENVCODE_INFLUX_BUCKET", &c.InfluxBucket)
	env("ENVCODE_MEASURE", &c.Measure)
	env("ENVCODE_LOCATION", &c.Location)

	addr := strconv.Itoa(int(c.Addr))
	env("ENVCODE_ADDR", &addr)
	interval := c.Interval.String()
	env("ENVCODE_INTERVAL", &interval)

	fs := flag.NewFlagSet("bme280-logger", flag.ContinueOnError)
	fs.StringVar(&c.Transport, "transport", c.Transport, "bus access: periph or smbus")
	fs.StringVar(&c.Bus, "bus", c.Bus, "periph bus name or SMBus number")
	fs.StringVar(&addr, "addr", addr, "sensor address (118 or 119, 0x76 or 0x77)")
	fs.StringVar(&interval, "interval", interval, "sampling interval")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "logrus level")
	fs.StringVar(&c.InfluxHost, "influx", c.InfluxHost, "InfluxDB URL; empty disables writes")
	fs.StringVar(&c.Location, "location", c.Location, "location tag")
	if err := fs.Parse(args); err != nil {
		return c, xerrors.Errorf("flags: %w", err)
	}

	a, err := strconv.ParseUint(addr, 0, 8)
	if err != nil {
		return c, xerrors.Errorf("addr %q: %w", addr, err)
	}
	if a != bme280.AddressPrimary && a != bme280.AddressSecondary {
		return c, xerrors.Errorf("addr 0x%02x: not a BME280 address", a)
	}
	c.Addr = uint16(a)

	if c.Interval, err = time.ParseDuration(interval); err != nil {
		return c, xerrors.Errorf("interval %q: %w", interval, err)
	}
	if c.Interval < time.Second {
		return c, xerrors.Errorf("interval %s: below 1s", c.Interval)
	}

	switch c.Transport {
	case "periph":
	case "smbus":
		if c.Bus == "" {
			c.Bus = "1"
		}
		if _, err := strconv.Atoi(c.Bus); err != nil {
			return c, xerrors.Errorf("smbus bus %q: %w", c.Bus, err)
		}
	default:
		return c, xerrors.Errorf("transport %q: want periph or smbus", c.Transport)
	}
	return c, nil
}
