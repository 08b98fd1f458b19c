//go:build linux

package main

import (
	"context"
	"math"
	"time"

	"envcode-go/drivers/bme280"
	"envcode-go/drivers/bme280/hostbus"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api/write"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// maxFailures consecutive bus errors end the run.
const maxFailures = 5

// pointWriter is the part of influxdb2's blocking write API used here.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

func sample(ctx context.Context, log logrus.FieldLogger, cfg config, dev *bme280.Device, sink pointWriter, t time.Time) error {
	m, err := dev.MeasureFixed()
	if err != nil {
		return xerrors.Errorf("MeasureFixed: %w", err)
	}
	env := hostbus.Env(m)

	fields := logrus.Fields{}
	if m.HasTemperature {
		fields["temperature"] = env.Temperature.String()
	}
	if m.HasPressure {
		fields["pressure"] = env.Pressure.String()
	}
	if m.HasHumidity {
		fields["humidity"] = env.Humidity.String()
	}
	log.WithFields(fields).Info("reading")

	if sink == nil {
		return nil
	}
	if err := sink.WritePoint(ctx, newPoint(cfg, dev.Variant(), m, t)); err != nil {
		return xerrors.Errorf("influxWriter.WritePoint: %w", err)
	}
	return nil
}

// newPoint builds one InfluxDB point; only measured channels become fields.
// Humidity readings also carry the dew point.
func newPoint(cfg config, v bme280.Variant, m bme280.MeasurementsFixed, t time.Time) *write.Point {
	tags := map[string]string{"sensor": v.String()}
	if cfg.Location != "" {
		tags["location"] = cfg.Location
	}
	fields := map[string]interface{}{}
	tC := float64(m.CentiCelsius) / 100
	if m.HasTemperature {
		fields["temperature"] = tC
	}
	if m.HasPressure {
		fields["pressure"] = float64(m.PressureQ24_8) / 256
	}
	if m.HasHumidity {
		rh := float64(m.HumidityQ22_10) / 1024
		fields["humidity"] = rh
		if dp := hostbus.DewPoint(tC, rh); !math.IsNaN(dp) {
			fields["dew_point"] = math.Round(dp*100) / 100
		}
	}
	return influxdb2.NewPoint(cfg.Measure, tags, fields, t)
}
