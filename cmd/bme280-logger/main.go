//go:build linux

// Command bme280-logger samples a BME280/BMP280 on a Linux I²C bus, logs
// each reading and optionally writes it to InfluxDB.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"envcode-go/drivers/bme280"
	"envcode-go/drivers/bme280/hostbus"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
	"periph.io/x/host/v3"
)

func main() {
	cfg, err := loadConfig(os.Getenv, os.Args[1:])
	if err != nil {
		logrus.Fatalf("%+v", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.WithError(err).Warn("unknown log level, using info")
	}
	log.WithFields(logrus.Fields{
		"transport": cfg.Transport,
		"bus":       cfg.Bus,
		"addr":      cfg.Addr,
		"interval":  cfg.Interval,
	}).Info("starting")

	dev, closer, err := open(cfg)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	defer closer.Close()
	log.WithFields(logrus.Fields{
		"chip":    dev.Variant().String(),
		"chip_id": dev.ChipID(),
	}).Info("sensor ready")

	var sink pointWriter
	if cfg.InfluxHost != "" {
		client := influxdb2.NewClient(cfg.InfluxHost, cfg.InfluxToken)
		defer client.Close()
		sink = client.WriteAPIBlocking("", cfg.InfluxBucket)
		log.WithField("host", cfg.InfluxHost).Info("influx writes enabled")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, log, cfg, dev, sink); err != nil {
		log.Fatalf("%+v", err)
	}
	log.Info("stopped")
}

func open(cfg config) (*bme280.Device, io.Closer, error) {
	switch cfg.Transport {
	case "smbus":
		n, _ := strconv.Atoi(cfg.Bus)
		return hostbus.OpenSMBus(n, uint8(cfg.Addr), bme280.DefaultConfig())
	default:
		if _, err := host.Init(); err != nil {
			return nil, nil, xerrors.Errorf("host.Init: %w", err)
		}
		return hostbus.OpenPeriph(cfg.Bus, cfg.Addr, bme280.DefaultConfig())
	}
}

func run(ctx context.Context, log logrus.FieldLogger, cfg config, dev *bme280.Device, sink pointWriter) error {
	tick := time.NewTicker(cfg.Interval)
	defer tick.Stop()

	failures := 0
	for {
		if err := sample(ctx, log, cfg, dev, sink, time.Now()); err != nil {
			failures++
			log.WithError(err).WithField("failures", failures).Warn("sample failed")
			if xerrors.Is(err, bme280.ErrBus) && failures >= maxFailures {
				return xerrors.Errorf("giving up after %d failures: %w", failures, err)
			}
		} else {
			failures = 0
		}

		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}
