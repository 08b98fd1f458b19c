// Package heartbeat prints a periodic liveness line carrying the latest
// environmental readings seen on the bus.
package heartbeat

import (
	"context"
	"time"

	"envcode-go/bus"
	"envcode-go/types"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	topicValues          = bus.T("hal", "capability", "+", "+", "value")
)

const defaultInterval = time.Second

// Config is the payload on config/heartbeat.
type Config struct {
	Interval float64 `json:"interval"` // seconds
}

// Snapshot holds the most recent reading per kind; zero TsMs means none yet.
type Snapshot struct {
	Temperature types.TemperatureValue
	Pressure    types.PressureValue
	Humidity    types.HumidityValue
}

type Service struct {
	last  Snapshot
	print func(time.Time, Snapshot)
}

func (s *Service) observe(m *bus.Message) {
	switch v := m.Payload.(type) {
	case types.TemperatureValue:
		s.last.Temperature = v
	case types.PressureValue:
		s.last.Pressure = v
	case types.HumidityValue:
		s.last.Humidity = v
	}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	valSub := conn.Subscribe(topicValues)
	defer conn.Unsubscribe(cfgSub)
	defer conn.Unsubscribe(valSub)

	if s.print == nil {
		s.print = printLine
	}

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("[heartbeat] stopping")
			return
		case t := <-tick.C:
			s.print(t, s.last)
		case m := <-valSub.Channel():
			s.observe(m)
		case msg := <-cfgSub.Channel():
			c, ok := decodeConfig(msg.Payload)
			if !ok || c.Interval <= 0 {
				println("[heartbeat] ignoring config")
				continue
			}
			tick.Reset(time.Duration(c.Interval * float64(time.Second)))
			println("[heartbeat] interval set to", int(c.Interval*1000), "ms")
		}
	}
}

// decodeConfig accepts a typed Config or the decoded-JSON map form.
func decodeConfig(p any) (Config, bool) {
	switch v := p.(type) {
	case Config:
		return v, true
	case map[string]any:
		iv, ok := v["interval"].(float64)
		return Config{Interval: iv}, ok
	}
	return Config{}, false
}

func printLine(t time.Time, s Snapshot) {
	if s.Temperature.TsMs == 0 && s.Pressure.TsMs == 0 {
		println("[heartbeat]", t.Format("15:04:05"), "no readings")
		return
	}
	println("[heartbeat]", t.Format("15:04:05"),
		"dC:", s.Temperature.DeciC,
		"Pa:", s.Pressure.Pa,
		"RHx100:", s.Humidity.RHx100)
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
