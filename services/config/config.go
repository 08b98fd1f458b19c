// Package config publishes the embedded per-device configuration onto the
// bus as retained config/<service> messages.
package config

import (
	"context"
	"encoding/json"
	"errors"

	"envcode-go/bus"
	"envcode-go/types"
)

const (
	serviceName  = "config"
	configPrefix = "config"
	keyHAL       = "hal"
)

type ctxKey string

// CtxDeviceKey is the context key holding the device ID whose embedded
// config is published.
const CtxDeviceKey ctxKey = "device"

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// publishConfig publishes one retained message per top-level key. The "hal"
// section is decoded into types.HALConfig; other sections go out as decoded
// JSON values.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errors.New("missing device ID in context")
	}

	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return errors.New("no embedded config for device: " + device)
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(raw, &sections); err != nil {
		return errors.New("embedded config is not a JSON object: " + err.Error())
	}

	for k, v := range sections {
		var payload any
		if k == keyHAL {
			var hc types.HALConfig
			if err := json.Unmarshal(v, &hc); err != nil {
				return errors.New("bad hal section: " + err.Error())
			}
			payload = hc
		} else if err := json.Unmarshal(v, &payload); err != nil {
			return errors.New("bad " + k + " section: " + err.Error())
		}
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), payload, true))
	}
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			println("[config] publish failed:", err.Error())
		}
	}()
}
