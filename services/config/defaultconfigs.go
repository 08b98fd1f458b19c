package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

const cfgPicoEnv = `{
  "hal": {
    "devices": [
      {
        "id": "env0",
        "type": "bme280",
        "params": {"addr": 118, "oversampling_h": 1, "oversampling_t": 2, "oversampling_p": 16, "period_ms": 2000},
        "bus_ref": {"type": "i2c", "id": "i2c0"}
      }
    ]
  },
  "heartbeat": {
    "interval": 5
  }
}`

var embeddedConfigs = map[string][]byte{
	"pico-env": []byte(cfgPicoEnv),
}
