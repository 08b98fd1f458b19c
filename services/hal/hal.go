// services/hal/hal.go
package hal

import (
	"context"

	"envcode-go/bus"
	"envcode-go/services/hal/internal/halcore"
	"envcode-go/services/hal/internal/platform"
	"envcode-go/services/hal/internal/service"

	// Device builders register themselves with the registry.
	_ "envcode-go/services/hal/internal/devices/bme280"
)

// I2CBusFactory resolves bus references from config/hal to I²C buses.
type I2CBusFactory = halcore.I2CBusFactory

// I2CBuses is a map-backed I2CBusFactory keyed by bus id ("i2c0", ...).
type I2CBuses = halcore.I2CBuses

// WorkerConfig tunes the per-bus measurement workers. Zero fields take
// defaults.
type WorkerConfig = halcore.WorkerConfig

// Run starts the HAL on the platform's default buses and blocks until ctx is
// cancelled.
func Run(ctx context.Context, conn *bus.Connection) {
	RunWith(ctx, conn, platform.DefaultI2CFactory(), WorkerConfig{})
}

// RunWith starts the HAL on the given buses.
func RunWith(ctx context.Context, conn *bus.Connection, buses I2CBusFactory, wcfg WorkerConfig) {
	service.New(conn, buses, wcfg).Run(ctx)
}
