// Package hostbus runs the bme280 driver on Linux hosts. It adapts periph.io
// I²C buses and go-daq SMBus connections to the driver's transports and
// converts readings to periph's physic.Env.
package hostbus
