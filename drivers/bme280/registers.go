// Package bme280 provides constants for register addresses and bitfields used
// by the Bosch BME280 and BMP280 environmental sensors.
package bme280

const (
	// 7-bit I2C addresses (SDO low / SDO high).
	AddressPrimary   = 0x76
	AddressSecondary = 0x77

	// --- Identification / control ---
	regChipID   = 0xD0 // R
	regReset    = 0xE0 // W, magic resetCommand
	regCtrlHum  = 0xF2 // R/W, latched by the next ctrl_meas write
	regStatus   = 0xF3 // R
	regCtrlMeas = 0xF4 // R/W (osrs_t[7:5], osrs_p[4:2], mode[1:0])
	regConfig   = 0xF5 // R/W (t_sb[7:5], filter[4:2], spi3w_en[0])

	// --- Calibration blocks ---
	regCalibTP = 0x88 // dig_T1 .. dig_H1 (0x88..0xA1)
	regCalibH  = 0xE1 // dig_H2 .. dig_H6 (0xE1..0xE7)

	// --- Data block (press_msb .. hum_lsb) ---
	regData = 0xF7

	resetCommand = 0xB6

	// STATUS bits.
	statusMeasuring = 0x08
	statusImUpdate  = 0x01

	// Chip identities.
	ChipIDBME280   = 0x60
	ChipIDBMP280   = 0x58
	ChipIDBMP280S1 = 0x56 // engineering samples
	ChipIDBMP280S2 = 0x57

	// Transfer lengths.
	calibTPLen = 26
	calibHLen  = 7
	dataTPHLen = 8
	dataTPLen  = 6

	// Raw code sentinels reported for a channel with oversampling = skip.
	SkippedTP = 0x80000
	SkippedH  = 0x8000

	// HumidityUnavailable marks the humidity code on variants without a
	// humidity sensor.
	HumidityUnavailable = 0xFFFFFFFF
)
