package hostbus

import (
	"math"

	"envcode-go/drivers/bme280"

	"periph.io/x/conn/v3/physic"
)

// Env converts a fixed-point reading to periph units without going through
// floats. Channels that were not measured stay zero.
func Env(m bme280.MeasurementsFixed) physic.Env {
	var e physic.Env
	if m.HasTemperature {
		e.Temperature = physic.ZeroCelsius + physic.Temperature(m.CentiCelsius)*10*physic.MilliKelvin
	}
	if m.HasPressure {
		e.Pressure = physic.Pressure(m.PressureQ24_8) * physic.Pascal / 256
	}
	if m.HasHumidity {
		e.Humidity = physic.RelativeHumidity(int64(m.HumidityQ22_10) * int64(physic.PercentRH) / 1024)
	}
	return e
}

// Sense performs one measurement and fills e, in the manner of periph's
// physic.SenseEnv.
func Sense(d *bme280.Device, e *physic.Env) error {
	m, err := d.MeasureFixed()
	if err != nil {
		return err
	}
	*e = Env(m)
	return nil
}

// Magnus coefficients over water.
const (
	magnusB = 17.62
	magnusC = 243.12
)

// DewPoint returns the dew point in °C for a temperature in °C and a relative
// humidity in %. It returns NaN when rh is not positive.
func DewPoint(tC, rh float64) float64 {
	if rh <= 0 {
		return math.NaN()
	}
	a := math.Log(rh/100) + magnusB*tC/(magnusC+tC)
	return magnusC * a / (magnusB - a)
}
