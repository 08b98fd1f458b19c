package bme280

// Raw holds uncompensated ADC codes from one burst read.
type Raw struct {
	Temperature uint32 // 20-bit; SkippedTP when not measured
	Pressure    uint32 // 20-bit; SkippedTP when not measured
	Humidity    uint32 // 16-bit; SkippedH when not measured, HumidityUnavailable on BMP280
}

func (r Raw) hasTemperature() bool { return r.Temperature != SkippedTP }
func (r Raw) hasPressure() bool    { return r.Temperature != SkippedTP && r.Pressure != SkippedTP }
func (r Raw) hasHumidity() bool {
	return r.Temperature != SkippedTP && r.Humidity != SkippedH && r.Humidity != HumidityUnavailable
}

// MeasurementsFixed is the integer compensation result in the manufacturer's
// fixed-point formats. Fields of channels that were not measured are zero and
// their Has* flag is false.
type MeasurementsFixed struct {
	CentiCelsius   int32  // 5123 => 51.23 °C
	PressureQ24_8  uint32 // Pa * 256
	HumidityQ22_10 uint32 // %RH * 1024

	HasTemperature bool
	HasPressure    bool
	HasHumidity    bool
}

// DeciCelsius returns tenths of °C rounded half away from zero.
func (m MeasurementsFixed) DeciCelsius() int32 {
	if m.CentiCelsius < 0 {
		return (m.CentiCelsius - 5) / 10
	}
	return (m.CentiCelsius + 5) / 10
}

// Pascal returns the integer part of the pressure in Pa.
func (m MeasurementsFixed) Pascal() uint32 { return m.PressureQ24_8 >> 8 }

// RHx100 returns hundredths of %RH (0..10000).
func (m MeasurementsFixed) RHx100() uint32 { return (m.HumidityQ22_10*100 + 512) >> 10 }

// Measurements is the floating-point compensation result.
type Measurements struct {
	Temperature float32 // °C
	Pressure    float32 // Pa
	Humidity    float32 // %RH, 0..100

	HasTemperature bool
	HasPressure    bool
	HasHumidity    bool
}

// Compensate converts raw codes with the 32/64-bit integer formulas. It is a
// pure function of its inputs.
func Compensate(raw Raw, cal Calibration) (MeasurementsFixed, error) {
	var m MeasurementsFixed
	if !cal.valid {
		return m, ErrNotCalibrated
	}
	if !raw.hasTemperature() {
		return m, nil
	}
	var tFine int32
	m.CentiCelsius, tFine = compensateTemperature(int32(raw.Temperature), &cal)
	m.HasTemperature = true

	if raw.hasPressure() {
		m.PressureQ24_8 = compensatePressure(int32(raw.Pressure), tFine, &cal)
		m.HasPressure = true
	}
	if raw.hasHumidity() {
		m.HumidityQ22_10 = compensateHumidity(int32(raw.Humidity), tFine, &cal)
		m.HasHumidity = true
	}
	return m, nil
}

// CompensateFloat converts raw codes with the double-precision formulas.
func CompensateFloat(raw Raw, cal Calibration) (Measurements, error) {
	var m Measurements
	if !cal.valid {
		return m, ErrNotCalibrated
	}
	if !raw.hasTemperature() {
		return m, nil
	}
	t, tFine := compensateTemperatureFloat(float64(raw.Temperature), &cal)
	m.Temperature = float32(t)
	m.HasTemperature = true

	if raw.hasPressure() {
		m.Pressure = float32(compensatePressureFloat(float64(raw.Pressure), tFine, &cal))
		m.HasPressure = true
	}
	if raw.hasHumidity() {
		m.Humidity = float32(compensateHumidityFloat(float64(raw.Humidity), tFine, &cal))
		m.HasHumidity = true
	}
	return m, nil
}

// ---- Integer path ----

// compensateTemperature returns hundredths of °C and t_fine.
func compensateTemperature(adcT int32, c *Calibration) (int32, int32) {
	t1 := int32(c.T1)
	var1 := (((adcT >> 3) - (t1 << 1)) * int32(c.T2)) >> 11
	var2 := (((((adcT >> 4) - t1) * ((adcT >> 4) - t1)) >> 12) * int32(c.T3)) >> 14
	tFine := var1 + var2
	return (tFine*5 + 128) >> 8, tFine
}

// compensatePressure returns Pa in Q24.8. A zero denominator yields 0.
func compensatePressure(adcP, tFine int32, c *Calibration) uint32 {
	var1 := int64(tFine) - 128000
	var2 := var1 * var1 * int64(c.P6)
	var2 += (var1 * int64(c.P5)) << 17
	var2 += int64(c.P4) << 35
	var1 = ((var1 * var1 * int64(c.P3)) >> 8) + ((var1 * int64(c.P2)) << 12)
	var1 = (((int64(1) << 47) + var1) * int64(c.P1)) >> 33
	if var1 == 0 {
		return 0
	}
	p := int64(1048576) - int64(adcP)
	p = (((p << 31) - var2) * 3125) / var1
	var1 = (int64(c.P9) * (p >> 13) * (p >> 13)) >> 25
	var2 = (int64(c.P8) * p) >> 19
	p = ((p + var1 + var2) >> 8) + (int64(c.P7) << 4)
	return uint32(p)
}

const humidityQ22_10Max = 419430400 // 100 %RH before the final >> 12

// compensateHumidity returns %RH in Q22.10, clamped to [0, 100].
func compensateHumidity(adcH, tFine int32, c *Calibration) uint32 {
	v := tFine - 76800
	x := (((adcH << 14) - (int32(c.H4) << 20) - (int32(c.H5) * v)) + 16384) >> 15
	y := (((((((v*int32(c.H6))>>10)*(((v*int32(c.H3))>>11)+32768))>>10)+2097152)*int32(c.H2) + 8192) >> 14)
	v = x * y
	v -= ((((v >> 15) * (v >> 15)) >> 7) * int32(c.H1)) >> 4
	if v < 0 {
		v = 0
	}
	if v > humidityQ22_10Max {
		v = humidityQ22_10Max
	}
	return uint32(v >> 12)
}

// ---- Floating-point path ----

func compensateTemperatureFloat(adcT float64, c *Calibration) (float64, int32) {
	t1 := float64(c.T1)
	var1 := (adcT/16384.0 - t1/1024.0) * float64(c.T2)
	d := adcT/131072.0 - t1/8192.0
	var2 := d * d * float64(c.T3)
	return (var1 + var2) / 5120.0, int32(var1 + var2)
}

func compensatePressureFloat(adcP float64, tFine int32, c *Calibration) float64 {
	var1 := float64(tFine)/2.0 - 64000.0
	var2 := var1 * var1 * float64(c.P6) / 32768.0
	var2 = var2 + var1*float64(c.P5)*2.0
	var2 = var2/4.0 + float64(c.P4)*65536.0
	var1 = (float64(c.P3)*var1*var1/524288.0 + float64(c.P2)*var1) / 524288.0
	var1 = (1.0 + var1/32768.0) * float64(c.P1)
	if var1 == 0 {
		return 0
	}
	p := 1048576.0 - adcP
	p = (p - var2/4096.0) * 6250.0 / var1
	var1 = float64(c.P9) * p * p / 2147483648.0
	var2 = p * float64(c.P8) / 32768.0
	return p + (var1+var2+float64(c.P7))/16.0
}

func compensateHumidityFloat(adcH float64, tFine int32, c *Calibration) float64 {
	h := float64(tFine) - 76800.0
	h = (adcH - (float64(c.H4)*64.0 + float64(c.H5)/16384.0*h)) *
		(float64(c.H2) / 65536.0 * (1.0 + float64(c.H6)/67108864.0*h*(1.0+float64(c.H3)/67108864.0*h)))
	h = h * (1.0 - float64(c.H1)*h/524288.0)
	switch {
	case h > 100:
		return 100
	case h < 0:
		return 0
	}
	return h
}
