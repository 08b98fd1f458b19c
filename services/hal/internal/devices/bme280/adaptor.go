// services/hal/internal/devices/bme280/adaptor.go
package bme280dev

import (
	"context"
	"errors"
	"time"

	"envcode-go/drivers/bme280"
	"envcode-go/errcode"
	"envcode-go/services/hal/internal/consts"
	"envcode-go/services/hal/internal/halcore"
	"envcode-go/services/hal/internal/registry"
	"envcode-go/services/hal/internal/util"
	"envcode-go/types"
	"envcode-go/x/mathx"
	"envcode-go/x/timex"
)

// Register this device type with the registry. BMP280 parts share the
// protocol and are accepted under both names.
func init() {
	registry.RegisterBuilder("bme280", builder{})
	registry.RegisterBuilder("bmp280", builder{})
}

type builder struct{}

func (builder) Build(in registry.BuildInput) (registry.BuildOutput, error) {
	if in.BusRefType != consts.BusI2C || in.BusRefID == "" {
		return registry.BuildOutput{}, errcode.MissingBusRef
	}
	i2c, ok := in.Buses.ByID(in.BusRefID)
	if !ok {
		return registry.BuildOutput{}, errcode.UnknownBus
	}
	var p Params
	if err := util.DecodeJSON(in.ParamsJSON, &p); err != nil {
		return registry.BuildOutput{}, errcode.InvalidParams
	}
	if p.Addr == 0 {
		p.Addr = bme280.AddressPrimary
	}
	// The standby table depends on the chip found, so it is applied once
	// the variant is known.
	early := p
	early.StandbyMs = 0
	cfg, err := early.config(bme280.DefaultConfig(), bme280.VariantUnknown)
	if err != nil {
		return registry.BuildOutput{}, err
	}
	t := bme280.NewI2C(i2c, uint16(p.Addr))
	dev, err := bme280.New(t, nil, cfg)
	if err != nil {
		return registry.BuildOutput{}, errcode.Wrap(in.Type, err)
	}
	if p.StandbyMs != 0 {
		if cfg, err = p.config(dev.Config(), dev.Variant()); err != nil {
			return registry.BuildOutput{}, err
		}
		if err := dev.Configure(cfg); err != nil {
			return registry.BuildOutput{}, errcode.Wrap(in.Type, err)
		}
	}
	period := defaultPeriod
	if p.PeriodMs > 0 {
		period = timex.FromMs(p.PeriodMs)
	}
	return registry.BuildOutput{
		Adaptor:     &adaptor{id: in.DeviceID, bus: in.BusRefID, addr: t.Address(), dev: dev},
		BusID:       in.BusRefID,
		SampleEvery: period,
	}, nil
}

// adaptor drives the split-phase driver API on behalf of the bus worker.
type adaptor struct {
	id   string
	bus  string
	addr uint16
	dev  *bme280.Device
	s    bme280.Sample
}

func (a *adaptor) ID() string { return a.id }

func (a *adaptor) Capabilities() []halcore.CapInfo {
	info := func(unit string) types.EnvInfo {
		return types.EnvInfo{
			Sensor: a.dev.Variant().String(),
			ChipID: a.dev.ChipID(),
			Addr:   a.addr,
			Bus:    a.bus,
			Unit:   unit,
		}
	}
	caps := []halcore.CapInfo{
		{Kind: string(types.KindTemperature), Info: info("deci_c")},
		{Kind: string(types.KindPressure), Info: info("pa")},
	}
	if a.dev.Variant().HasHumidity() {
		caps = append(caps, halcore.CapInfo{Kind: string(types.KindHumidity), Info: info("rh_x100")})
	}
	return caps
}

func (a *adaptor) Trigger(ctx context.Context) (time.Duration, error) {
	return a.dev.Trigger()
}

func (a *adaptor) Collect(ctx context.Context) (halcore.Sample, error) {
	if err := a.dev.Collect(&a.s); err != nil {
		if errors.Is(err, bme280.ErrNotReady) {
			return nil, halcore.ErrNotReady
		}
		return nil, err
	}
	m := a.s.Fixed
	ts := timex.NowMs()
	out := make(halcore.Sample, 0, 3)
	if m.HasTemperature {
		out = append(out, halcore.Reading{
			Kind:    string(types.KindTemperature),
			Payload: types.TemperatureValue{DeciC: mathx.SatInt16(m.DeciCelsius()), TsMs: ts},
			TsMs:    ts,
		})
	}
	if m.HasPressure {
		out = append(out, halcore.Reading{
			Kind:    string(types.KindPressure),
			Payload: types.PressureValue{Pa: m.Pascal(), TsMs: ts},
			TsMs:    ts,
		})
	}
	if m.HasHumidity {
		out = append(out, halcore.Reading{
			Kind:    string(types.KindHumidity),
			Payload: types.HumidityValue{RHx100: mathx.SatUint16(m.RHx100()), TsMs: ts},
			TsMs:    ts,
		})
	}
	return out, nil
}

// Control handles configure and calibration on any of the device's
// capabilities.
func (a *adaptor) Control(kind, method string, payload any) (any, error) {
	switch method {
	case consts.CtrlConfigure:
		var req types.EnvConfigure
		if err := util.DecodeJSON(payload, &req); err != nil {
			return nil, errcode.InvalidPayload
		}
		cfg, err := applyEnv(a.dev.Config(), req, a.dev.Variant())
		if err != nil {
			return nil, err
		}
		if err := a.dev.Configure(cfg); err != nil {
			return nil, errcode.Wrap(method, err)
		}
		return a.configured(), nil
	case consts.CtrlCalibration:
		return calibrationReply(a.dev.Calibration(), a.dev.Variant().HasHumidity()), nil
	}
	return nil, halcore.ErrUnsupported
}

func (a *adaptor) configured() types.EnvConfigured {
	cfg := a.dev.Config()
	return types.EnvConfigured{
		OK:            true,
		OversamplingT: samples(cfg.TemperatureOversampling),
		OversamplingP: samples(cfg.PressureOversampling),
		OversamplingH: samples(cfg.HumidityOversampling),
		Filter:        filterCoeff(cfg.Filter),
		Mode:          modeName(cfg.Mode),
		StandbyMs:     standbyMs(cfg.Standby, a.dev.Variant()),
		MeasureUs:     int(bme280.MeasurementTime(cfg, a.dev.Variant().HasHumidity()) / time.Microsecond),
	}
}

func calibrationReply(c bme280.Calibration, humidity bool) types.Calibration {
	r := types.Calibration{
		T: [3]int32{int32(c.T1), int32(c.T2), int32(c.T3)},
		P: [9]int32{int32(c.P1), int32(c.P2), int32(c.P3), int32(c.P4), int32(c.P5),
			int32(c.P6), int32(c.P7), int32(c.P8), int32(c.P9)},
	}
	if humidity {
		r.H = [6]int32{int32(c.H1), int32(c.H2), int32(c.H3), int32(c.H4), int32(c.H5), int32(c.H6)}
	}
	return r
}
