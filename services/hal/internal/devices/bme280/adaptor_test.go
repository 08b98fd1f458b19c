package bme280dev

import (
	"context"
	"errors"
	"testing"

	"envcode-go/drivers/bme280"
	"envcode-go/drivers/bme280/bme280sim"
	"envcode-go/errcode"
	"envcode-go/services/hal/internal/halcore"
	"envcode-go/services/hal/internal/registry"
	"envcode-go/types"
)

func build(t *testing.T, chip *bme280sim.Chip, params any) *adaptor {
	t.Helper()
	return buildAs(t, "bme280", chip, params)
}

func buildAs(t *testing.T, typ string, chip *bme280sim.Chip, params any) *adaptor {
	t.Helper()
	b, ok := registry.Lookup(typ)
	if !ok {
		t.Fatalf("%s builder not registered", typ)
	}
	out, err := b.Build(registry.BuildInput{
		Ctx:        context.Background(),
		Buses:      halcore.I2CBuses{"i2c0": chip.I2C()},
		DeviceID:   "env0",
		Type:       typ,
		ParamsJSON: params,
		BusRefType: "i2c",
		BusRefID:   "i2c0",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if out.BusID != "i2c0" {
		t.Fatalf("bus id %q", out.BusID)
	}
	return out.Adaptor.(*adaptor)
}

// cycle runs trigger/collect the way the worker does, minus the timer.
func cycle(t *testing.T, a *adaptor) halcore.Sample {
	t.Helper()
	ctx := context.Background()
	if _, err := a.Trigger(ctx); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	for i := 0; i < 10; i++ {
		s, err := a.Collect(ctx)
		if errors.Is(err, halcore.ErrNotReady) {
			continue
		}
		if err != nil {
			t.Fatalf("Collect: %v", err)
		}
		return s
	}
	t.Fatal("never ready")
	return nil
}

func TestBuildDefaults(t *testing.T) {
	chip := bme280sim.New(bme280.ChipIDBME280)
	a := build(t, chip, map[string]any{"period_ms": 500})

	if a.addr != bme280.AddressPrimary {
		t.Fatalf("addr %#x", a.addr)
	}
	caps := a.Capabilities()
	if len(caps) != 3 {
		t.Fatalf("caps %+v", caps)
	}
	info := caps[2].Info.(types.EnvInfo)
	if caps[2].Kind != "humidity" || info.Sensor != "bme280" || info.Bus != "i2c0" || info.ChipID != 0x60 {
		t.Fatalf("humidity info %+v", caps[2])
	}
}

func TestBuildErrors(t *testing.T) {
	b, _ := registry.Lookup("bme280")
	chip := bme280sim.New(bme280.ChipIDBME280)
	buses := halcore.I2CBuses{"i2c0": chip.I2C()}

	cases := []struct {
		name string
		in   registry.BuildInput
		want errcode.Code
	}{
		{"no bus ref", registry.BuildInput{Buses: buses}, errcode.MissingBusRef},
		{"unknown bus", registry.BuildInput{Buses: buses, BusRefType: "i2c", BusRefID: "i2c7"}, errcode.UnknownBus},
		{"bad oversampling", registry.BuildInput{Buses: buses, BusRefType: "i2c", BusRefID: "i2c0",
			ParamsJSON: map[string]any{"oversampling_p": 3}}, errcode.InvalidParams},
		{"bad mode", registry.BuildInput{Buses: buses, BusRefType: "i2c", BusRefID: "i2c0",
			ParamsJSON: map[string]any{"mode": "turbo"}}, errcode.InvalidParams},
		{"wrong address", registry.BuildInput{Buses: buses, BusRefType: "i2c", BusRefID: "i2c0",
			ParamsJSON: map[string]any{"addr": 0x77}}, errcode.IOError},
	}
	for _, c := range cases {
		_, err := b.Build(c.in)
		if got := errcode.Of(err); got != c.want {
			t.Errorf("%s: got %q (%v), want %q", c.name, got, err, c.want)
		}
	}
}

func TestCollectReference(t *testing.T) {
	chip := bme280sim.New(bme280.ChipIDBME280)
	chip.MeasureBusyReads = 2
	a := build(t, chip, nil)

	s := cycle(t, a)
	if len(s) != 3 {
		t.Fatalf("sample %+v", s)
	}
	if v := s[0].Payload.(types.TemperatureValue); v.DeciC != 251 {
		t.Fatalf("temperature %+v", v)
	}
	if v := s[1].Payload.(types.PressureValue); v.Pa != 100653 {
		t.Fatalf("pressure %+v", v)
	}
	if v := s[2].Payload.(types.HumidityValue); v.RHx100 != 4829 {
		t.Fatalf("humidity %+v", v)
	}
}

func TestBMP280HasNoHumidityCapability(t *testing.T) {
	chip := bme280sim.New(bme280.ChipIDBMP280)
	a := build(t, chip, nil)

	if n := len(a.Capabilities()); n != 2 {
		t.Fatalf("caps %d", n)
	}
	s := cycle(t, a)
	for _, r := range s {
		if r.Kind == "humidity" {
			t.Fatal("humidity reading from bmp280")
		}
	}
	cal, err := a.Control("pressure", "calibration", nil)
	if err != nil {
		t.Fatal(err)
	}
	if c := cal.(types.Calibration); c.H != [6]int32{} || c.T[0] != 27504 || c.P[8] != 6000 {
		t.Fatalf("calibration %+v", c)
	}
}

func TestSkippedPressureOmitted(t *testing.T) {
	chip := bme280sim.New(bme280.ChipIDBME280)
	a := build(t, chip, map[string]any{"oversampling_p": -1})

	s := cycle(t, a)
	if len(s) != 2 || s[0].Kind != "temperature" || s[1].Kind != "humidity" {
		t.Fatalf("sample %+v", s)
	}
}

func TestControlConfigure(t *testing.T) {
	chip := bme280sim.New(bme280.ChipIDBME280)
	a := build(t, chip, nil)

	res, err := a.Control("temperature", "configure", types.EnvConfigure{OversamplingT: 1, OversamplingH: 4, Filter: -1})
	if err != nil {
		t.Fatal(err)
	}
	got := res.(types.EnvConfigured)
	if !got.OK || got.OversamplingT != 1 || got.OversamplingP != 16 || got.OversamplingH != 4 || got.Filter != -1 || got.Mode != "forced" {
		t.Fatalf("configured %+v", got)
	}
	// 1.25 + 2.3*1 + (2.3*16 + 0.575) + (2.3*4 + 0.575) ms
	if got.MeasureUs != 50700 {
		t.Fatalf("measure time %d", got.MeasureUs)
	}
	if chip.Reg(0xF2) != 0x03 || chip.Reg(0xF5) != 0x00 {
		t.Fatalf("registers ctrl_hum=%#x config=%#x", chip.Reg(0xF2), chip.Reg(0xF5))
	}

	if _, err := a.Control("temperature", "configure", map[string]any{"filter": 3}); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("bad filter: %v", err)
	}
	if _, err := a.Control("temperature", "configure", "{"); errcode.Of(err) != errcode.InvalidPayload {
		t.Fatalf("bad payload: %v", err)
	}
	if _, err := a.Control("temperature", "reboot", nil); err != halcore.ErrUnsupported {
		t.Fatalf("unknown verb: %v", err)
	}
}

func TestCollectBusErrorPropagates(t *testing.T) {
	chip := bme280sim.New(bme280.ChipIDBME280)
	a := build(t, chip, nil)

	if _, err := a.Trigger(context.Background()); err != nil {
		t.Fatal(err)
	}
	chip.FailRead = errors.New("nack")
	_, err := a.Collect(context.Background())
	if errcode.Of(err) != errcode.IOError {
		t.Fatalf("got %v", err)
	}
}

func TestConfigureKeepsModeAndStandby(t *testing.T) {
	chip := bme280sim.New(bme280.ChipIDBME280)
	a := build(t, chip, map[string]any{"mode": "normal", "standby_ms": 1000})

	res, err := a.Control("temperature", "configure", types.EnvConfigure{Filter: 4})
	if err != nil {
		t.Fatal(err)
	}
	got := res.(types.EnvConfigured)
	if got.Mode != "normal" || got.StandbyMs != 1000 || got.Filter != 4 {
		t.Fatalf("configured %+v", got)
	}
	if m := a.dev.Config().Mode; m != bme280.ModeNormal {
		t.Fatalf("mode %d after filter-only configure", m)
	}
	if ctrl := chip.Reg(0xF4); ctrl&0x03 != 0x03 {
		t.Fatalf("ctrl_meas %#x", ctrl)
	}
	if sb := chip.Reg(0xF5) >> 5; sb != byte(bme280.Standby1000ms) {
		t.Fatalf("t_sb %d", sb)
	}

	res, err = a.Control("temperature", "configure", types.EnvConfigure{Mode: "forced"})
	if err != nil {
		t.Fatal(err)
	}
	if got := res.(types.EnvConfigured); got.Mode != "forced" || got.StandbyMs != 1000 {
		t.Fatalf("configured %+v", got)
	}
	if _, err := a.Control("temperature", "configure", types.EnvConfigure{Mode: "turbo"}); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("bad mode: %v", err)
	}
}

func TestStandbyFollowsVariant(t *testing.T) {
	cases := []struct {
		name   string
		chipID uint8
		typ    string
		ms     int
		code   bme280.Standby
	}{
		{"bme280 10ms", bme280.ChipIDBME280, "bme280", 10, bme280.Standby10ms},
		{"bmp280 2000ms", bme280.ChipIDBMP280, "bmp280", 2000, bme280.Standby2000ms},
		{"bmp280 4000ms", bme280.ChipIDBMP280, "bmp280", 4000, bme280.Standby4000ms},
		// The table follows the chip found, not the configured type name.
		{"bmp280 under bme280 type", bme280.ChipIDBMP280, "bme280", 2000, bme280.Standby2000ms},
	}
	for _, c := range cases {
		chip := bme280sim.New(c.chipID)
		a := buildAs(t, c.typ, chip, map[string]any{"mode": "normal", "standby_ms": c.ms})
		if sb := chip.Reg(0xF5) >> 5; sb != byte(c.code) {
			t.Errorf("%s: t_sb %d, want %d", c.name, sb, c.code)
		}
		res, err := a.Control("pressure", "configure", types.EnvConfigure{})
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if got := res.(types.EnvConfigured).StandbyMs; got != c.ms {
			t.Errorf("%s: reported standby %d", c.name, got)
		}
	}

	b, _ := registry.Lookup("bmp280")
	for _, ms := range []int{10, 20} {
		chip := bme280sim.New(bme280.ChipIDBMP280)
		_, err := b.Build(registry.BuildInput{
			Buses:      halcore.I2CBuses{"i2c0": chip.I2C()},
			Type:       "bmp280",
			BusRefType: "i2c",
			BusRefID:   "i2c0",
			ParamsJSON: map[string]any{"standby_ms": ms},
		})
		if errcode.Of(err) != errcode.InvalidParams {
			t.Errorf("bmp280 standby %d ms: %v", ms, err)
		}
	}
	chip := bme280sim.New(bme280.ChipIDBME280)
	if _, err := build(t, chip, nil).Control("temperature", "configure", types.EnvConfigure{StandbyMs: 2000}); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("bme280 standby 2000 ms: %v", err)
	}
}
