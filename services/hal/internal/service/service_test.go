package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"envcode-go/bus"
	"envcode-go/drivers/bme280"
	"envcode-go/drivers/bme280/bme280sim"
	"envcode-go/services/hal/internal/halcore"
	"envcode-go/types"

	_ "envcode-go/services/hal/internal/devices/bme280"
)

type harness struct {
	b    *bus.Bus
	ui   *bus.Connection
	chip *bme280sim.Chip
}

func start(t *testing.T, chipID uint8, devType string, params any) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{b: bus.NewBus(16), chip: bme280sim.New(chipID)}
	h.ui = h.b.NewConnection("ui")

	svc := New(h.b.NewConnection("hal"), halcore.I2CBuses{"i2c0": h.chip.I2C()}, halcore.WorkerConfig{})
	go svc.Run(ctx)

	cfg := types.HALConfig{Devices: []types.HALDevice{{
		ID:     "env0",
		Type:   devType,
		Params: params,
		BusRef: types.BusRef{Type: "i2c", ID: "i2c0"},
	}}}
	h.ui.Publish(h.ui.NewMessage(bus.T("config", "hal"), cfg, true))
	h.waitState(t, "configured")
	return h
}

func (h *harness) waitState(t *testing.T, status string) {
	t.Helper()
	sub := h.ui.Subscribe(bus.T("hal", "state"))
	defer h.ui.Unsubscribe(sub)
	deadline := time.After(time.Second)
	for {
		select {
		case m := <-sub.Channel():
			if st, ok := m.Payload.(types.HALState); ok && st.Status == status {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for hal state %q", status)
		}
	}
}

func (h *harness) request(t *testing.T, kind string, id int, verb string, payload any) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg := h.ui.NewMessage(bus.T("hal", "capability", kind, id, "control", verb), payload, false)
	reply, err := h.ui.RequestWait(ctx, msg)
	if err != nil {
		t.Fatalf("%s/%d %s: %v", kind, id, verb, err)
	}
	return reply.Payload
}

func waitPayload[T any](t *testing.T, sub *bus.Subscription, ok func(T) bool) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-sub.Channel():
			if v, is := m.Payload.(T); is && ok(v) {
				return v
			}
		case <-deadline:
			var zero T
			t.Fatalf("timeout waiting for %T", zero)
			return zero
		}
	}
}

func TestConfigPublishesInfoAndValues(t *testing.T) {
	h := start(t, bme280.ChipIDBME280, "bme280", map[string]any{"period_ms": 200})

	info := h.ui.Subscribe(bus.T("hal", "capability", "humidity", 0, "info"))
	defer h.ui.Unsubscribe(info)
	in := waitPayload(t, info, func(types.EnvInfo) bool { return true })
	if in.Sensor != "bme280" || in.Addr != 0x76 || in.Bus != "i2c0" {
		t.Fatalf("info %+v", in)
	}

	temp := h.ui.Subscribe(bus.T("hal", "capability", "temperature", 0, "value"))
	press := h.ui.Subscribe(bus.T("hal", "capability", "pressure", 0, "value"))
	hum := h.ui.Subscribe(bus.T("hal", "capability", "humidity", 0, "value"))

	if v := waitPayload(t, temp, func(types.TemperatureValue) bool { return true }); v.DeciC != 251 {
		t.Fatalf("temperature %+v", v)
	}
	if v := waitPayload(t, press, func(types.PressureValue) bool { return true }); v.Pa != 100653 {
		t.Fatalf("pressure %+v", v)
	}
	if v := waitPayload(t, hum, func(types.HumidityValue) bool { return true }); v.RHx100 != 4829 {
		t.Fatalf("humidity %+v", v)
	}
}

func TestBMP280ExposesNoHumidity(t *testing.T) {
	h := start(t, bme280.ChipIDBMP280, "bmp280", nil)

	r := h.request(t, "humidity", 0, "read_now", nil)
	if e, ok := r.(types.ErrorReply); !ok || e.Error != "unknown_capability" {
		t.Fatalf("reply %#v", r)
	}
	if _, ok := h.request(t, "pressure", 0, "read_now", nil).(types.ReadNowAck); !ok {
		t.Fatal("pressure read_now not acknowledged")
	}
}

func TestControls(t *testing.T) {
	h := start(t, bme280.ChipIDBME280, "bme280", map[string]any{"period_ms": 60000})

	val := h.ui.Subscribe(bus.T("hal", "capability", "pressure", 0, "value"))
	defer h.ui.Unsubscribe(val)
	if ack, ok := h.request(t, "pressure", 0, "read_now", nil).(types.ReadNowAck); !ok || !ack.OK {
		t.Fatal("read_now not acknowledged")
	}
	waitPayload(t, val, func(types.PressureValue) bool { return true })

	r := h.request(t, "temperature", 0, "set_rate", types.SetRate{Period: 10 * time.Millisecond})
	if ack, ok := r.(types.SetRateAck); !ok || ack.Period != 200*time.Millisecond {
		t.Fatalf("set_rate reply %#v", r)
	}
	if e, ok := h.request(t, "temperature", 0, "set_rate", types.SetRate{}).(types.ErrorReply); !ok || e.Error != "invalid_period" {
		t.Fatal("zero period accepted")
	}

	r = h.request(t, "humidity", 0, "configure", types.EnvConfigure{OversamplingH: 16})
	if c, ok := r.(types.EnvConfigured); !ok || c.OversamplingH != 16 {
		t.Fatalf("configure reply %#v", r)
	}

	r = h.request(t, "temperature", 0, "calibration", nil)
	if c, ok := r.(types.Calibration); !ok || c.T[0] != 27504 || c.H[0] != 75 {
		t.Fatalf("calibration reply %#v", r)
	}

	if e, ok := h.request(t, "temperature", 0, "selfdestruct", nil).(types.ErrorReply); !ok || e.Error != "unsupported" {
		t.Fatal("unknown verb not rejected")
	}
	if e, ok := h.request(t, "temperature", 5, "read_now", nil).(types.ErrorReply); !ok || e.Error != "unknown_capability" {
		t.Fatal("unknown capability not rejected")
	}
}

func TestErrorsDegradeState(t *testing.T) {
	h := start(t, bme280.ChipIDBME280, "bme280", map[string]any{"period_ms": 60000})

	state := h.ui.Subscribe(bus.T("hal", "capability", "temperature", 0, "state"))
	defer h.ui.Unsubscribe(state)

	h.chip.SetMeasureBusy(-1)
	h.request(t, "temperature", 0, "read_now", nil)
	st := waitPayload(t, state, func(s types.CapabilityState) bool { return s.Link == types.LinkDegraded })
	if st.Error != "timeout" {
		t.Fatalf("state %+v", st)
	}

	h.chip.SetMeasureBusy(0)
	h.chip.FailNextRead(errors.New("nack"))
	h.request(t, "temperature", 0, "read_now", nil)
	st = waitPayload(t, state, func(s types.CapabilityState) bool { return s.Error == "io_error" })
	if st.Link != types.LinkDegraded {
		t.Fatalf("state %+v", st)
	}

	// Recovers on the next good cycle.
	h.request(t, "temperature", 0, "read_now", nil)
	waitPayload(t, state, func(s types.CapabilityState) bool { return s.Link == types.LinkUp })
}

func TestRemovedDeviceGoesDown(t *testing.T) {
	h := start(t, bme280.ChipIDBME280, "bme280", nil)

	state := h.ui.Subscribe(bus.T("hal", "capability", "pressure", 0, "state"))
	defer h.ui.Unsubscribe(state)

	h.ui.Publish(h.ui.NewMessage(bus.T("config", "hal"), types.HALConfig{}, true))
	waitPayload(t, state, func(s types.CapabilityState) bool { return s.Link == types.LinkDown })

	if e, ok := h.request(t, "pressure", 0, "read_now", nil).(types.ErrorReply); !ok || e.Error != "unknown_capability" {
		t.Fatal("removed capability still addressable")
	}
}

func TestBuildFailureReported(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := bus.NewBus(8)
	ui := b.NewConnection("ui")
	go New(b.NewConnection("hal"), halcore.I2CBuses{}, halcore.WorkerConfig{}).Run(ctx)

	ui.Publish(ui.NewMessage(bus.T("config", "hal"), types.HALConfig{Devices: []types.HALDevice{
		{ID: "x", Type: "bme280", BusRef: types.BusRef{Type: "i2c", ID: "i2c0"}},
		{ID: "y", Type: "nope"},
	}}, true))
	(&harness{ui: ui}).waitState(t, "configured_with_errors")
}

// sharedBus routes transactions to several emulated chips and records the
// highest number of transactions in flight at once.
type sharedBus struct {
	chips    []*bme280sim.Chip
	inflight atomic.Int32
	peak     atomic.Int32
}

func (b *sharedBus) Tx(addr uint16, w, r []byte) error {
	n := b.inflight.Add(1)
	defer b.inflight.Add(-1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(100 * time.Microsecond)
	for _, c := range b.chips {
		if c.Address == addr {
			return c.I2C().Tx(addr, w, r)
		}
	}
	return bme280sim.ErrNoDevice
}

func TestAddedDeviceBuildsOnBusWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	second := bme280sim.New(bme280.ChipIDBMP280)
	second.Address = bme280.AddressSecondary
	sb := &sharedBus{chips: []*bme280sim.Chip{bme280sim.New(bme280.ChipIDBME280), second}}

	b := bus.NewBus(16)
	h := &harness{b: b, ui: b.NewConnection("ui")}
	go New(b.NewConnection("hal"), halcore.I2CBuses{"i2c0": sb}, halcore.WorkerConfig{}).Run(ctx)

	first := types.HALDevice{ID: "env0", Type: "bme280", BusRef: types.BusRef{Type: "i2c", ID: "i2c0"}}
	h.ui.Publish(h.ui.NewMessage(bus.T("config", "hal"), types.HALConfig{Devices: []types.HALDevice{first}}, true))
	h.waitState(t, "configured")

	// Keep the worker busy while the second device is built.
	stop, stopped := make(chan struct{}), make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case <-stop:
				return
			default:
			}
			rctx, rcancel := context.WithTimeout(ctx, 100*time.Millisecond)
			h.ui.RequestWait(rctx, h.ui.NewMessage(bus.T("hal", "capability", "temperature", 0, "control", "read_now"), nil, false))
			rcancel()
		}
	}()
	defer func() { close(stop); <-stopped }()

	val := h.ui.Subscribe(bus.T("hal", "capability", "pressure", 1, "value"))
	defer h.ui.Unsubscribe(val)
	h.ui.Publish(h.ui.NewMessage(bus.T("config", "hal"), types.HALConfig{Devices: []types.HALDevice{first, {
		ID: "env1", Type: "bmp280", Params: map[string]any{"addr": 0x77},
		BusRef: types.BusRef{Type: "i2c", ID: "i2c0"},
	}}}, true))
	waitPayload(t, val, func(types.PressureValue) bool { return true })

	if p := sb.peak.Load(); p != 1 {
		t.Fatalf("%d bus transactions overlapped", p)
	}
}
