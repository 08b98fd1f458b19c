// services/hal/internal/service/service.go
package service

import (
	"context"
	"time"

	"envcode-go/bus"
	"envcode-go/errcode"
	"envcode-go/services/hal/internal/consts"
	"envcode-go/services/hal/internal/halcore"
	"envcode-go/services/hal/internal/registry"
	"envcode-go/services/hal/internal/util"
	"envcode-go/services/hal/internal/worker"
	"envcode-go/types"
)

type devEntry struct {
	adaptor halcore.Adaptor
	caps    map[string]int // kind -> numeric capability id
	busID   string
}

type capKey struct {
	kind string
	id   int
}

// Service owns the HAL control plane: it applies config, schedules
// measurements on per-bus workers and publishes capability topics.
type Service struct {
	conn   *bus.Connection
	buses  halcore.I2CBusFactory
	wcfg   halcore.WorkerConfig
	wctx   context.Context
	cancel context.CancelFunc

	workers map[string]*worker.MeasureWorker // busID -> worker
	results chan halcore.Result

	devices map[string]devEntry

	capToDev  map[capKey]string // (kind,id) -> devID
	nextCapID map[string]int

	devPeriod  map[string]time.Duration
	devNextDue map[string]time.Time

	timer *time.Timer
}

var (
	topicConfigHAL = bus.T(consts.TokConfig, consts.TokHAL)
	topicCtrl      = bus.T(consts.TokHAL, consts.TokCapability, "+", "+", consts.TokControl, "+")
	topicState     = bus.T(consts.TokHAL, consts.TokState)
)

// firstReadDelay spaces the first reading after configuration.
const firstReadDelay = 200 * time.Millisecond

func New(conn *bus.Connection, buses halcore.I2CBusFactory, wcfg halcore.WorkerConfig) *Service {
	return &Service{
		conn:       conn,
		buses:      buses,
		wcfg:       wcfg,
		workers:    map[string]*worker.MeasureWorker{},
		results:    make(chan halcore.Result, 32),
		devices:    map[string]devEntry{},
		capToDev:   map[capKey]string{},
		nextCapID:  map[string]int{},
		devPeriod:  map[string]time.Duration{},
		devNextDue: map[string]time.Time{},
	}
}

func (s *Service) Run(ctx context.Context) {
	s.wctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()

	cfgSub := s.conn.Subscribe(topicConfigHAL)
	ctrlSub := s.conn.Subscribe(topicCtrl)
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)

	s.publishState("idle", "awaiting_config", nil)

	s.timer = time.NewTimer(time.Hour)
	if !s.timer.Stop() {
		util.DrainTimer(s.timer)
	}

	for {
		if next := s.earliestDevDue(); next.IsZero() {
			util.ResetTimer(s.timer, time.Hour)
		} else {
			util.ResetTimer(s.timer, time.Until(next))
		}

		select {
		case <-ctx.Done():
			s.publishState("stopped", "context_cancelled", nil)
			return

		case msg := <-cfgSub.Channel():
			var cfg types.HALConfig
			if err := util.DecodeJSON(msg.Payload, &cfg); err != nil {
				s.publishState("error", "config_wrong_type", err)
				continue
			}
			if failed := s.applyConfig(cfg); failed > 0 {
				s.publishState("ready", "configured_with_errors", nil)
				continue
			}
			s.publishState("ready", "configured", nil)

		case msg := <-ctrlSub.Channel():
			s.handleControl(msg)

		case <-s.timer.C:
			now := time.Now()
			for devID, due := range s.devNextDue {
				if !now.Before(due) {
					s.submitMeasure(devID, false)
					s.bumpDevNext(devID, now)
				}
			}

		case r := <-s.results:
			s.handleResult(r)
		}
	}
}

func (s *Service) handleControl(msg *bus.Message) {
	if len(msg.Topic) < 6 {
		return
	}
	kind, _ := msg.Topic[2].(string)
	idNum, ok := msg.Topic[3].(int)
	if !ok || kind == "" {
		s.replyErr(msg, errcode.InvalidCapAddr)
		return
	}
	devID, ok := s.capToDev[capKey{kind: kind, id: idNum}]
	if !ok {
		s.replyErr(msg, errcode.UnknownCapability)
		return
	}
	method, _ := msg.Topic[5].(string)

	switch method {
	case consts.CtrlReadNow:
		if s.submitMeasure(devID, true) {
			s.bumpDevNext(devID, time.Now())
			s.conn.Reply(msg, types.ReadNowAck{OK: true}, false)
		} else {
			s.replyErr(msg, errcode.Busy)
		}
	case consts.CtrlSetRate:
		var p types.SetRate
		if err := util.DecodeJSON(msg.Payload, &p); err != nil || p.Period <= 0 {
			s.replyErr(msg, errcode.InvalidPeriod)
			return
		}
		s.devPeriod[devID] = util.ClampPeriod(p.Period)
		s.bumpDevNext(devID, time.Now())
		s.conn.Reply(msg, types.SetRateAck{OK: true, Period: s.devPeriod[devID]}, false)
	default:
		ent := s.devices[devID]
		if ent.adaptor == nil {
			s.replyErr(msg, errcode.NoAdaptor)
			return
		}
		run := func() { s.deviceControl(ent.adaptor, kind, method, msg) }
		if w := s.workers[ent.busID]; w != nil {
			// Device controls touch the bus: run them on the bus worker.
			if !w.Exec(run) {
				s.replyErr(msg, errcode.Busy)
			}
			return
		}
		run()
	}
}

// deviceControl may run on a worker goroutine; it only touches the adaptor
// and the connection.
func (s *Service) deviceControl(ad halcore.Adaptor, kind, method string, msg *bus.Message) {
	res, err := ad.Control(kind, method, msg.Payload)
	switch {
	case err == halcore.ErrUnsupported:
		s.replyErr(msg, errcode.Unsupported)
	case err != nil:
		s.replyErr(msg, errcode.Of(err))
	default:
		s.conn.Reply(msg, res, false)
	}
}

// applyConfig builds new devices and retires those no longer listed. It
// returns the number of entries that could not be built.
func (s *Service) applyConfig(cfg types.HALConfig) int {
	seen := map[string]struct{}{}
	failed := 0

	for i := range cfg.Devices {
		d := &cfg.Devices[i]
		seen[d.ID] = struct{}{}

		if _, exists := s.devices[d.ID]; exists {
			continue
		}

		b, ok := registry.Lookup(d.Type)
		if !ok {
			println("[hal] no builder for type:", d.Type, "id:", d.ID)
			failed++
			continue
		}

		out, err := s.build(b, registry.BuildInput{
			Ctx:        s.wctx,
			Buses:      s.buses,
			DeviceID:   d.ID,
			Type:       d.Type,
			ParamsJSON: d.Params,
			BusRefType: d.BusRef.Type,
			BusRefID:   d.BusRef.ID,
		})
		if err != nil {
			println("[hal] build failed for:", d.ID, "err:", err.Error())
			failed++
			continue
		}

		if out.BusID != "" {
			if _, ok := s.workers[out.BusID]; !ok {
				w := worker.New(s.wcfg, s.results)
				w.Start(s.wctx)
				s.workers[out.BusID] = w
			}
		}

		ad := out.Adaptor
		entry := devEntry{adaptor: ad, busID: out.BusID, caps: map[string]int{}}

		for _, ci := range ad.Capabilities() {
			id := s.nextCapID[ci.Kind]
			s.nextCapID[ci.Kind]++

			entry.caps[ci.Kind] = id
			s.capToDev[capKey{kind: ci.Kind, id: id}] = d.ID

			s.pubRet(ci.Kind, id, consts.TokInfo, ci.Info)
			s.pubRet(ci.Kind, id, consts.TokState, types.CapabilityState{Link: types.LinkUp, TS: time.Now()})
		}
		s.devices[d.ID] = entry

		if out.SampleEvery > 0 {
			s.devPeriod[d.ID] = util.ClampPeriod(out.SampleEvery)
			s.devNextDue[d.ID] = time.Now().Add(firstReadDelay)
		}
	}

	for devID, ent := range s.devices {
		if _, ok := seen[devID]; ok {
			continue
		}
		for kind, id := range ent.caps {
			s.pubRet(kind, id, consts.TokInfo, nil)
			s.pubRet(kind, id, consts.TokState, types.CapabilityState{Link: types.LinkDown, TS: time.Now()})
			delete(s.capToDev, capKey{kind: kind, id: id})
		}
		delete(s.devices, devID)
		delete(s.devPeriod, devID)
		delete(s.devNextDue, devID)
	}
	return failed
}

// build runs b on the worker that owns the referenced bus, if one is
// already running, so that probing a new device never overlaps a cycle.
// Results are handled while waiting so the worker cannot block on the sink.
func (s *Service) build(b registry.Builder, in registry.BuildInput) (registry.BuildOutput, error) {
	w := s.workers[in.BusRefID]
	if w == nil {
		return b.Build(in)
	}
	var (
		out  registry.BuildOutput
		err  error
		done = make(chan struct{})
	)
	if !w.ExecWait(s.wctx, func() {
		out, err = b.Build(in)
		close(done)
	}) {
		return registry.BuildOutput{}, errcode.Busy
	}
	for {
		select {
		case <-done:
			return out, err
		case r := <-s.results:
			s.handleResult(r)
		case <-s.wctx.Done():
			return registry.BuildOutput{}, s.wctx.Err()
		}
	}
}

// ---- measurement helpers ----

func (s *Service) submitMeasure(devID string, prio bool) bool {
	ent, ok := s.devices[devID]
	if !ok {
		return false
	}
	w := s.workers[ent.busID]
	if w == nil {
		return false
	}
	return w.Submit(halcore.MeasureReq{ID: devID, Adaptor: ent.adaptor, Prio: prio})
}

func (s *Service) bumpDevNext(devID string, from time.Time) {
	period, ok := s.devPeriod[devID]
	if !ok {
		return
	}
	s.devNextDue[devID] = from.Add(util.ClampPeriod(period))
}

func (s *Service) earliestDevDue() time.Time {
	var min time.Time
	for _, t := range s.devNextDue {
		if !t.IsZero() && (min.IsZero() || t.Before(min)) {
			min = t
		}
	}
	return min
}

// ---- results ----

func (s *Service) handleResult(r halcore.Result) {
	ent, ok := s.devices[r.ID]
	if !ok {
		return
	}
	now := time.Now()

	if r.Err != nil {
		code := errcode.Of(r.Err)
		for kind, id := range ent.caps {
			s.pubRet(kind, id, consts.TokState, types.CapabilityState{
				Link:  types.LinkDegraded,
				TS:    now,
				Error: string(code),
			})
		}
		return
	}
	for _, rd := range r.Sample {
		id, ok := ent.caps[rd.Kind]
		if !ok {
			continue
		}
		s.pubRet(rd.Kind, id, consts.TokValue, rd.Payload)
		s.pubRet(rd.Kind, id, consts.TokState, types.CapabilityState{Link: types.LinkUp, TS: now})
	}
}

// ---- bus helpers ----

func (s *Service) publishState(level, status string, err error) {
	pl := types.HALState{Level: level, Status: status, TS: time.Now()}
	if err != nil {
		pl.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(topicState, pl, true))
}

func (s *Service) replyErr(req *bus.Message, code errcode.Code) {
	if len(req.ReplyTo) == 0 {
		return
	}
	s.conn.Reply(req, types.ErrorReply{OK: false, Error: string(code)}, false)
}

func capTopic(kind string, id int, suffix string) bus.Topic {
	return bus.T(consts.TokHAL, consts.TokCapability, kind, id, suffix)
}

func (s *Service) pubRet(kind string, id int, suffix string, p any) {
	s.conn.Publish(s.conn.NewMessage(capTopic(kind, id, suffix), p, true))
}
