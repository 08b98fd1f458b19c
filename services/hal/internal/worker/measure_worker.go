// services/hal/internal/worker/measure_worker.go
package worker

import (
	"context"
	"errors"
	"time"

	"envcode-go/errcode"
	"envcode-go/services/hal/internal/halcore"
	"envcode-go/services/hal/internal/util"
)

// ErrCollectTimeout is emitted when an adaptor stays not-ready past the
// retry budget.
var ErrCollectTimeout error = &errcode.E{C: errcode.Timeout, Op: "collect"}

// MeasureWorker owns one bus. It triggers conversions, waits the hinted
// time without blocking the bus, and collects with bounded retries.
type MeasureWorker struct {
	cfg  halcore.WorkerConfig
	reqQ chan halcore.MeasureReq
	ctlQ chan func()
	sink chan<- halcore.Result // fan-in sink owned by service

	pending  map[string]*collectItem
	want     map[string]bool // read_now arrived while a cycle was in flight
	collects []*collectItem
	timer    *time.Timer
}

type collectItem struct {
	id      string
	adaptor halcore.Adaptor
	due     time.Time
	retries int
}

func New(cfg halcore.WorkerConfig, sink chan<- halcore.Result) *MeasureWorker {
	if cfg.TriggerTimeout <= 0 {
		cfg.TriggerTimeout = 100 * time.Millisecond
	}
	if cfg.CollectTimeout <= 0 {
		cfg.CollectTimeout = 250 * time.Millisecond
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 5 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 10
	}
	if cfg.InputQueueSize <= 0 {
		cfg.InputQueueSize = 16
	}
	return &MeasureWorker{
		cfg:     cfg,
		reqQ:    make(chan halcore.MeasureReq, cfg.InputQueueSize),
		ctlQ:    make(chan func(), 4),
		sink:    sink,
		pending: map[string]*collectItem{},
		want:    map[string]bool{},
		timer:   time.NewTimer(time.Hour),
	}
}

// Submit queues a request without blocking. Priority requests wait briefly
// for queue space.
func (w *MeasureWorker) Submit(req halcore.MeasureReq) bool {
	select {
	case w.reqQ <- req:
		return true
	default:
	}
	if req.Prio {
		select {
		case w.reqQ <- req:
			return true
		case <-time.After(5 * time.Millisecond):
		}
	}
	return false
}

// Exec queues fn to run on the worker goroutine, between measurement steps,
// so that it has exclusive use of the bus. It reports false when the queue
// is full.
func (w *MeasureWorker) Exec(fn func()) bool {
	select {
	case w.ctlQ <- fn:
		return true
	default:
		return false
	}
}

// ExecWait is Exec that waits for queue space until ctx is done.
func (w *MeasureWorker) ExecWait(ctx context.Context, fn func()) bool {
	select {
	case w.ctlQ <- fn:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *MeasureWorker) Start(ctx context.Context) {
	if !w.timer.Stop() {
		util.DrainTimer(w.timer)
	}
	go w.run(ctx)
}

func (w *MeasureWorker) run(ctx context.Context) {
	for {
		if next := w.minDue(); next.IsZero() {
			util.ResetTimer(w.timer, time.Hour)
		} else {
			util.ResetTimer(w.timer, time.Until(next))
		}
		select {
		case <-ctx.Done():
			return
		case req := <-w.reqQ:
			if _, busy := w.pending[req.ID]; busy {
				if req.Prio {
					w.want[req.ID] = true
				}
				continue
			}
			w.trigger(ctx, &collectItem{id: req.ID, adaptor: req.Adaptor})
		case fn := <-w.ctlQ:
			fn()
		case <-w.timer.C:
			w.collectDue(ctx, time.Now())
		}
	}
}

// trigger starts a cycle and schedules its collect; failures are emitted.
func (w *MeasureWorker) trigger(ctx context.Context, it *collectItem) {
	tctx, cancel := context.WithTimeout(ctx, w.cfg.TriggerTimeout)
	after, err := it.adaptor.Trigger(tctx)
	cancel()
	if err != nil {
		w.emit(halcore.Result{ID: it.id, Err: err})
		return
	}
	it.retries = 0
	it.due = time.Now().Add(after)
	w.pending[it.id] = it
	w.collects = append(w.collects, it)
}

func (w *MeasureWorker) collectDue(ctx context.Context, now time.Time) {
	due := w.collects
	w.collects = nil
	var done []*collectItem
	for _, it := range due {
		if now.Before(it.due) {
			w.collects = append(w.collects, it)
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, w.cfg.CollectTimeout)
		s, err := it.adaptor.Collect(cctx)
		cancel()
		switch {
		case err == nil:
			w.emit(halcore.Result{ID: it.id, Sample: s})
		case errors.Is(err, halcore.ErrNotReady) && it.retries < w.cfg.MaxRetries:
			it.retries++
			it.due = now.Add(w.cfg.RetryBackoff)
			w.collects = append(w.collects, it)
			continue
		case errors.Is(err, halcore.ErrNotReady):
			w.emit(halcore.Result{ID: it.id, Err: ErrCollectTimeout})
		default:
			w.emit(halcore.Result{ID: it.id, Err: err})
		}
		delete(w.pending, it.id)
		done = append(done, it)
	}
	// A read_now that arrived mid-cycle gets a fresh cycle.
	for _, it := range done {
		if w.want[it.id] {
			delete(w.want, it.id)
			w.trigger(ctx, it)
		}
	}
}

func (w *MeasureWorker) emit(r halcore.Result) {
	select {
	case w.sink <- r:
	default:
		w.sink <- r
	}
}

func (w *MeasureWorker) minDue() time.Time {
	var min time.Time
	for _, it := range w.collects {
		if min.IsZero() || it.due.Before(min) {
			min = it.due
		}
	}
	return min
}
