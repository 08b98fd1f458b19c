package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"envcode-go/services/hal/internal/halcore"
)

type fakeAdaptor struct {
	id          string
	delay       time.Duration
	notReady    int32 // consecutive ErrNotReady before success; <0 forever
	failErr     error
	triggers    atomic.Int32
	collectCall atomic.Int32
}

func (f *fakeAdaptor) ID() string                      { return f.id }
func (f *fakeAdaptor) Capabilities() []halcore.CapInfo { return nil }
func (f *fakeAdaptor) Trigger(ctx context.Context) (time.Duration, error) {
	f.triggers.Add(1)
	if f.failErr != nil {
		return 0, f.failErr
	}
	return f.delay, nil
}
func (f *fakeAdaptor) Collect(ctx context.Context) (halcore.Sample, error) {
	n := f.collectCall.Add(1)
	if f.notReady < 0 || n <= f.notReady {
		return nil, halcore.ErrNotReady
	}
	return halcore.Sample{{Kind: "temperature", Payload: 123, TsMs: time.Now().UnixMilli()}}, nil
}
func (f *fakeAdaptor) Control(string, string, any) (any, error) { return nil, halcore.ErrUnsupported }

func startWorker(t *testing.T, cfg halcore.WorkerConfig, results chan halcore.Result) *MeasureWorker {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	w := New(cfg, results)
	w.Start(ctx)
	return w
}

func waitResult(t *testing.T, results <-chan halcore.Result) halcore.Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(300 * time.Millisecond):
		t.Fatal("timeout waiting for result")
	}
	return halcore.Result{}
}

func TestMeasureWorkerSuccessWithRetries(t *testing.T) {
	results := make(chan halcore.Result, 1)
	w := startWorker(t, halcore.WorkerConfig{
		TriggerTimeout: 5 * time.Millisecond,
		CollectTimeout: 10 * time.Millisecond,
		RetryBackoff:   2 * time.Millisecond,
		MaxRetries:     5,
		InputQueueSize: 4,
	}, results)

	ad := &fakeAdaptor{id: "dev1", delay: time.Millisecond, notReady: 2}
	if !w.Submit(halcore.MeasureReq{ID: ad.id, Adaptor: ad}) {
		t.Fatal("submit failed")
	}
	r := waitResult(t, results)
	if r.Err != nil || len(r.Sample) != 1 || r.ID != "dev1" {
		t.Fatalf("unexpected result: %+v", r)
	}
	if got := ad.collectCall.Load(); got != 3 {
		t.Fatalf("collect calls = %d, want 3", got)
	}
}

func TestMeasureWorkerTriggerError(t *testing.T) {
	results := make(chan halcore.Result, 2)
	w := startWorker(t, halcore.WorkerConfig{}, results)

	boom := errors.New("boom")
	ad := &fakeAdaptor{id: "devX", failErr: boom}
	if !w.Submit(halcore.MeasureReq{ID: ad.id, Adaptor: ad}) {
		t.Fatal("submit failed")
	}
	if r := waitResult(t, results); !errors.Is(r.Err, boom) {
		t.Fatalf("expected trigger error, got %+v", r)
	}
	if ad.collectCall.Load() != 0 {
		t.Fatal("collect must not run after a failed trigger")
	}
}

func TestMeasureWorkerRetryBudget(t *testing.T) {
	results := make(chan halcore.Result, 1)
	w := startWorker(t, halcore.WorkerConfig{RetryBackoff: time.Millisecond, MaxRetries: 3}, results)

	ad := &fakeAdaptor{id: "stuck", notReady: -1}
	w.Submit(halcore.MeasureReq{ID: ad.id, Adaptor: ad})

	r := waitResult(t, results)
	if !errors.Is(r.Err, ErrCollectTimeout) {
		t.Fatalf("expected ErrCollectTimeout, got %+v", r)
	}
	if got := ad.collectCall.Load(); got != 4 {
		t.Fatalf("collect calls = %d, want 4 (1 + 3 retries)", got)
	}
}

func TestMeasureWorkerPrioDuringCycle(t *testing.T) {
	results := make(chan halcore.Result, 4)
	w := startWorker(t, halcore.WorkerConfig{}, results)

	ad := &fakeAdaptor{id: "dev2", delay: 20 * time.Millisecond}
	w.Submit(halcore.MeasureReq{ID: ad.id, Adaptor: ad})
	// Duplicate normal request while in flight is coalesced; prio is remembered.
	w.Submit(halcore.MeasureReq{ID: ad.id, Adaptor: ad})
	w.Submit(halcore.MeasureReq{ID: ad.id, Adaptor: ad, Prio: true})

	for i := 0; i < 2; i++ {
		if r := waitResult(t, results); r.Err != nil {
			t.Fatalf("result %d: %v", i, r.Err)
		}
	}
	if got := ad.triggers.Load(); got != 2 {
		t.Fatalf("triggers = %d, want 2", got)
	}
}

func TestSubmitQueueFull(t *testing.T) {
	// Not started: nothing drains the queue.
	w := New(halcore.WorkerConfig{InputQueueSize: 1}, make(chan halcore.Result, 1))
	ad := &fakeAdaptor{id: "q"}
	if !w.Submit(halcore.MeasureReq{ID: "q", Adaptor: ad}) {
		t.Fatal("first submit should fit")
	}
	if w.Submit(halcore.MeasureReq{ID: "q", Adaptor: ad, Prio: true}) {
		t.Fatal("submit into a full queue should fail")
	}
}

func TestExecWaitRunsOnWorker(t *testing.T) {
	w := startWorker(t, halcore.WorkerConfig{}, make(chan halcore.Result, 1))
	ran := make(chan struct{})
	if !w.ExecWait(context.Background(), func() { close(ran) }) {
		t.Fatal("ExecWait refused")
	}
	select {
	case <-ran:
	case <-time.After(300 * time.Millisecond):
		t.Fatal("fn did not run")
	}
}

func TestExecWaitGivesUpOnContext(t *testing.T) {
	// Not started: the control queue never drains.
	w := New(halcore.WorkerConfig{}, make(chan halcore.Result, 1))
	for w.Exec(func() {}) {
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if w.ExecWait(ctx, func() {}) {
		t.Fatal("ExecWait queued past a full queue")
	}
}
