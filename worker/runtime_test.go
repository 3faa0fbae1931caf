package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	whatssend "github.com/ortizmas/whats-send"
	"github.com/ortizmas/whats-send/broker"
	brokermem "github.com/ortizmas/whats-send/broker/memory"
	"github.com/ortizmas/whats-send/engine"
	"github.com/ortizmas/whats-send/job"
	"github.com/ortizmas/whats-send/outcome"
	storemem "github.com/ortizmas/whats-send/store/memory"
	"github.com/ortizmas/whats-send/worker"
)

// fakeEngine is a scripted automation engine recording every start.
type fakeEngine struct {
	mu       sync.Mutex
	starts   []engine.StartOptions
	startErr error
	sendErr  error
	panics   bool
}

type fakeClient struct {
	eng     *fakeEngine
	session string
}

func (e *fakeEngine) Start(_ context.Context, opts engine.StartOptions) (engine.Client, error) {
	e.mu.Lock()
	e.starts = append(e.starts, opts)
	panics, startErr := e.panics, e.startErr
	e.mu.Unlock()

	if panics {
		panic("engine crashed")
	}
	if startErr != nil {
		return nil, startErr
	}

	if opts.Token == nil && opts.OnQR != nil {
		opts.OnQR("qr-challenge")
	}
	if opts.OnStatus != nil {
		opts.OnStatus("CONNECTED")
	}
	if opts.OnToken != nil {
		opts.OnToken(json.RawMessage(`{"tok":"` + opts.Session + `"}`))
	}
	return &fakeClient{eng: e, session: opts.Session}, nil
}

func (c *fakeClient) SendText(context.Context, string, string) error {
	c.eng.mu.Lock()
	defer c.eng.mu.Unlock()
	return c.eng.sendErr
}

func (c *fakeClient) Close(context.Context) error { return nil }

func (e *fakeEngine) startCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.starts)
}

func (e *fakeEngine) startOpts(i int) engine.StartOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts[i]
}

// harness runs a worker runtime over memory backends and collects every
// outcome published on the response queue.
type harness struct {
	t      *testing.T
	store  *storemem.Store
	broker *brokermem.Broker
	eng    *fakeEngine
	cancel context.CancelFunc

	mu       sync.Mutex
	outcomes []*outcome.Outcome
}

func newHarness(t *testing.T, workerID string, st *storemem.Store, eng *fakeEngine) *harness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{t: t, store: st, broker: brokermem.New(), eng: eng, cancel: cancel}

	rt := worker.New(workerID, st, h.broker, eng, whatssend.DefaultConfig())
	go func() { _ = rt.Run(ctx) }()

	responses, err := h.broker.Consume(ctx, broker.ResponseQueue)
	if err != nil {
		t.Fatalf("consume responses: %v", err)
	}
	go func() {
		for d := range responses {
			o, err := outcome.Decode(d.Body)
			if err != nil {
				continue
			}
			h.mu.Lock()
			h.outcomes = append(h.outcomes, o)
			h.mu.Unlock()
		}
	}()

	t.Cleanup(func() {
		cancel()
		_ = h.broker.Close()
	})
	return h
}

func (h *harness) submit(j *job.Job) {
	h.t.Helper()
	body, err := j.Encode()
	if err != nil {
		h.t.Fatalf("encode job: %v", err)
	}
	if err := h.broker.Publish(context.Background(), broker.SharedQueue, body); err != nil {
		h.t.Fatalf("publish job: %v", err)
	}
}

// waitFor blocks until an outcome matching the predicate arrives.
func (h *harness) waitFor(what string, match func(*outcome.Outcome) bool) *outcome.Outcome {
	h.t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		h.mu.Lock()
		for _, o := range h.outcomes {
			if match(o) {
				h.mu.Unlock()
				return o
			}
		}
		h.mu.Unlock()
		select {
		case <-deadline:
			h.t.Fatalf("timed out waiting for %s", what)
			return nil
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (h *harness) count(event outcome.Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, o := range h.outcomes {
		if o.Event == event {
			n++
		}
	}
	return n
}

func isEvent(e outcome.Event, session string) func(*outcome.Outcome) bool {
	return func(o *outcome.Outcome) bool { return o.Event == e && o.Session == session }
}

func TestStartSession_ColdStart(t *testing.T) {
	st := storemem.New()
	eng := &fakeEngine{}
	h := newHarness(t, "w1", st, eng)

	h.submit(job.StartSession("bot1"))

	ready := h.waitFor("sessionReady", isEvent(outcome.EventSessionReady, "bot1"))
	if ready.Worker != "w1" {
		t.Errorf("sessionReady worker = %q, want w1", ready.Worker)
	}

	// Cold start surfaces the pairing challenge.
	h.waitFor("qrCode", isEvent(outcome.EventQRCode, "bot1"))

	// The engine's state change persisted a token under this worker's key.
	tok, err := st.LoadToken(context.Background(), "bot1", "w1")
	if err != nil || tok == nil {
		t.Errorf("token not persisted under composite key: tok=%s err=%v", tok, err)
	}

	// Ownership records the claim.
	owner, _ := st.Owner(context.Background(), "bot1")
	if owner != "w1" {
		t.Errorf("owner = %q, want w1", owner)
	}
}

func TestStartSession_Idempotent(t *testing.T) {
	st := storemem.New()
	eng := &fakeEngine{}
	h := newHarness(t, "w1", st, eng)

	// Two starts in rapid succession for the same session.
	h.submit(job.StartSession("bot1"))
	h.submit(job.StartSession("bot1"))

	h.waitFor("sessionReady", isEvent(outcome.EventSessionReady, "bot1"))

	// Give the second job time to land, then check exactly one effective
	// start happened.
	time.Sleep(200 * time.Millisecond)
	if got := h.count(outcome.EventSessionReady); got != 1 {
		t.Errorf("sessionReady emitted %d times, want exactly 1", got)
	}
	if got := eng.startCount(); got != 1 {
		t.Errorf("engine started %d times, want 1", got)
	}
}

func TestStartSession_ResumesAfterWorkerRestart(t *testing.T) {
	st := storemem.New()

	// First worker hosts the session and persists its token.
	eng1 := &fakeEngine{}
	h1 := newHarness(t, "w1", st, eng1)
	h1.submit(job.StartSession("bot1"))
	h1.waitFor("sessionReady", isEvent(outcome.EventSessionReady, "bot1"))
	h1.cancel()

	// Wait for w1's clean teardown to release its claim, so its unbind
	// cannot land after w2's rebind below.
	deadline := time.After(3 * time.Second)
	for {
		owner, err := st.Owner(context.Background(), "bot1")
		if err != nil {
			t.Fatalf("owner: %v", err)
		}
		if owner == "" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for w1 teardown")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// A different process identity starts the same session key. It must
	// locate w1's persisted credential instead of starting cold.
	eng2 := &fakeEngine{}
	h2 := newHarness(t, "w2", st, eng2)
	h2.submit(job.StartSession("bot1"))
	h2.waitFor("sessionReady", isEvent(outcome.EventSessionReady, "bot1"))

	if eng2.startOpts(0).Token == nil {
		t.Error("restarted worker started cold despite a persisted credential")
	}

	// w2 now holds the claim.
	owner, _ := st.Owner(context.Background(), "bot1")
	if owner != "w2" {
		t.Errorf("owner after failover = %q, want w2", owner)
	}
}

func TestSendMessage_NoCredentialFailsFast(t *testing.T) {
	st := storemem.New()
	eng := &fakeEngine{}
	h := newHarness(t, "w1", st, eng)

	h.submit(job.SendMessage("bot1", "5599999999999", "hi"))

	o := h.waitFor("messageError", isEvent(outcome.EventMessageError, "bot1"))
	if o.Reason != "session_not_active" {
		t.Errorf("reason = %q, want session_not_active", o.Reason)
	}
	// A send never cold-starts a session.
	if eng.startCount() != 0 {
		t.Error("send without credential attempted an engine start")
	}
}

func TestSendMessage_SilentResume(t *testing.T) {
	st := storemem.New()

	// A credential exists from some other worker's tenure.
	_ = st.SaveToken(context.Background(), "bot1", "old-worker", json.RawMessage(`{"tok":"old"}`))

	eng := &fakeEngine{}
	h := newHarness(t, "w1", st, eng)
	h.submit(job.SendMessage("bot1", "5599999999999", "hi"))

	sent := h.waitFor("messageSent", isEvent(outcome.EventMessageSent, "bot1"))
	if sent.Number != "5599999999999" || sent.Message != "hi" {
		t.Errorf("messageSent payload = %+v, want echoed number and message", sent)
	}
	if sent.Worker != "w1" {
		t.Errorf("messageSent worker = %q, want w1", sent.Worker)
	}

	// Silent resume: the engine got the old token and no sessionReady or
	// QR was surfaced.
	if tok := eng.startOpts(0).Token; string(tok) != `{"tok":"old"}` {
		t.Errorf("resume token = %s, want the persisted copy", tok)
	}
	if h.count(outcome.EventSessionReady) != 0 {
		t.Error("silent resume emitted sessionReady")
	}
	if h.count(outcome.EventQRCode) != 0 {
		t.Error("silent resume surfaced a QR challenge")
	}
}

func TestSendMessage_ActiveSessionSkipsResume(t *testing.T) {
	st := storemem.New()
	eng := &fakeEngine{}
	h := newHarness(t, "w1", st, eng)

	h.submit(job.StartSession("bot1"))
	h.waitFor("sessionReady", isEvent(outcome.EventSessionReady, "bot1"))

	h.submit(job.SendMessage("bot1", "5599", "hello"))
	h.waitFor("messageSent", isEvent(outcome.EventMessageSent, "bot1"))

	if got := eng.startCount(); got != 1 {
		t.Errorf("engine started %d times, want 1 (send reused active session)", got)
	}
}

func TestEngineFailure_BecomesErrorOutcome(t *testing.T) {
	st := storemem.New()
	eng := &fakeEngine{startErr: errors.New("browser did not come up")}
	h := newHarness(t, "w1", st, eng)

	h.submit(job.StartSession("bot1"))

	o := h.waitFor("error", isEvent(outcome.EventError, "bot1"))
	if o.Worker != "w1" {
		t.Errorf("error outcome worker = %q, want w1", o.Worker)
	}

	// The failed claim was released: a later start may try again.
	eng.mu.Lock()
	eng.startErr = nil
	eng.mu.Unlock()
	h.submit(job.StartSession("bot1"))
	h.waitFor("sessionReady after retry", isEvent(outcome.EventSessionReady, "bot1"))
}

func TestEnginePanic_IsIsolatedPerJob(t *testing.T) {
	st := storemem.New()
	eng := &fakeEngine{panics: true}
	h := newHarness(t, "w1", st, eng)

	h.submit(job.StartSession("bot1"))
	h.waitFor("error", isEvent(outcome.EventError, "bot1"))

	// The worker keeps processing other jobs.
	eng.mu.Lock()
	eng.panics = false
	eng.mu.Unlock()
	h.submit(job.StartSession("bot2"))
	h.waitFor("sessionReady for bot2", isEvent(outcome.EventSessionReady, "bot2"))
}

func TestSendFailure_BecomesErrorOutcome(t *testing.T) {
	st := storemem.New()
	_ = st.SaveToken(context.Background(), "bot1", "w0", json.RawMessage(`{"tok":"x"}`))

	eng := &fakeEngine{sendErr: errors.New("recipient rejected")}
	h := newHarness(t, "w1", st, eng)

	h.submit(job.SendMessage("bot1", "5599", "hi"))
	h.waitFor("error", isEvent(outcome.EventError, "bot1"))

	if h.count(outcome.EventMessageSent) != 0 {
		t.Error("failed send emitted messageSent")
	}
}

func TestDedicatedQueue_FeedsSameHandler(t *testing.T) {
	st := storemem.New()
	eng := &fakeEngine{}
	h := newHarness(t, "w1", st, eng)

	body, _ := job.StartSession("bot9").Encode()
	if err := h.broker.Publish(context.Background(), broker.DedicatedQueue("w1"), body); err != nil {
		t.Fatalf("publish dedicated: %v", err)
	}

	h.waitFor("sessionReady via dedicated queue", isEvent(outcome.EventSessionReady, "bot9"))
}
