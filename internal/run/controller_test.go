package run

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aristath/runconsole/internal/events"
	"github.com/aristath/runconsole/internal/model"
)

// fakeConn is an in-memory task channel. Closing in simulates a server close.
type fakeConn struct {
	in       chan []byte
	closed   chan struct{}
	once     sync.Once
	writeErr error

	mu   sync.Mutex
	sent []any
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 32), closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case <-f.closed:
		return nil, errors.New("use of closed connection")
	default:
	}
	select {
	case msg, ok := <-f.in:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-f.closed:
		return nil, errors.New("use of closed connection")
	}
}

func (f *fakeConn) WriteJSON(v any) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) push(raw string) { f.in <- []byte(raw) }

type recordingStore struct {
	mu   sync.Mutex
	runs []RunState
}

func (r *recordingStore) SaveRun(_ context.Context, state RunState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, state)
	return nil
}

func (r *recordingStore) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func dialerFor(conns ...*fakeConn) DialFunc {
	var mu sync.Mutex
	i := 0
	return func(ctx context.Context) (Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(conns) {
			return nil, errors.New("no more connections")
		}
		c := conns[i]
		i++
		return c, nil
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestController_FullRun(t *testing.T) {
	conn := newFakeConn()
	store := &recordingStore{}
	bus := events.NewEventBus()
	defer bus.Close()
	sub := bus.Subscribe(events.TopicRun, 128)

	c := NewController(ControllerConfig{Dial: dialerFor(conn), Publisher: bus, Recorder: store})
	defer c.Close()

	if err := c.Submit(context.Background(), "  compare laptops on amazon and best buy ", model.FormatCSV); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if got := c.State().Conn; got != StateRunning {
		t.Fatalf("conn = %s, want running", got)
	}

	conn.mu.Lock()
	if len(conn.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(conn.sent))
	}
	cmd := conn.sent[0].(model.CommandMessage)
	conn.mu.Unlock()
	if cmd.Command != "compare laptops on amazon and best buy" || cmd.OutputFormat != model.FormatCSV {
		t.Errorf("unexpected command message: %+v", cmd)
	}

	conn.push(`{"task_id":"t1","event":"plan_ready","data":{"steps":[{"id":"a","action":"navigate"},{"id":"b","action":"summarize","depends_on":["a"]}]}}`)
	conn.push(`garbage that is not json`)
	conn.push(`{"task_id":"t1","event":"step_started","data":{"step_id":"a"}}`)
	conn.push(`{"task_id":"t1","event":"step_completed","data":{"step_id":"a","result":{"ok":true}}}`)
	conn.push(`{"task_id":"t1","event":"task_done","data":{"status":"partial","trace":{"planning_ms":100,"execution_ms":900,"steps":[]}}}`)
	conn.push(`{"task_id":"t1","status":"partial","duration_ms":1000,"cost_usd":0.25}`)
	close(conn.in)

	waitFor(t, func() bool { return c.State().Conn == StateDone })
	waitFor(t, func() bool { return store.count() == 1 })

	state := c.State()
	if state.Completed != 1 || state.DurationMS != 1000 || state.CostUSD != 0.25 {
		t.Errorf("unexpected final state: completed=%d duration=%d cost=%v", state.Completed, state.DurationMS, state.CostUSD)
	}
	if state.Trace == nil || state.Trace.PlanningMS != 100 {
		t.Errorf("trace not kept: %+v", state.Trace)
	}

	// server closing after the result must not turn the run into an error
	time.Sleep(20 * time.Millisecond)
	if got := c.State().Conn; got != StateDone {
		t.Errorf("conn after close = %s, want done", got)
	}

	var last RunState
	n := 0
	for {
		select {
		case e := <-sub:
			last = e.(UpdatedEvent).State
			n++
			continue
		default:
		}
		break
	}
	if n < 3 || last.Conn != StateDone {
		t.Errorf("published %d snapshots, last conn %s", n, last.Conn)
	}
}

func TestController_DialFailure(t *testing.T) {
	c := NewController(ControllerConfig{Dial: func(ctx context.Context) (Conn, error) {
		return nil, errors.New("connection refused")
	}})
	defer c.Close()

	err := c.Submit(context.Background(), "find headphones", model.FormatJSON)
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Op != "dial" {
		t.Fatalf("expected dial TransportError, got %v", err)
	}
	state := c.State()
	if state.Conn != StateError || state.Error == "" {
		t.Errorf("unexpected state: %s %q", state.Conn, state.Error)
	}
}

func TestController_SendFailure(t *testing.T) {
	conn := newFakeConn()
	conn.writeErr = errors.New("broken pipe")
	c := NewController(ControllerConfig{Dial: dialerFor(conn)})
	defer c.Close()

	err := c.Submit(context.Background(), "find headphones", "")
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Op != "send" {
		t.Fatalf("expected send TransportError, got %v", err)
	}
	if c.State().Conn != StateError {
		t.Errorf("conn = %s, want error", c.State().Conn)
	}
	if !conn.isClosed() {
		t.Error("channel should be closed after send failure")
	}
}

func TestController_ClosedBeforeResult(t *testing.T) {
	conn := newFakeConn()
	c := NewController(ControllerConfig{Dial: dialerFor(conn)})
	defer c.Close()

	if err := c.Submit(context.Background(), "find headphones", model.FormatJSON); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	conn.push(`{"task_id":"t1","event":"planning_started","data":{}}`)
	close(conn.in)

	waitFor(t, func() bool { return c.State().Conn == StateError })
	if c.State().Error == "" {
		t.Error("expected an error message")
	}
}

func TestController_ResubmitDiscardsPreviousRun(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	c := NewController(ControllerConfig{Dial: dialerFor(first, second)})
	defer c.Close()

	if err := c.Submit(context.Background(), "first command", model.FormatJSON); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	first.push(`{"task_id":"t1","event":"plan_ready","data":{"steps":[{"id":"a","action":"x"}]}}`)
	waitFor(t, func() bool { return len(c.State().Steps) == 1 })

	if err := c.Submit(context.Background(), "second command", model.FormatSummary); err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if !first.isClosed() {
		t.Error("previous channel was not closed")
	}

	state := c.State()
	if state.Command != "second command" || len(state.Steps) != 0 || state.TaskID != "" {
		t.Errorf("previous run state leaked: %+v", state)
	}

	second.push(`{"task_id":"t2","event":"plan_ready","data":{"steps":[{"id":"x","action":"y"},{"id":"z","action":"w"}]}}`)
	waitFor(t, func() bool { return len(c.State().Steps) == 2 })
	if c.State().TaskID != "t2" {
		t.Errorf("task id = %q, want t2", c.State().TaskID)
	}
}

func TestController_RejectsEmptyCommandAndClosedController(t *testing.T) {
	c := NewController(ControllerConfig{Dial: dialerFor()})

	if err := c.Submit(context.Background(), "   ", model.FormatJSON); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("expected ErrEmptyCommand, got %v", err)
	}
	if c.State().Conn != StateIdle {
		t.Errorf("empty command changed state to %s", c.State().Conn)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := c.Submit(context.Background(), "go", model.FormatJSON); !errors.Is(err, ErrControllerClosed) {
		t.Errorf("expected ErrControllerClosed, got %v", err)
	}
}
