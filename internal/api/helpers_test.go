package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/quantum-task-core/internal/auth"
	"github.com/nerrad567/quantum-task-core/internal/device"
	"github.com/nerrad567/quantum-task-core/internal/events"
	"github.com/nerrad567/quantum-task-core/internal/infrastructure/config"
	"github.com/nerrad567/quantum-task-core/internal/infrastructure/database/dbtest"
	"github.com/nerrad567/quantum-task-core/internal/infrastructure/logging"
	"github.com/nerrad567/quantum-task-core/internal/result"
	"github.com/nerrad567/quantum-task-core/internal/task"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// recordingSink captures every published event.
type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) snapshot() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

// published waits for queued events to reach the sinks and returns what
// the recording sink has seen.
func (e *testEnv) published(t *testing.T) []events.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.events.Flush(ctx); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	return e.sink.snapshot()
}

type testEnv struct {
	srv     *Server
	router  http.Handler
	devices *device.SQLRepository
	tasks   *task.SQLRepository
	sink    *recordingSink
	events  *events.Dispatcher
}

// newTestEnv builds a server over a migrated in-memory database seeded
// with a QPU (SC2), a simulator (SVSim) and an unavailable QPU (Maint).
func newTestEnv(t *testing.T, authMode string) *testEnv {
	t.Helper()

	db := dbtest.Open(t)
	env := &testEnv{
		devices: device.NewSQLRepository(db),
		tasks:   task.NewSQLRepository(db),
		sink:    &recordingSink{},
	}
	log := logging.Discard()
	env.events = events.NewDispatcher(log, env.sink)

	nodes := 512
	restart := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	calibration := `{"qubits":[{"id":0,"t1":55.2}]}`
	calibratedAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	seed := []*device.Device{
		{
			ID: "SC2", Type: device.TypeQPU, Status: device.StatusAvailable, NQubits: 39,
			BasisGates: []string{"sx", "rz", "cx"}, Instructions: []string{"measure", "barrier"},
			CalibrationData: &calibration, CalibratedAt: &calibratedAt, Description: "superconducting",
		},
		{ID: "SVSim", Type: device.TypeSimulator, Status: device.StatusAvailable, NQubits: 39, NNodes: &nodes},
		{ID: "Maint", Type: device.TypeQPU, Status: device.StatusUnavailable, AvailableAt: &restart, NQubits: 64},
	}
	for _, d := range seed {
		if err := env.devices.Create(context.Background(), d); err != nil {
			t.Fatalf("seeding device %s: %v", d.ID, err)
		}
	}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			AuthMode: authMode,
			JWT:      config.JWTConfig{Secret: testSecret, AccessTokenTTL: 15},
		},
		Logger:  log,
		Devices: env.devices,
		Tasks:   env.tasks,
		Results: result.NewSQLRepository(db),
		DB:      db,
		Events:  env.events,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	env.events.Start(ctx)
	t.Cleanup(func() {
		cancel()
		env.events.Wait()
	})
	go srv.hub.Run(ctx)

	env.srv = srv
	env.router = srv.buildRouter()
	return env
}

func token(t *testing.T, owner string, role auth.Role) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken(owner, role, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error: %v", err)
	}
	return tok
}

// do sends a request through the router. body may be nil, a string or
// any JSON-encodable value.
func (e *testEnv) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, want, w.Body.String())
	}
}

func expectDetail(t *testing.T, w *httptest.ResponseRecorder, status int, detail string) {
	t.Helper()
	expectStatus(t, w, status)
	var resp Error
	decode(t, w, &resp)
	if resp.Detail != detail {
		t.Errorf("detail = %q, want %q", resp.Detail, detail)
	}
}

func expectMessage(t *testing.T, w *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	expectStatus(t, w, status)
	var resp Message
	decode(t, w, &resp)
	if resp.Message != message {
		t.Errorf("message = %q, want %q", resp.Message, message)
	}
}

// submitSampling submits a sampling task to SC2 and returns its id.
func (e *testEnv) submitSampling(t *testing.T, bearer string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/tasks/sampling", bearer, map[string]any{
		"device": "SC2",
		"code":   "OPENQASM 3; qubit[2] q; h q[0]; cx q[0], q[1];",
		"nShots": 1000,
	})
	expectStatus(t, w, http.StatusCreated)
	var resp submitResponse
	decode(t, w, &resp)
	return resp.TaskID.String()
}
