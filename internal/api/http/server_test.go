package httpapi

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Paintersrp/warden/internal/api"
	"github.com/Paintersrp/warden/internal/metrics"
)

type testController struct{}

func (t *testController) Status(stdcontext.Context) (*api.StatusReport, error) {
	return nil, nil
}

func (t *testController) SignalTask(stdcontext.Context, string, string) (*api.SignalResult, error) {
	return nil, nil
}

func (t *testController) RestartTask(stdcontext.Context, string) (*api.RestartResult, error) {
	return nil, nil
}

type mockController struct {
	statusFn  func(stdcontext.Context) (*api.StatusReport, error)
	signalFn  func(stdcontext.Context, string, string) (*api.SignalResult, error)
	restartFn func(stdcontext.Context, string) (*api.RestartResult, error)
}

func (m *mockController) Status(ctx stdcontext.Context) (*api.StatusReport, error) {
	if m.statusFn == nil {
		return &api.StatusReport{}, nil
	}
	return m.statusFn(ctx)
}

func (m *mockController) SignalTask(ctx stdcontext.Context, task, signal string) (*api.SignalResult, error) {
	if m.signalFn == nil {
		return &api.SignalResult{Task: task, Signal: signal}, nil
	}
	return m.signalFn(ctx, task, signal)
}

func (m *mockController) RestartTask(ctx stdcontext.Context, task string) (*api.RestartResult, error) {
	if m.restartFn == nil {
		return &api.RestartResult{Task: task}, nil
	}
	return m.restartFn(ctx, task)
}

func newTestServer(t *testing.T, ctrl api.Controller) *Server {
	t.Helper()
	server, err := NewServer(Config{Controller: ctrl})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return server
}

func TestNewServerRejectsTypedNilController(t *testing.T) {
	var ctrl api.Controller = (*testController)(nil)
	_, err := NewServer(Config{Controller: ctrl})
	if err == nil {
		t.Fatalf("expected error when controller is typed nil")
	}
	if !strings.Contains(err.Error(), "testController") {
		t.Fatalf("expected error to describe typed nil controller, got %v", err)
	}
}

func TestNormalizeAddr(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":           defaultAddr,
		":80":        "127.0.0.1:80",
		"0.0.0.0:80": "0.0.0.0:80",
		"[::]:80":    "[::]:80",
		"host:9000":  "host:9000",
		"[::1]:443":  "[::1]:443",
	}

	for input, expected := range tests {
		input, expected := input, expected
		t.Run(fmt.Sprintf("%s->%s", input, expected), func(t *testing.T) {
			t.Parallel()
			if got := normalizeAddr(input); got != expected {
				t.Fatalf("normalizeAddr(%q)=%q, want %q", input, got, expected)
			}
		})
	}
}

func TestHandleStatus(t *testing.T) {
	ctrl := &mockController{
		statusFn: func(stdcontext.Context) (*api.StatusReport, error) {
			return &api.StatusReport{
				PID:         42,
				GeneratedAt: time.Unix(123, 0),
				Tasks:       map[string]api.TaskReport{"cmd": {Name: "cmd", Running: true, PID: 43}},
			}, nil
		},
	}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()

	server.handleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rec.Code)
	}

	var body api.StatusReport
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed decoding response: %v", err)
	}
	if body.PID != 42 || body.Tasks["cmd"].PID != 43 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHandleStatusError(t *testing.T) {
	ctrl := &mockController{
		statusFn: func(stdcontext.Context) (*api.StatusReport, error) {
			return nil, errors.New("boom")
		},
	}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()

	server.handleStatus(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Code != "internal_error" {
		t.Fatalf("expected internal_error code, got %q", body.Code)
	}
}

func TestHandleStatusMethodNotAllowed(t *testing.T) {
	server := newTestServer(t, &mockController{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	server.handleStatus(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodGet {
		t.Fatalf("expected Allow header %q, got %q", http.MethodGet, allow)
	}
}

func TestHandleSignal(t *testing.T) {
	ctrl := &mockController{
		signalFn: func(_ stdcontext.Context, task, signal string) (*api.SignalResult, error) {
			if task != "log" || signal != "HUP" {
				t.Fatalf("unexpected request task=%q signal=%q", task, signal)
			}
			return &api.SignalResult{Task: task, Signal: signal, PID: 77}, nil
		},
	}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/signal/log?signal=HUP", nil)
	rec := httptest.NewRecorder()
	server.handleSignal(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]api.SignalResult
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body["signal"].PID != 77 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHandleSignalErrors(t *testing.T) {
	cases := []struct {
		name   string
		target string
		err    error
		status int
		code   string
	}{
		{name: "missing signal", target: "/api/v1/signal/cmd", status: http.StatusBadRequest, code: "invalid_signal"},
		{name: "missing task", target: "/api/v1/signal/?signal=HUP", status: http.StatusNotFound, code: "unknown_task"},
		{name: "not running", target: "/api/v1/signal/cmd?signal=HUP", err: api.ErrTaskNotRunning, status: http.StatusConflict, code: "task_not_running"},
		{name: "bad signal", target: "/api/v1/signal/cmd?signal=NOPE", err: api.ErrInvalidSignal, status: http.StatusBadRequest, code: "invalid_signal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := &mockController{
				signalFn: func(stdcontext.Context, string, string) (*api.SignalResult, error) {
					if tc.err == nil {
						t.Fatalf("controller should not be called")
					}
					return nil, fmt.Errorf("%w: cmd", tc.err)
				},
			}
			server := newTestServer(t, ctrl)

			req := httptest.NewRequest(http.MethodPost, tc.target, nil)
			rec := httptest.NewRecorder()
			server.handleSignal(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			var body errorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if body.Code != tc.code {
				t.Fatalf("expected %s code, got %q", tc.code, body.Code)
			}
		})
	}
}

func TestHandleRestart(t *testing.T) {
	ctrl := &mockController{
		restartFn: func(_ stdcontext.Context, task string) (*api.RestartResult, error) {
			if task != "cmd" {
				t.Fatalf("unexpected task %q", task)
			}
			return &api.RestartResult{Task: task, Restarts: 1}, nil
		},
	}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/restart/cmd", nil)
	rec := httptest.NewRecorder()
	server.handleRestart(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]api.RestartResult
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	result, ok := body["restart"]
	if !ok {
		t.Fatalf("expected restart field in response")
	}
	if result.Restarts != 1 {
		t.Fatalf("expected restart count 1, got %d", result.Restarts)
	}
}

func TestHandleRestartInvalidTask(t *testing.T) {
	server := newTestServer(t, &mockController{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/restart/", nil)
	rec := httptest.NewRecorder()
	server.handleRestart(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Code != "unknown_task" {
		t.Fatalf("expected unknown_task code, got %q", body.Code)
	}
	details, ok := body.Details.(map[string]any)
	if !ok {
		t.Fatalf("expected map details, got %T", body.Details)
	}
	if _, ok := details["task"]; !ok {
		t.Fatalf("expected task key in details")
	}
	if _, ok := details["timestamp"]; !ok {
		t.Fatalf("expected timestamp key in details")
	}
}

func TestHandleRestartWhileShuttingDown(t *testing.T) {
	ctrl := &mockController{
		restartFn: func(stdcontext.Context, string) (*api.RestartResult, error) {
			return nil, api.ErrShuttingDown
		},
	}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/restart/cmd", nil)
	rec := httptest.NewRecorder()
	server.handleRestart(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRunServesMetricsAndStops(t *testing.T) {
	metrics.SetTaskRunning("httpapi_test", true)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server, err := NewServer(Config{Controller: &mockController{}, Listener: listener})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	resp, err := http.Get("http://" + server.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(data), `warden_task_running{task="httpapi_test"} 1`) {
		t.Fatalf("metrics missing from response:\n%s", data)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
