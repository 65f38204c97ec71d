package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	nmerr "netmoded/internal/errors"
	"netmoded/internal/metrics"
	"netmoded/internal/netmode"
	"netmoded/util"
)

// ── test doubles ─────────────────────────────────────────────────────

// fakeBackend is a scriptable netmode.Backend that records every
// activation.
type fakeBackend struct {
	mu sync.Mutex

	clientErr  error
	hotspotErr error
	info       netmode.NetInfo

	// onActivate, when set, runs inside every activation before the
	// scripted error is returned.
	onActivate func()

	calls []string
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeBackend) countCalls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeBackend) ActivateClient(ctx context.Context) error {
	f.record("activate client")
	f.mu.Lock()
	hook, err := f.onActivate, f.clientErr
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeBackend) ActivateHotspot(ctx context.Context) error {
	f.record("activate hotspot")
	f.mu.Lock()
	hook, err := f.onActivate, f.hotspotErr
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeBackend) Deactivate(ctx context.Context, mode netmode.Mode) error {
	f.record("deactivate " + string(mode))
	return nil
}

func (f *fakeBackend) Detect(ctx context.Context) (netmode.Mode, error) {
	return netmode.ModeUnknown, nil
}

func (f *fakeBackend) Probe(ctx context.Context) (bool, error) { return true, nil }

func (f *fakeBackend) Info(ctx context.Context, mode netmode.Mode) (netmode.NetInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info, nil
}

func newTestServer() (*Server, *netmode.Controller, *fakeBackend) {
	fb := &fakeBackend{}
	m := metrics.New()
	ctrl := netmode.NewController(util.NewLogger(0), fb, nil, m)
	s := NewServer(ctrl, m, ServerOptions{Logger: util.NewLogger(0)})
	return s, ctrl, fb
}

// do runs one request through the full handler chain, middleware
// included.  It never fails the test itself, so it is safe to call
// from helper goroutines.
func do(s *Server, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

// ── reads ────────────────────────────────────────────────────────────

func TestServer_Healthz(t *testing.T) {
	s, _, _ := newTestServer()

	rr := do(s, http.MethodGet, "/api/v1/healthz")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body map[string]string
	decode(t, rr, &body)
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
	if body["timestamp"] == "" {
		t.Error("timestamp missing")
	}
}

func TestServer_StatusReflectsController(t *testing.T) {
	s, ctrl, fb := newTestServer()
	fb.info = netmode.NetInfo{
		SSID:      "HomeWiFi",
		IPAddress: "192.168.1.50",
		Signal:    87,
		Internet:  true,
		CheckedAt: time.Now(),
	}

	if err := ctrl.TransitionTo(context.Background(), netmode.ModeClient, netmode.TriggerWeb); err != nil {
		t.Fatalf("TransitionTo: %v", err)
	}

	rr := do(s, http.MethodGet, "/api/v1/status")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var resp StatusResponse
	decode(t, rr, &resp)
	if resp.Mode != "client" {
		t.Errorf("mode = %q, want client", resp.Mode)
	}
	if !resp.ManualOverride {
		t.Error("manual_override should be true after a web transition")
	}
	if resp.LastTransitionAt == "" {
		t.Error("last_transition_at missing")
	}
	if resp.LastError != nil {
		t.Errorf("last_error = %+v, want absent", resp.LastError)
	}
	if resp.Network.SSID != "HomeWiFi" || resp.Network.Signal != 87 {
		t.Errorf("network view = %+v", resp.Network)
	}
	if !resp.Network.Internet {
		t.Error("internet hint lost")
	}
}

func TestServer_StatusNeverWaitsForTransition(t *testing.T) {
	s, _, fb := newTestServer()

	entered := make(chan struct{})
	release := make(chan struct{})
	fb.onActivate = func() {
		close(entered)
		<-release
	}

	toggled := make(chan *httptest.ResponseRecorder, 1)
	go func() { toggled <- do(s, http.MethodPost, "/api/v1/network/toggle") }()
	<-entered

	start := time.Now()
	rr := do(s, http.MethodGet, "/api/v1/status")
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("status took %v while a transition was in flight", elapsed)
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	// Still the committed snapshot from before the change.
	var resp StatusResponse
	decode(t, rr, &resp)
	if resp.Mode != "unknown" {
		t.Errorf("mode = %q, want unknown while the toggle is mid-flight", resp.Mode)
	}

	close(release)
	if rr := <-toggled; rr.Code != http.StatusOK {
		t.Fatalf("toggle finished with %d", rr.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	s, _, fb := newTestServer()

	if rr := do(s, http.MethodPost, "/api/v1/network/toggle"); rr.Code != http.StatusOK {
		t.Fatalf("toggle: %d", rr.Code)
	}
	fb.mu.Lock()
	fb.hotspotErr = &nmerr.ExecError{Cmd: "nmcli connection up Hotspot", ExitCode: 10}
	fb.mu.Unlock()
	if rr := do(s, http.MethodPost, "/api/v1/network/toggle"); rr.Code != http.StatusBadGateway {
		t.Fatalf("failing toggle: %d", rr.Code)
	}

	rr := do(s, http.MethodGet, "/api/v1/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rr.Code)
	}

	var snap metrics.Snapshot
	decode(t, rr, &snap)
	if snap.TransitionsAttempted != 2 {
		t.Errorf("transitions_attempted = %d, want 2", snap.TransitionsAttempted)
	}
	if snap.TransitionsSucceeded != 1 {
		t.Errorf("transitions_succeeded = %d, want 1", snap.TransitionsSucceeded)
	}
	if snap.TransitionsFailed != 1 {
		t.Errorf("transitions_failed = %d, want 1", snap.TransitionsFailed)
	}
}

// ── writes ───────────────────────────────────────────────────────────

func TestServer_ToggleWalksModes(t *testing.T) {
	s, _, _ := newTestServer()

	rr := do(s, http.MethodPost, "/api/v1/network/toggle")
	if rr.Code != http.StatusOK {
		t.Fatalf("first toggle: %d, body %s", rr.Code, rr.Body.String())
	}
	var resp ModeResponse
	decode(t, rr, &resp)
	if resp.Mode != "client" {
		t.Errorf("first toggle landed on %q, want client", resp.Mode)
	}
	if !resp.ManualOverride {
		t.Error("web toggle should set the manual override")
	}

	rr = do(s, http.MethodPost, "/api/v1/network/toggle")
	decode(t, rr, &resp)
	if resp.Mode != "access_point" {
		t.Errorf("second toggle landed on %q, want access_point", resp.Mode)
	}
}

func TestServer_ForceIsIdempotent(t *testing.T) {
	s, _, fb := newTestServer()

	for i := 0; i < 3; i++ {
		rr := do(s, http.MethodPost, "/api/v1/network/client")
		if rr.Code != http.StatusOK {
			t.Fatalf("force #%d: %d", i+1, rr.Code)
		}
		var resp ModeResponse
		decode(t, rr, &resp)
		if resp.Mode != "client" {
			t.Errorf("force #%d landed on %q", i+1, resp.Mode)
		}
	}

	// Only the first request did any work.
	if got := fb.countCalls("activate client"); got != 1 {
		t.Errorf("activate client ran %d times, want 1", got)
	}
}

func TestServer_ForceAccessPoint(t *testing.T) {
	s, _, fb := newTestServer()

	rr := do(s, http.MethodPost, "/api/v1/network/ap")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp ModeResponse
	decode(t, rr, &resp)
	if resp.Mode != "access_point" {
		t.Errorf("mode = %q, want access_point", resp.Mode)
	}
	if got := fb.countCalls("activate hotspot"); got != 1 {
		t.Errorf("activate hotspot ran %d times, want 1", got)
	}
}

func TestServer_BusyGateAnswers409(t *testing.T) {
	s, _, fb := newTestServer()

	entered := make(chan struct{})
	release := make(chan struct{})
	fb.onActivate = func() {
		close(entered)
		<-release
	}

	toggled := make(chan *httptest.ResponseRecorder, 1)
	go func() { toggled <- do(s, http.MethodPost, "/api/v1/network/toggle") }()
	<-entered

	rr := do(s, http.MethodPost, "/api/v1/network/client")
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	var apiErr APIError
	decode(t, rr, &apiErr)
	if apiErr.Kind != nmerr.KindBusy {
		t.Errorf("kind = %q, want %q", apiErr.Kind, nmerr.KindBusy)
	}
	if apiErr.Timestamp == "" {
		t.Error("timestamp missing")
	}

	close(release)
	if rr := <-toggled; rr.Code != http.StatusOK {
		t.Fatalf("held toggle finished with %d", rr.Code)
	}
}

func TestServer_TransitionFailures(t *testing.T) {
	tests := []struct {
		name       string
		scripted   error
		wantStatus int
		wantKind   string
	}{
		{
			name:       "command timeout",
			scripted:   &nmerr.ExecError{Cmd: "nmcli connection up HomeWiFi", Err: nmerr.ErrTimeout},
			wantStatus: http.StatusBadGateway,
			wantKind:   nmerr.KindTimeout,
		},
		{
			name:       "non-zero exit",
			scripted:   &nmerr.ExecError{Cmd: "nmcli connection up HomeWiFi", ExitCode: 10, Stderr: "Error: activation failed"},
			wantStatus: http.StatusBadGateway,
			wantKind:   nmerr.KindNonZeroExit,
		},
		{
			name:       "missing profile",
			scripted:   fmt.Errorf("%w: connection 'HomeWiFi' not found", nmerr.ErrNoSuchProfile),
			wantStatus: http.StatusBadGateway,
			wantKind:   nmerr.KindNoSuchProfile,
		},
		{
			name:       "unclassified failure",
			scripted:   nmerr.New("wires crossed"),
			wantStatus: http.StatusInternalServerError,
			wantKind:   nmerr.KindInternal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, fb := newTestServer()
			fb.clientErr = tt.scripted

			rr := do(s, http.MethodPost, "/api/v1/network/client")
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			var apiErr APIError
			decode(t, rr, &apiErr)
			if apiErr.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", apiErr.Kind, tt.wantKind)
			}
			if apiErr.Error == "" {
				t.Error("error message missing")
			}

			// The device kept its previous mode and recorded the failure.
			var status StatusResponse
			decode(t, do(s, http.MethodGet, "/api/v1/status"), &status)
			if status.Mode != "unknown" {
				t.Errorf("mode after failure = %q, want unknown", status.Mode)
			}
			if status.LastError == nil || status.LastError.Kind != tt.wantKind {
				t.Errorf("last_error = %+v, want kind %q", status.LastError, tt.wantKind)
			}
		})
	}
}

// ── method guards ────────────────────────────────────────────────────

func TestServer_MethodNotAllowed(t *testing.T) {
	tests := []struct {
		path   string
		method string
	}{
		{"/api/v1/healthz", http.MethodPost},
		{"/api/v1/status", http.MethodPost},
		{"/api/v1/metrics", http.MethodDelete},
		{"/api/v1/network/toggle", http.MethodGet},
		{"/api/v1/network/client", http.MethodGet},
		{"/api/v1/network/ap", http.MethodPut},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			s, _, fb := newTestServer()

			rr := do(s, tt.method, tt.path)
			if rr.Code != http.StatusMethodNotAllowed {
				t.Fatalf("status = %d, want 405", rr.Code)
			}
			var apiErr APIError
			decode(t, rr, &apiErr)
			if apiErr.Error != "method not allowed" {
				t.Errorf("error = %q", apiErr.Error)
			}
			fb.mu.Lock()
			n := len(fb.calls)
			fb.mu.Unlock()
			if n != 0 {
				t.Errorf("backend was called %d times by a rejected request", n)
			}
		})
	}
}

// ── options ──────────────────────────────────────────────────────────

func TestServer_OptionDefaults(t *testing.T) {
	_, ctrl, _ := newTestServer()

	s := NewServer(ctrl, nil, ServerOptions{})
	if s.opts.Addr != DefaultAddress {
		t.Errorf("Addr = %q, want %q", s.opts.Addr, DefaultAddress)
	}
	if s.opts.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v", s.opts.ReadTimeout)
	}
	if s.opts.WriteTimeout != 60*time.Second {
		t.Errorf("WriteTimeout = %v, want a deadline that outlasts a full transition", s.opts.WriteTimeout)
	}
	if s.opts.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v", s.opts.ShutdownTimeout)
	}
	if s.log == nil {
		t.Error("logger default missing")
	}

	// A nil collector still serves zeros rather than crashing.
	rr := do(s, http.MethodGet, "/api/v1/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics with nil collector: %d", rr.Code)
	}
}
