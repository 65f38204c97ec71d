// Package api hosts the HTTP control plane for netmoded.  It exposes
// read-only status and metrics endpoints plus the network-change
// endpoints the web UI drives.  Reads serve the last committed
// snapshot and never wait for a transition in progress; writes use the
// controller's non-blocking variants so a busy gate answers
// immediately with 409 instead of queueing.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	nmerr "netmoded/internal/errors"
	"netmoded/internal/metrics"
	"netmoded/internal/netmode"
	"netmoded/util"
)

// Constants for route prefixing.  Versioning is explicit to allow
// non-breaking additions.
const (
	APIVersion     = "v1"
	DefaultAddress = ":8080"
)

// ServerOptions configures the HTTP server.  Timeouts are conservative
// defaults for a device-local control plane, except WriteTimeout: a
// mode change holds its response open while profiles cycle, so the
// write deadline must outlast the slowest deactivate, activate and
// rollback sequence.
type ServerOptions struct {
	Addr              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	Logger            *util.Logger
}

// Server hosts the HTTP API for the daemon.
type Server struct {
	http    *http.Server
	ctrl    *netmode.Controller
	metrics *metrics.Collector
	log     *util.Logger
	opts    ServerOptions
}

// NewServer constructs a new API server bound to the provided
// controller.  The server does not start listening until Start is
// called.
func NewServer(ctrl *netmode.Controller, m *metrics.Collector, opts ServerOptions) *Server {
	if ctrl == nil {
		panic("api.NewServer: controller is nil")
	}
	if opts.Addr == "" {
		opts.Addr = DefaultAddress
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 2 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 60 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 60 * time.Second
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(0)
	}

	mux := http.NewServeMux()
	s := &Server{
		ctrl:    ctrl,
		metrics: m,
		log:     opts.Logger,
		opts:    opts,
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           withBasicMiddleware(mux, opts.Logger),
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
			WriteTimeout:      opts.WriteTimeout,
			IdleTimeout:       opts.IdleTimeout,
			BaseContext: func(l net.Listener) context.Context {
				return context.Background()
			},
		},
	}

	// Routes
	prefix := "/api/" + APIVersion
	mux.HandleFunc(prefix+"/healthz", s.handleHealthz)
	mux.HandleFunc(prefix+"/status", s.handleStatus)
	mux.HandleFunc(prefix+"/metrics", s.handleMetrics)
	mux.HandleFunc(prefix+"/network/toggle", s.handleToggle)
	mux.HandleFunc(prefix+"/network/client", s.handleClient)
	mux.HandleFunc(prefix+"/network/ap", s.handleAccessPoint)

	return s
}

// Handler returns the server's root handler, middleware included.
// Exposed for tests that drive the mux without a listener.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start begins serving HTTP in a background goroutine.  It returns
// immediately; use Stop for graceful shutdown.  A bind failure is
// logged rather than fatal so the buttons keep working on a device
// whose port is taken.
func (s *Server) Start() {
	go func() {
		s.log.Info("listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); !nmerr.Is(err, http.ErrServerClosed) {
			s.log.Error("serve: %v", err)
		}
	}()
}

// Stop gracefully shuts down the server, waiting up to ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	timeout := s.opts.ShutdownTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.http.Shutdown(ctx)
}

// handleHealthz is a simple readiness/liveness endpoint.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, APIError{
			Error:     "method not allowed",
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": TimeNow().UTC().Format(time.RFC3339),
	})
}

// handleStatus returns the committed mode snapshot plus the cached
// interface view.  It answers even while a transition holds the gate.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, APIError{
			Error:     "method not allowed",
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}
	st, info := s.ctrl.Status()
	writeJSON(w, http.StatusOK, FromStatus(st, info))
}

// handleMetrics returns the metrics snapshot.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, APIError{
			Error:     "method not allowed",
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// handleToggle flips the device to the other personality.
// Method: POST, no body.
// Response (200): ModeResponse with the personality the device landed
// in.  Errors carry the classified kind:
//   - 409 when another transition holds the gate
//   - 502 when the network commands failed and the device kept its mode
//   - 500 otherwise
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, APIError{
			Error:     "method not allowed",
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}

	// Detached from the request context: a dropped client must not
	// abort a half-finished mode change.
	err := s.ctrl.TryToggle(context.WithoutCancel(r.Context()), netmode.TriggerWeb)
	s.finishChange(w, err)
}

// handleClient forces client mode.  Same contract as handleToggle,
// except that asking for the mode the device is already in is a no-op
// success.
func (s *Server) handleClient(w http.ResponseWriter, r *http.Request) {
	s.force(w, r, netmode.ModeClient)
}

// handleAccessPoint forces access-point mode.  Same contract as
// handleClient.
func (s *Server) handleAccessPoint(w http.ResponseWriter, r *http.Request) {
	s.force(w, r, netmode.ModeAccessPoint)
}

func (s *Server) force(w http.ResponseWriter, r *http.Request, target netmode.Mode) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, APIError{
			Error:     "method not allowed",
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}

	err := s.ctrl.TryTransitionTo(context.WithoutCancel(r.Context()), target, netmode.TriggerWeb)
	s.finishChange(w, err)
}

// finishChange writes the outcome of a network-change request: the
// committed snapshot on success, a classified APIError otherwise.
func (s *Server) finishChange(w http.ResponseWriter, err error) {
	if err != nil {
		writeJSON(w, statusFor(err), APIError{
			Error:     err.Error(),
			Kind:      nmerr.Kind(err),
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}
	st, _ := s.ctrl.Status()
	writeJSON(w, http.StatusOK, FromMode(st))
}

// statusFor maps a transition failure to an HTTP status.  Command
// failures are the upstream network's fault, hence 502; the busy gate
// is a conflict the caller can retry.
func statusFor(err error) int {
	switch nmerr.Kind(err) {
	case nmerr.KindBusy:
		return http.StatusConflict
	case nmerr.KindTimeout, nmerr.KindNonZeroExit, nmerr.KindNoSuchProfile:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Basic middleware: sets the JSON content type and logs one line per
// request.  No CORS or auth because this is a device-local control
// plane.
func withBasicMiddleware(next http.Handler, logger *util.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := TimeNow()
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
		dur := time.Since(start)
		logger.Verbose("%s %s %dms", r.Method, r.URL.Path, dur.Milliseconds())
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}
