// Package api exposes the daemon's state over a local HTTP JSON surface.
// Clients (IDE plugins, status tooling) poll it for the management
// context and pending actions, and push editor saves and manager action
// notices into it.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	ferrors "git.home.luguber.info/inful/packwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/packwatch/internal/interp"
	"git.home.luguber.info/inful/packwatch/internal/logfields"
	"git.home.luguber.info/inful/packwatch/internal/reconcile"
)

// Status summarizes the daemon's runtime state.
type Status struct {
	Project         string `json:"project"`
	MonitoringArmed bool   `json:"monitoring_armed"`
	SnapshotRunning bool   `json:"snapshot_running"`
	PendingCount    int    `json:"pending_count"`
	RunningAction   string `json:"running_action"`
}

// Service is the daemon surface the HTTP layer talks to. Implementations
// are responsible for serializing access to the reconciliation core.
type Service interface {
	ProjectContext(ctx context.Context) reconcile.Context
	Prerequisites(ctx context.Context) reconcile.Prerequisites
	PendingActions(ctx context.Context) reconcile.PendingActions
	Options(ctx context.Context) interp.Options
	Status(ctx context.Context) Status

	// NotifySaved reports whether the saved path was relevant.
	NotifySaved(ctx context.Context, path string) bool
	ActionNotice(ctx context.Context, project, action string, running bool)
	Bootstrap(ctx context.Context, enter bool) error
	InstallManager(ctx context.Context) error
}

// Server wires the Service into an http.Server.
type Server struct {
	svc     Service
	adapter *ferrors.HTTPErrorAdapter
	logger  *slog.Logger

	// MetricsHandler, when set, is mounted at /metrics.
	MetricsHandler http.Handler

	httpServer *http.Server
}

func NewServer(svc Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		svc:     svc,
		adapter: ferrors.NewHTTPErrorAdapter(logger),
		logger:  logger,
	}
}

// Handler builds the route table. Exposed separately so tests can drive
// it through httptest without binding a socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/context", s.handleContext)
	mux.HandleFunc("GET /api/prerequisites", s.handlePrerequisites)
	mux.HandleFunc("GET /api/actions", s.handleActions)
	mux.HandleFunc("GET /api/options", s.handleOptions)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/saved", s.handleSaved)
	mux.HandleFunc("POST /api/action-notice", s.handleActionNotice)
	mux.HandleFunc("POST /api/bootstrap", s.handleBootstrap)
	mux.HandleFunc("POST /api/install", s.handleInstall)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if s.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.MetricsHandler)
	}

	return s.logRequests(mux)
}

// ListenAndServe runs the HTTP server until the context is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	s.logger.Info("API server listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "API server failed").
			WithContext("addr", addr).
			Build()
	}
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, s.svc.ProjectContext(r.Context()))
}

func (s *Server) handlePrerequisites(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, s.svc.Prerequisites(r.Context()))
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, s.svc.PendingActions(r.Context()))
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, s.svc.Options(r.Context()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, s.svc.Status(r.Context()))
}

type savedRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleSaved(w http.ResponseWriter, r *http.Request) {
	var req savedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		s.adapter.WriteErrorResponse(w, r,
			ferrors.ValidationError("request body must carry a non-empty path").Build())
		return
	}
	relevant := s.svc.NotifySaved(r.Context(), req.Path)
	s.writeJSON(w, r, map[string]bool{"relevant": relevant})
}

type actionNoticeRequest struct {
	Project string `json:"project"`
	Action  string `json:"action"`
	Running bool   `json:"running"`
}

func (s *Server) handleActionNotice(w http.ResponseWriter, r *http.Request) {
	var req actionNoticeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Action == "" {
		s.adapter.WriteErrorResponse(w, r,
			ferrors.ValidationError("request body must carry an action").Build())
		return
	}
	s.svc.ActionNotice(r.Context(), req.Project, req.Action, req.Running)
	w.WriteHeader(http.StatusAccepted)
}

type bootstrapRequest struct {
	Enter bool `json:"enter"`
}

func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	var req bootstrapRequest
	// An empty body means the defaults.
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := s.svc.Bootstrap(r.Context(), req.Enter); err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	s.writeJSON(w, r, map[string]bool{"ok": true})
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.InstallManager(r.Context()); err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	s.writeJSON(w, r, map[string]bool{"ok": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode response",
			logfields.Method(r.Method),
			logfields.Error(err))
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			logfields.Method(r.Method),
			logfields.Path(r.URL.Path),
			logfields.RemoteAddr(r.RemoteAddr),
			logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	})
}
