package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/levenlabs/go-lflag"
	"github.com/wattwise/wattwise/pkg/api"
	"github.com/wattwise/wattwise/pkg/log"
	"github.com/wattwise/wattwise/pkg/publisher"
	"github.com/wattwise/wattwise/pkg/storage"
)

// Server serves the dashboard API. It keeps one session per browser and
// talks to the WattWise API on that session's behalf.
type Server struct {
	apis      *api.Factory
	storage   storage.Database
	publisher *publisher.Publisher

	listenAddr         string
	devProxy           string
	insecureCookies    bool
	sessionIdleTimeout time.Duration
	serverName         string
	httpServer         *http.Server

	sessionsMu sync.Mutex
	sessions   map[string]*sessionBundle
	lastSweep  time.Time
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(apis *api.Factory, s storage.Database, p *publisher.Publisher) *Server {
	srv := newServer(apis, s, p)
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	devProxy := lflag.String("dev-proxy", "", "Address of the frontend dev server (e.g. http://localhost:5173)")
	insecureCookies := lflag.Bool("insecure-cookies", false, "Send the session cookie without the Secure attribute (local development only)")
	idleTimeout := lflag.Duration("session-idle-timeout", 24*time.Hour, "How long an idle session is kept in memory. Its token stays in storage.")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.devProxy = *devProxy
		srv.insecureCookies = *insecureCookies
		srv.sessionIdleTimeout = *idleTimeout
	})

	return srv
}

func newServer(apis *api.Factory, s storage.Database, p *publisher.Publisher) *Server {
	return &Server{
		apis:               apis,
		storage:            s,
		publisher:          p,
		serverName:         "wattwise",
		sessionIdleTimeout: 24 * time.Hour,
		sessions:           make(map[string]*sessionBundle),
	}
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/auth/status", s.handleAuthStatus)
	apiMux.HandleFunc("POST /api/auth/login", s.handleLogin)
	apiMux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	apiMux.Handle("GET /api/homes", s.requireAuth(s.handleHomes))
	apiMux.Handle("POST /api/selection", s.requireAuth(s.handleSelection))
	apiMux.Handle("GET /api/dashboard", s.requireAuth(s.handleDashboard))
	apiMux.Handle("GET /api/appliances", s.requireAuth(s.handleAppliances))
	apiMux.Handle("GET /api/appliances/daily", s.requireAuth(s.handleApplianceDaily))

	mux := http.NewServeMux()
	mux.Handle("/api/", s.sessionMiddleware(apiMux))

	// the frontend is served by its own dev server
	if s.devProxy != "" {
		u, err := url.Parse(s.devProxy)
		if err != nil {
			panic(fmt.Errorf("invalid dev-proxy url (%s): %w", s.devProxy, err))
		}
		mux.Handle("/", httputil.NewSingleHostReverseProxy(u))
	}
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux)))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr), slog.String("api", s.apis.BaseURL()))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		s.waitSessions()
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
