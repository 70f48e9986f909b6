// Command mockapi serves a stand-in WattWise API with synthetic data so the
// dashboard can be run without the real backend.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/levenlabs/go-lflag"
	"github.com/wattwise/wattwise/pkg/log"
	"github.com/wattwise/wattwise/pkg/types"
)

type mockAPI struct {
	gen      generator
	userID   string
	password string
	homes    []types.Home

	mu     sync.Mutex
	tokens map[string]string
}

func newMockAPI(userID, password string, homes []types.Home) *mockAPI {
	return &mockAPI{
		gen:      generator{now: time.Now},
		userID:   userID,
		password: password,
		homes:    homes,
		tokens:   make(map[string]string),
	}
}

func (m *mockAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", m.handleLogin)
	mux.HandleFunc("GET /api/v1/homes", m.authed(func(r *http.Request, _ string) any {
		return m.homes
	}))
	mux.HandleFunc("GET /api/v1/me/home", m.authed(func(r *http.Request, _ string) any {
		if len(m.homes) == 0 {
			return nil
		}
		return m.homes[0]
	}))
	mux.HandleFunc("GET /api/v1/appliances", m.authed(func(r *http.Request, _ string) any {
		out := make([]types.Appliance, 0, len(mockAppliances)*len(m.homes))
		for _, h := range m.homes {
			for _, a := range mockAppliances {
				out = append(out, types.Appliance{ApplianceID: a.id, ApplianceType: a.kind, HomeID: h.HomeID})
			}
		}
		return out
	}))
	mux.HandleFunc("GET /api/v1/live/home", m.authed(func(r *http.Request, homeID string) any {
		return m.gen.live(homeID)
	}))
	mux.HandleFunc("GET /api/v1/timeseries/home-daily", m.authed(func(r *http.Request, homeID string) any {
		return m.gen.homeDaily(homeID, queryRange(r))
	}))
	mux.HandleFunc("GET /api/v1/timeseries/appliance-daily", m.authed(func(r *http.Request, homeID string) any {
		return m.gen.applianceDaily(homeID, r.URL.Query().Get("appliance_id"), queryRange(r))
	}))
	mux.HandleFunc("GET /api/v1/timeseries/all-appliances-daily", m.authed(func(r *http.Request, homeID string) any {
		return m.gen.allAppliances(homeID, queryRange(r))
	}))
	mux.HandleFunc("GET /api/v1/cost/peak-offpeak-daily", m.authed(func(r *http.Request, homeID string) any {
		return m.gen.peakOffpeak(homeID, queryRange(r))
	}))
	return mux
}

func queryRange(r *http.Request) types.DateRange {
	return types.DateRange{
		Start: r.URL.Query().Get("start"),
		End:   r.URL.Query().Get("end"),
	}
}

func (m *mockAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.UserID != m.userID || req.Password != m.password {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	token := uuid.NewString()
	m.mu.Lock()
	m.tokens[token] = req.UserID
	m.mu.Unlock()
	writeJSON(w, types.LoginResult{Token: token, UserID: req.UserID})
}

// authed checks the bearer token and serves the result of fn. Requests
// without a home_id default to the first home.
func (m *mockAPI) authed(fn func(r *http.Request, homeID string) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		m.mu.Lock()
		_, ok := m.tokens[token]
		m.mu.Unlock()
		if !ok {
			http.Error(w, "not authenticated", http.StatusUnauthorized)
			return
		}
		homeID := r.URL.Query().Get("home_id")
		if homeID == "" && len(m.homes) > 0 {
			homeID = m.homes[0].HomeID
		}
		writeJSON(w, fn(r, homeID))
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func main() {
	listenAddr := lflag.String("http-listen", ":8000", "HTTP listen address")
	userID := lflag.String("user", "demo", "User id accepted at login")
	password := lflag.String("password", "demo", "Password accepted at login")
	homeIDs := lflag.String("homes", "home_1", "Comma-delimited home ids")
	lflag.Configure()

	var homes []types.Home
	for _, id := range strings.Split(*homeIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			homes = append(homes, types.Home{HomeID: id, HomeType: "house"})
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:              *listenAddr,
		Handler:           newMockAPI(*userID, *password, homes).handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "shutdown failed", slog.Any("error", err))
		}
	}()

	log.Ctx(ctx).InfoContext(ctx, "serving mock wattwise api", slog.String("addr", *listenAddr), slog.Int("homes", len(homes)))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
