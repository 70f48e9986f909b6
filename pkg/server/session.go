package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/wattwise/wattwise/pkg/aggregate"
	"github.com/wattwise/wattwise/pkg/api"
	"github.com/wattwise/wattwise/pkg/dashboard"
	"github.com/wattwise/wattwise/pkg/log"
	"github.com/wattwise/wattwise/pkg/session"
)

const (
	sessionCookie = "wattwise_session"
	sessionMaxAge = 30 * 24 * time.Hour

	sweepInterval = time.Minute
)

type contextKey string

const sessionContextKey contextKey = "session"

// sessionBundle is everything kept for one browser session.
type sessionBundle struct {
	sess     *session.Session
	client   *api.Client
	dash     *dashboard.Controller
	lastSeen time.Time
}

func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("reqPath", r.URL.Path)))

		var id string
		if c, err := r.Cookie(sessionCookie); err == nil {
			if parsed, err := uuid.Parse(c.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			log.Ctx(ctx).DebugContext(ctx, "new session", slog.String("sessionID", id))
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			MaxAge:   int(sessionMaxAge.Seconds()),
			HttpOnly: true,
			Secure:   !s.insecureCookies,
			SameSite: http.SameSiteLaxMode,
		})

		b, err := s.getBundle(ctx, id)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to restore session", slog.Any("error", err))
			writeJSONError(w, "failed to restore session", http.StatusInternalServerError)
			return
		}

		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("sessionID", id)))
		ctx = context.WithValue(ctx, sessionContextKey, b)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) getSession(r *http.Request) *sessionBundle {
	if b, ok := r.Context().Value(sessionContextKey).(*sessionBundle); ok {
		return b
	}
	// we want to have a stack trace when this happens
	panic("no session in context")
}

// getBundle returns the bundle for id, restoring it from storage if it is not
// in memory.
func (s *Server) getBundle(ctx context.Context, id string) (*sessionBundle, error) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	now := time.Now()
	s.sweepLocked(ctx, now)

	if b, ok := s.sessions[id]; ok {
		b.lastSeen = now
		return b, nil
	}

	sess := session.New(id, s.storage)
	if err := sess.Restore(ctx); err != nil {
		return nil, err
	}
	client := s.apis.Client(sess, func(ctx context.Context) {
		log.Ctx(ctx).InfoContext(ctx, "wattwise api rejected token, session logged out", slog.String("sessionID", id))
	})
	dash := dashboard.New(client)
	sess.OnChange(func(ctx context.Context, st session.State) {
		if st == session.Anonymous {
			dash.Reset(ctx)
		}
	})
	dash.OnLoaded(func(ctx context.Context, snap dashboard.Snapshot) {
		kpis := aggregate.Summarize(snap.Live, snap.Daily, snap.Cost)
		if err := s.publisher.PublishKPIs(ctx, snap.Selection.HomeID, kpis); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to publish kpis", slog.Any("error", err))
		}
	})

	b := &sessionBundle{
		sess:     sess,
		client:   client,
		dash:     dash,
		lastSeen: now,
	}
	s.sessions[id] = b
	return b, nil
}

// sweepLocked drops sessions idle longer than sessionIdleTimeout. Their
// tokens stay in storage so they are restored on the next request.
func (s *Server) sweepLocked(ctx context.Context, now time.Time) {
	if s.sessionIdleTimeout <= 0 || now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now
	for id, b := range s.sessions {
		if now.Sub(b.lastSeen) > s.sessionIdleTimeout {
			delete(s.sessions, id)
			log.Ctx(ctx).DebugContext(ctx, "dropped idle session", slog.String("sessionID", id))
		}
	}
}

// waitSessions blocks until in-flight dashboard loads finish.
func (s *Server) waitSessions() {
	s.sessionsMu.Lock()
	bundles := make([]*sessionBundle, 0, len(s.sessions))
	for _, b := range s.sessions {
		bundles = append(bundles, b)
	}
	s.sessionsMu.Unlock()

	for _, b := range bundles {
		b.dash.Wait()
	}
}

// requireAuth rejects Anonymous sessions with the login view.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.getSession(r).sess.State() != session.Authenticated {
			writeUnauthorized(w)
			return
		}
		next(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	writeJSON(w, struct {
		Error string       `json:"error"`
		View  session.View `json:"view"`
	}{"unauthorized", session.ViewLogin})
}
