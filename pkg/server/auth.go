package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/wattwise/wattwise/pkg/api"
	"github.com/wattwise/wattwise/pkg/log"
	"github.com/wattwise/wattwise/pkg/session"
	"github.com/wattwise/wattwise/pkg/types"
)

const maxBodyBytes = 1 << 20

type authStatus struct {
	State  string       `json:"state"`
	View   session.View `json:"view"`
	UserID string       `json:"user_id,omitempty"`
}

type loginResponse struct {
	authStatus
	Homes []types.Home `json:"homes"`
}

func statusOf(sess *session.Session) authStatus {
	return authStatus{
		State:  sess.State().String(),
		View:   sess.View(),
		UserID: sess.UserID(),
	}
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statusOf(s.getSession(r).sess))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	b := s.getSession(r)

	var req struct {
		UserID   string `json:"user_id"`
		Password string `json:"password"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Password == "" {
		writeJSONError(w, "user_id and password are required", http.StatusBadRequest)
		return
	}

	prevUserID := b.sess.UserID()
	if _, err := b.client.Login(ctx, req.UserID, req.Password); err != nil {
		if errors.Is(err, api.ErrInvalidCredentials) {
			writeJSONError(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "login failed", slog.Any("error", err))
		writeJSONError(w, "login failed", http.StatusBadGateway)
		return
	}

	// a different user must not inherit the previous user's homes or selection
	if prevUserID != "" && prevUserID != b.sess.UserID() {
		log.Ctx(ctx).InfoContext(ctx, "user changed, resetting dashboard", slog.String("previous", prevUserID))
		b.dash.Reset(ctx)
	}

	// the first home becomes the selection and starts loading
	homes, err := b.dash.LoadHomes(ctx)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to load homes after login", slog.Any("error", err))
	}
	if homes == nil {
		homes = []types.Home{}
	}

	log.Ctx(ctx).InfoContext(ctx, "user logged in", slog.String("userID", b.sess.UserID()))
	writeJSON(w, loginResponse{
		authStatus: statusOf(b.sess),
		Homes:      homes,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	b := s.getSession(r)
	if err := b.sess.Logout(ctx); err != nil {
		// the session is Anonymous regardless
		log.Ctx(ctx).ErrorContext(ctx, "failed to remove stored token", slog.Any("error", err))
	}
	writeJSON(w, statusOf(b.sess))
}

// writeAPIError responds to a failed WattWise API call. A 401 means the
// token was already evicted so the client is sent back to login.
func writeAPIError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	ctx := r.Context()
	if errors.Is(err, api.ErrUnauthorized) {
		writeUnauthorized(w)
		return
	}
	log.Ctx(ctx).ErrorContext(ctx, msg, slog.Any("error", err))
	writeJSONError(w, msg, http.StatusBadGateway)
}
