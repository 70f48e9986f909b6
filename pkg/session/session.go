// Package session holds the authentication state of one dashboard user.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wattwise/wattwise/pkg/api"
	"github.com/wattwise/wattwise/pkg/log"
	"github.com/wattwise/wattwise/pkg/storage"
)

const (
	// TokenKey is the storage key the bearer token is kept under.
	TokenKey = "wattwise_token"
	// UserKey is the storage key the logged in user id is kept under.
	UserKey = "wattwise_user"
)

// State is the authentication state of a Session.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// View is the top-level view a state allows.
type View string

const (
	ViewLogin View = "login"
	ViewApp   View = "app"
)

// Session is the token store and state machine for one browser session. It is
// safe for concurrent use.
type Session struct {
	id string
	db storage.Database

	mu        sync.Mutex
	token     string
	userID    string
	listeners []func(ctx context.Context, s State)
}

var _ api.TokenStore = (*Session)(nil)

// New returns an Anonymous session persisted in db under id.
func New(id string, db storage.Database) *Session {
	return &Session{
		id: id,
		db: db,
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Restore loads a previously stored token, making the session Authenticated
// if one exists.
func (s *Session) Restore(ctx context.Context) error {
	token, err := s.db.GetValue(ctx, s.id, TokenKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to restore token: %w", err)
	}
	userID, err := s.db.GetValue(ctx, s.id, UserKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to restore user: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.userID = userID
	s.mu.Unlock()

	if token != "" {
		log.Ctx(ctx).DebugContext(ctx, "restored session token", slog.String("userID", userID))
	}
	return nil
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	if s.token == "" {
		return Anonymous
	}
	return Authenticated
}

// View returns ViewLogin for Anonymous sessions and ViewApp otherwise.
func (s *Session) View() View {
	if s.State() == Authenticated {
		return ViewApp
	}
	return ViewLogin
}

// UserID returns the logged in user, or "" when Anonymous.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return ""
	}
	return s.userID
}

// OnChange registers fn to be called after every state transition.
func (s *Session) OnChange(fn func(ctx context.Context, st State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Token implements api.TokenStore.
func (s *Session) Token(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SetToken implements api.TokenStore. The token is persisted before the
// session becomes Authenticated.
func (s *Session) SetToken(ctx context.Context, token, userID string) error {
	if token == "" {
		return errors.New("token cannot be empty")
	}
	if err := s.db.SetValue(ctx, s.id, TokenKey, token); err != nil {
		return err
	}
	if userID != "" {
		if err := s.db.SetValue(ctx, s.id, UserKey, userID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	prev := s.stateLocked()
	s.token = token
	s.userID = userID
	s.mu.Unlock()

	s.transition(ctx, prev, Authenticated)
	return nil
}

// ClearToken implements api.TokenStore. The in-memory token is dropped even if
// removing it from storage fails, so the session never keeps using a token
// that the API rejected.
func (s *Session) ClearToken(ctx context.Context) error {
	s.mu.Lock()
	prev := s.stateLocked()
	s.token = ""
	s.userID = ""
	s.mu.Unlock()

	err := errors.Join(
		s.db.DeleteValue(ctx, s.id, TokenKey),
		s.db.DeleteValue(ctx, s.id, UserKey),
	)
	s.transition(ctx, prev, Anonymous)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// Logout ends the session.
func (s *Session) Logout(ctx context.Context) error {
	log.Ctx(ctx).InfoContext(ctx, "logging out", slog.String("userID", s.UserID()))
	return s.ClearToken(ctx)
}

func (s *Session) transition(ctx context.Context, from, to State) {
	if from == to {
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "session state changed", slog.String("from", from.String()), slog.String("to", to.String()))

	s.mu.Lock()
	listeners := make([]func(context.Context, State), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx, to)
	}
}
