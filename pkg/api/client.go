// Package api is the client for the WattWise REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/wattwise/wattwise/pkg/common"
	"github.com/wattwise/wattwise/pkg/log"
)

const (
	// DefaultBaseURL is used when neither a flag nor the environment sets one.
	DefaultBaseURL = "http://127.0.0.1:8000"
	// BaseURLEnv overrides DefaultBaseURL.
	BaseURLEnv = "WATTWISE_API_BASE_URL"

	loginPath = "/api/v1/auth/login"
)

// TokenStore holds the bearer token for one session.
type TokenStore interface {
	// Token returns the stored token or "" if there is none.
	Token(ctx context.Context) string
	// SetToken stores the token returned by a successful login.
	SetToken(ctx context.Context, token, userID string) error
	// ClearToken removes the stored token.
	ClearToken(ctx context.Context) error
}

// Factory builds Clients that share a base URL and an HTTP client.
type Factory struct {
	baseURL string
	client  *http.Client
}

// Configured registers the API flags and returns a Factory that is usable
// after lflag.Configure.
func Configured() *Factory {
	def := os.Getenv(BaseURLEnv)
	if def == "" {
		def = DefaultBaseURL
	}
	baseURL := lflag.String("api-base-url", def, "Base URL of the WattWise API (env "+BaseURLEnv+")")
	timeout := lflag.Duration("api-timeout", 0, "Timeout for WattWise API requests. 0 means no timeout.")

	f := &Factory{}
	lflag.Do(func() {
		f.baseURL = strings.TrimRight(*baseURL, "/")
		f.client = common.HTTPClient(*timeout)
	})
	return f
}

// NewFactory returns a Factory for baseURL. A nil client uses
// common.HTTPClient without a timeout.
func NewFactory(baseURL string, client *http.Client) *Factory {
	if client == nil {
		client = common.HTTPClient(0)
	}
	return &Factory{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// BaseURL returns the API base URL.
func (f *Factory) BaseURL() string {
	return f.baseURL
}

// Client returns a Client bound to tokens. onUnauthorized, if not nil, is
// called after a 401 response has cleared the token.
func (f *Factory) Client(tokens TokenStore, onUnauthorized func(ctx context.Context)) *Client {
	return New(f.baseURL, f.client, tokens, onUnauthorized)
}

// Client talks to the WattWise API on behalf of one session. Each call is a
// single attempt: there is no retry and no backoff.
type Client struct {
	client         *http.Client
	baseURL        string
	tokens         TokenStore
	onUnauthorized func(ctx context.Context)
}

// New returns a Client. tokens must not be nil.
func New(baseURL string, client *http.Client, tokens TokenStore, onUnauthorized func(ctx context.Context)) *Client {
	if client == nil {
		client = common.HTTPClient(0)
	}
	return &Client{
		client:         client,
		baseURL:        strings.TrimRight(baseURL, "/"),
		tokens:         tokens,
		onUnauthorized: onUnauthorized,
	}
}

// Params are query parameters. Empty values are left out of the request.
type Params map[string]string

func (p Params) encode() string {
	if len(p) == 0 {
		return ""
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	q := url.Values{}
	for _, k := range keys {
		if v := p[k]; v != "" {
			q.Set(k, v)
		}
	}
	return q.Encode()
}

func (c *Client) newRequest(ctx context.Context, method, path string, params Params, body io.Reader) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	u.Path, err = url.JoinPath(u.Path, path)
	if err != nil {
		return nil, err
	}
	u.RawQuery = params.encode()
	return http.NewRequestWithContext(ctx, method, u.String(), body)
}

// Get requests path with params and decodes the JSON body into dest.
func (c *Client) Get(ctx context.Context, path string, params Params, dest any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}
	return c.do(req, path, dest, true)
}

// Login exchanges a user id and password for a token and stores it. A
// rejected login returns ErrInvalidCredentials and leaves the store alone.
func (c *Client) Login(ctx context.Context, userID, password string) (LoginResult, error) {
	body, err := json.Marshal(struct {
		UserID   string `json:"user_id"`
		Password string `json:"password"`
	}{userID, password})
	if err != nil {
		return LoginResult{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, loginPath, nil, bytes.NewReader(body))
	if err != nil {
		return LoginResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var res LoginResult
	if err := c.do(req, loginPath, &res, false); err != nil {
		if code, ok := StatusCode(err); ok && (code == http.StatusUnauthorized || code == http.StatusForbidden) {
			log.Ctx(ctx).InfoContext(ctx, "login rejected", slog.String("userID", userID))
			return LoginResult{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return LoginResult{}, fmt.Errorf("login failed: %w", err)
	}
	if res.Token == "" {
		return LoginResult{}, fmt.Errorf("login failed: empty token in response")
	}
	if res.UserID == "" {
		res.UserID = userID
	}
	if err := c.tokens.SetToken(ctx, res.Token, res.UserID); err != nil {
		return LoginResult{}, fmt.Errorf("failed to store token: %w", err)
	}
	log.Ctx(ctx).DebugContext(ctx, "wattwise login success", slog.String("userID", res.UserID))
	return res, nil
}

// do sends req and decodes a 2xx body into dest. authed requests carry the
// bearer token when one is stored and evict it on a 401.
func (c *Client) do(req *http.Request, path string, dest any, authed bool) error {
	ctx := req.Context()
	if authed {
		if token := c.tokens.Token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "wattwise request failed", slog.String("path", path), slog.Any("error", err))
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"wattwise request",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Path:       path,
			Message:    msg,
		}
		if authed && resp.StatusCode == http.StatusUnauthorized {
			log.Ctx(ctx).InfoContext(ctx, "wattwise token rejected, clearing", slog.String("path", path))
			if err := c.tokens.ClearToken(ctx); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to clear token", slog.Any("error", err))
			}
			if c.onUnauthorized != nil {
				c.onUnauthorized(ctx)
			}
		}
		return apiErr
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to decode wattwise response", slog.String("path", path), slog.Any("error", err))
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
