// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package flussonic

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/streamwarden/internal/logging"
	"github.com/tomtom215/streamwarden/internal/metrics"
	"github.com/tomtom215/streamwarden/internal/models"
)

// Authenticator attaches credentials to outgoing vendor requests.
// Implementations must be safe for concurrent use; one authenticator is
// shared by every request the client issues for its server.
type Authenticator interface {
	// Apply sets the authorization material on req, acquiring a token
	// first if the strategy needs one.
	Apply(ctx context.Context, req *http.Request) error
	// Invalidate discards any cached credential state so the next
	// Apply starts fresh. Called after a 401 before the single retry.
	Invalidate()
}

// BasicAuth sends static HTTP Basic credentials on every request.
// There is nothing to cache or invalidate.
type BasicAuth struct {
	username string
	password string
}

func NewBasicAuth(username, password string) *BasicAuth {
	return &BasicAuth{username: username, password: password}
}

func (a *BasicAuth) Apply(_ context.Context, req *http.Request) error {
	req.SetBasicAuth(a.username, a.password)
	return nil
}

func (a *BasicAuth) Invalidate() {}

// TokenCache holds short-lived bearer session tokens keyed by server
// ID. One cache instance is shared across all bearer authenticators so
// clients rebuilt after a config change reuse live tokens.
type TokenCache struct {
	mu     sync.Mutex
	tokens map[string]cachedToken
	now    func() time.Time
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

func NewTokenCache() *TokenCache {
	return &TokenCache{
		tokens: make(map[string]cachedToken),
		now:    time.Now,
	}
}

// Get returns the cached token for serverID if it has not expired.
func (c *TokenCache) Get(serverID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.tokens[serverID]
	if !ok || !entry.expiresAt.After(c.now()) {
		return "", false
	}
	return entry.token, true
}

// Put stores a token with its expiry, shaving a safety margin so we
// refresh before the server-side deadline.
func (c *TokenCache) Put(serverID, token string, ttl time.Duration) {
	const expiryMargin = 30 * time.Second

	if ttl > 2*expiryMargin {
		ttl -= expiryMargin
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[serverID] = cachedToken{token: token, expiresAt: c.now().Add(ttl)}
}

// Drop removes any cached token for serverID.
func (c *TokenCache) Drop(serverID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, serverID)
}

// BearerAuth exchanges a long-lived API key for a short-lived session
// token and sends it as an Authorization bearer header. Tokens are
// cached per server and re-acquired on expiry or after a 401.
type BearerAuth struct {
	serverID string
	baseURL  string
	apiKey   string
	cache    *TokenCache
	client   *http.Client

	// loginMu serializes token exchange so concurrent 401s trigger a
	// single refresh instead of a stampede.
	loginMu sync.Mutex
}

func NewBearerAuth(server *models.Server, cache *TokenCache, client *http.Client) *BearerAuth {
	return &BearerAuth{
		serverID: server.ID,
		baseURL:  trimBaseURL(server.URL),
		apiKey:   server.APIKey,
		cache:    cache,
		client:   client,
	}
}

func (a *BearerAuth) Apply(ctx context.Context, req *http.Request) error {
	token, ok := a.cache.Get(a.serverID)
	if !ok {
		var err error
		token, err = a.login(ctx)
		if err != nil {
			return err
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (a *BearerAuth) Invalidate() {
	a.cache.Drop(a.serverID)
}

// login performs the token exchange against the vendor session
// endpoint. The default TTL covers servers that omit expires_in.
func (a *BearerAuth) login(ctx context.Context) (string, error) {
	a.loginMu.Lock()
	defer a.loginMu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if token, ok := a.cache.Get(a.serverID); ok {
		return token, nil
	}

	const defaultTokenTTL = 10 * time.Minute

	payload, err := json.Marshal(map[string]string{"apikey": a.apiKey})
	if err != nil {
		return "", &VendorError{Op: "login", Kind: KindProtocol, Message: "failed to encode login payload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/streamer/api/v3/session", bytes.NewReader(payload))
	if err != nil {
		return "", &VendorError{Op: "login", Kind: KindUnavailable, Message: "failed to create login request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", &VendorError{Op: "login", Kind: KindUnavailable, Message: "login request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		kind := KindUnavailable
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = KindAuth
		}
		return "", &VendorError{
			Op:         "login",
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("token exchange rejected: %s", string(body)),
		}
	}

	var session sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", &VendorError{Op: "login", Kind: KindProtocol, Message: "failed to decode session response", Err: err}
	}
	if session.Token == "" {
		return "", &VendorError{Op: "login", Kind: KindProtocol, Message: "session response carried no token"}
	}

	ttl := defaultTokenTTL
	if session.ExpiresIn > 0 {
		ttl = time.Duration(session.ExpiresIn) * time.Second
	}
	a.cache.Put(a.serverID, session.Token, ttl)
	metrics.VendorTokenRefreshes.Inc()

	logging.Debug().Str("server_id", a.serverID).Dur("ttl", ttl).Msg("Acquired vendor session token")

	return session.Token, nil
}

// newAuthenticator selects the strategy for a server's configured auth
// mode.
func newAuthenticator(server *models.Server, cache *TokenCache, client *http.Client) (Authenticator, error) {
	switch server.AuthMode {
	case models.AuthModeBasic:
		return NewBasicAuth(server.Username, server.Password), nil
	case models.AuthModeBearer:
		return NewBearerAuth(server, cache, client), nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", server.AuthMode)
	}
}
