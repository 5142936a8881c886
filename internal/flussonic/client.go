// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

/*
client.go - Flussonic REST API Client

This file implements the HTTP client for Flussonic-compatible media
servers: auth probing, stream listing, and push destination management.
Requests are rate limited per server and wrapped in a circuit breaker
so one wedged vendor cannot stall the reconciliation loop.
*/

package flussonic

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/streamwarden/internal/config"
	"github.com/tomtom215/streamwarden/internal/logging"
	"github.com/tomtom215/streamwarden/internal/metrics"
	"github.com/tomtom215/streamwarden/internal/models"
)

// maxErrorBodyBytes caps how much of a vendor error body we read into
// error messages.
const maxErrorBodyBytes = 4096

// API is the vendor surface the rest of the application depends on.
// Tests substitute fakes for it; Client is the production
// implementation.
type API interface {
	ValidateAuth(ctx context.Context) error
	GetStreams(ctx context.Context) ([]StreamObservation, error)
	AddPushDestination(ctx context.Context, streamKey, pushURL string) error
	RemovePushDestination(ctx context.Context, streamKey, pushURL string) error
}

// Factory builds an API client for a server row. The sync manager and
// HTTP handlers construct clients on demand so credential edits take
// effect without a restart.
type Factory func(server *models.Server) API

var _ API = (*Client)(nil)

// BrokenClient returns an API whose every call fails with err. It keeps
// the Factory signature infallible: a server row with an unusable auth
// mode yields a client that reports the construction error on use.
func BrokenClient(err error) API { return brokenClient{err: err} }

type brokenClient struct{ err error }

func (b brokenClient) ValidateAuth(context.Context) error { return b.err }
func (b brokenClient) GetStreams(context.Context) ([]StreamObservation, error) {
	return nil, b.err
}
func (b brokenClient) AddPushDestination(context.Context, string, string) error    { return b.err }
func (b brokenClient) RemovePushDestination(context.Context, string, string) error { return b.err }

// Client talks to a single Flussonic-compatible server.
type Client struct {
	serverID string
	baseURL  string
	auth     Authenticator
	http     *http.Client
	limiter  *rate.Limiter
	cb       *gobreaker.CircuitBreaker[any]
}

// NewClient builds a client for one server. The shared token cache
// carries bearer sessions across client rebuilds; pass the same cache
// instance for the life of the process.
func NewClient(server *models.Server, cfg *config.VendorConfig, cache *TokenCache) (*Client, error) {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	if cfg.InsecureTLS {
		// Config validation rejects this flag in production; it exists
		// for lab servers with self-signed certificates.
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // gated by config validation
		}
	}

	auth, err := newAuthenticator(server, cache, httpClient)
	if err != nil {
		return nil, err
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}

	return &Client{
		serverID: server.ID,
		baseURL:  trimBaseURL(server.URL),
		auth:     auth,
		http:     httpClient,
		limiter:  rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		cb:       newBreaker(server.ID),
	}, nil
}

func trimBaseURL(raw string) string {
	return strings.TrimSuffix(strings.TrimSpace(raw), "/")
}

// newBreaker builds the per-server circuit breaker. It opens after a
// 60% failure rate over at least 10 requests and probes again after
// one minute.
func newBreaker(serverID string) *gobreaker.CircuitBreaker[any] {
	metrics.CircuitBreakerState.WithLabelValues(serverID).Set(0)

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        serverID,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("server_id", name).
				Str("from", breakerStateString(from)).
				Str("to", breakerStateString(to)).
				Msg("Vendor circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
		},
	})
}

func breakerStateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func breakerStateFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// ValidateAuth probes the streams endpoint with the configured
// credentials. A 401/403 means the credentials are wrong, a 404 means
// the URL does not point at a compatible server, and 5xx or transport
// failures mean the server is unreachable.
func (c *Client) ValidateAuth(ctx context.Context) error {
	_, err := c.execute("validate_auth", func() (any, error) {
		resp, err := c.doRequest(ctx, http.MethodGet, "/streamer/api/v3/streams?limit=1", nil, "validate_auth")
		if err != nil {
			return nil, err
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
		_ = resp.Body.Close()
		return nil, nil
	})
	return err
}

// GetStreams fetches and normalizes the full stream list.
func (c *Client) GetStreams(ctx context.Context) ([]StreamObservation, error) {
	result, err := c.execute("get_streams", func() (any, error) {
		resp, err := c.doRequest(ctx, http.MethodGet, "/streamer/api/v3/streams", nil, "get_streams")
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		return decodeStreams(resp.Body)
	})
	if err != nil {
		return nil, err
	}

	observations, ok := result.([]StreamObservation)
	if !ok {
		return nil, &VendorError{Op: "get_streams", Kind: KindProtocol, Message: fmt.Sprintf("unexpected result type %T", result)}
	}
	return observations, nil
}

// decodeStreams accepts both the enveloped and the bare-array payload
// shapes.
func decodeStreams(r io.Reader) ([]StreamObservation, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &VendorError{Op: "get_streams", Kind: KindUnavailable, Message: "failed to read streams response", Err: err}
	}

	var entries []wireStream
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, &VendorError{Op: "get_streams", Kind: KindProtocol, Message: "failed to decode streams array", Err: err}
		}
	} else {
		var envelope streamsEnvelope
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, &VendorError{Op: "get_streams", Kind: KindProtocol, Message: "failed to decode streams envelope", Err: err}
		}
		entries = envelope.Streams
	}

	now := time.Now()
	observations := make([]StreamObservation, 0, len(entries))
	for i := range entries {
		if entries[i].Name == "" {
			// Nameless entries cannot be keyed; skip rather than fail
			// the whole poll.
			continue
		}
		observations = append(observations, entries[i].normalize(now))
	}
	return observations, nil
}

// AddPushDestination appends pushURL to the stream's push list via
// read-modify-write of the stream config. Adding a URL that is already
// present is a no-op.
func (c *Client) AddPushDestination(ctx context.Context, streamKey, pushURL string) error {
	return c.updatePushes(ctx, "add_push", streamKey, func(pushes []string) []string {
		for _, existing := range pushes {
			if existing == pushURL {
				return pushes
			}
		}
		return append(pushes, pushURL)
	})
}

// RemovePushDestination removes pushURL from the stream's push list.
// Removing a URL that is not present is a no-op.
func (c *Client) RemovePushDestination(ctx context.Context, streamKey, pushURL string) error {
	return c.updatePushes(ctx, "remove_push", streamKey, func(pushes []string) []string {
		kept := pushes[:0]
		for _, existing := range pushes {
			if existing != pushURL {
				kept = append(kept, existing)
			}
		}
		return kept
	})
}

func (c *Client) updatePushes(ctx context.Context, op, streamKey string, mutate func([]string) []string) error {
	_, err := c.execute(op, func() (any, error) {
		cfg, err := c.getStreamConfig(ctx, op, streamKey)
		if err != nil {
			return nil, err
		}

		updated := mutate(cfg.Pushes)
		cfg.Pushes = updated
		if cfg.Pushes == nil {
			cfg.Pushes = []string{}
		}

		return nil, c.putStreamConfig(ctx, op, streamKey, cfg)
	})
	return err
}

func (c *Client) getStreamConfig(ctx context.Context, op, streamKey string) (*streamConfig, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/streamer/api/v3/streams/"+url.PathEscape(streamKey), nil, op)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var cfg streamConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, &VendorError{Op: op, Kind: KindProtocol, Message: "failed to decode stream config", Err: err}
	}
	if cfg.Name == "" {
		cfg.Name = streamKey
	}
	return &cfg, nil
}

func (c *Client) putStreamConfig(ctx context.Context, op, streamKey string, cfg *streamConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return &VendorError{Op: op, Kind: KindProtocol, Message: "failed to encode stream config", Err: err}
	}

	resp, err := c.doRequest(ctx, http.MethodPut, "/streamer/api/v3/streams/"+url.PathEscape(streamKey), payload, op)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
	_ = resp.Body.Close()
	return nil
}

// execute runs fn through the circuit breaker and records request
// metrics.
func (c *Client) execute(op string, fn func() (any, error)) (any, error) {
	start := time.Now()
	result, err := c.cb.Execute(fn)
	duration := time.Since(start)

	errKind := ""
	if err != nil {
		errKind = string(KindOf(err))
	}
	metrics.RecordVendorRequest(op, duration, errKind)

	return result, err
}

// doRequest issues one authenticated request, retrying exactly once
// after a 401 with refreshed credentials. Non-2xx responses come back
// as classified VendorErrors with the body consumed.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body []byte, op string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &VendorError{Op: op, Kind: KindUnavailable, Message: "rate limiter wait aborted", Err: err}
	}

	resp, err := c.send(ctx, method, endpoint, body, op)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Stale session token is the common cause; refresh and retry
		// once. A second 401 is a real credential failure.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
		_ = resp.Body.Close()
		c.auth.Invalidate()

		logging.Debug().Str("server_id", c.serverID).Str("operation", op).Msg("Retrying vendor request after 401")

		resp, err = c.send(ctx, method, endpoint, body, op)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, classifyStatus(op, resp.StatusCode, string(respBody))
	}

	return resp, nil
}

func (c *Client) send(ctx context.Context, method, endpoint string, body []byte, op string) (*http.Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, &VendorError{Op: op, Kind: KindUnavailable, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := c.auth.Apply(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &VendorError{Op: op, Kind: KindUnavailable, Message: "request failed", Err: err}
	}
	return resp, nil
}

// classifyStatus maps a non-2xx vendor status onto the error taxonomy.
func classifyStatus(op string, status int, body string) *VendorError {
	var kind ErrorKind
	var message string

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
		message = "credentials rejected"
	case status == http.StatusNotFound:
		kind = KindNotFound
		message = "endpoint not found; URL may not point at a compatible media server"
	case status >= 500:
		kind = KindUnavailable
		message = "server error"
	default:
		kind = KindProtocol
		message = "unexpected response"
	}

	if body != "" {
		message = fmt.Sprintf("%s: %s", message, body)
	}

	return &VendorError{Op: op, Kind: kind, StatusCode: status, Message: message}
}
