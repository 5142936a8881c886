// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/streamwarden/internal/auth"
	"github.com/tomtom215/streamwarden/internal/config"
	"github.com/tomtom215/streamwarden/internal/database"
	"github.com/tomtom215/streamwarden/internal/flussonic"
	"github.com/tomtom215/streamwarden/internal/logging"
	"github.com/tomtom215/streamwarden/internal/models"
	ws "github.com/tomtom215/streamwarden/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "json", Output: io.Discard})
}

// fakeVendor implements flussonic.API with canned outcomes so handlers
// can be exercised without a live media server.
type fakeVendor struct {
	mu sync.Mutex

	validateErr error
	pushErr     error

	validateCalls int
	addCalls      []pushCall
	removeCalls   []pushCall

	// serverIDs records the server each client was built for.
	serverIDs []string
}

type pushCall struct {
	streamKey string
	url       string
}

func (f *fakeVendor) ValidateAuth(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validateCalls++
	return f.validateErr
}

func (f *fakeVendor) GetStreams(ctx context.Context) ([]flussonic.StreamObservation, error) {
	return nil, nil
}

func (f *fakeVendor) AddPushDestination(ctx context.Context, streamKey, pushURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.addCalls = append(f.addCalls, pushCall{streamKey, pushURL})
	return nil
}

func (f *fakeVendor) RemovePushDestination(ctx context.Context, streamKey, pushURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.removeCalls = append(f.removeCalls, pushCall{streamKey, pushURL})
	return nil
}

type fakeSyncManager struct {
	lastSync time.Time
	triggers int
}

func (f *fakeSyncManager) LastSyncTime() time.Time               { return f.lastSync }
func (f *fakeSyncManager) TriggerSync(ctx context.Context) error { f.triggers++; return nil }

// testEnv wires a full router against an in-memory database.
type testEnv struct {
	db      *database.DB
	router  http.Handler
	vendor  *fakeVendor
	syncMgr *fakeSyncManager
	hub     *ws.Hub
	jwt     *auth.JWTManager

	admin       *models.User
	viewer      *models.User
	adminToken  string
	viewerToken string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{}
	cfg.Security.JWTSecret = "test-secret-that-is-long-enough-0123"
	cfg.Security.SessionTimeout = time.Hour
	cfg.Security.CORSOrigins = []string{"*"}
	cfg.Security.RateLimitDisabled = true

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	require.NoError(t, err)

	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.RunWithContext(ctx) }()
	t.Cleanup(cancel)

	vendor := &fakeVendor{}
	factory := func(server *models.Server) flussonic.API {
		vendor.mu.Lock()
		vendor.serverIDs = append(vendor.serverIDs, server.ID)
		vendor.mu.Unlock()
		return vendor
	}
	syncMgr := &fakeSyncManager{}

	handler := NewHandler(db, factory, syncMgr, jwtManager, hub, cfg)
	router := NewRouter(handler, jwtManager, cfg)

	env := &testEnv{
		db:      db,
		router:  router,
		vendor:  vendor,
		syncMgr: syncMgr,
		hub:     hub,
		jwt:     jwtManager,
	}
	env.admin = env.createUser(t, "admin", "admin-password", true)
	env.viewer = env.createUser(t, "viewer", "viewer-password", false)
	env.adminToken = env.tokenFor(t, env.admin)
	env.viewerToken = env.tokenFor(t, env.viewer)
	return env
}

func (env *testEnv) createUser(t *testing.T, username, password string, isAdmin bool) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	user := &models.User{Username: username, PasswordHash: hash, IsAdmin: isAdmin}
	require.NoError(t, env.db.CreateUser(context.Background(), user))
	return user
}

func (env *testEnv) tokenFor(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := env.jwt.GenerateToken(user.ID, user.Username, user.IsAdmin)
	require.NoError(t, err)
	return token
}

func (env *testEnv) createServer(t *testing.T, name string) *models.Server {
	t.Helper()
	server := &models.Server{
		Name:     name,
		URL:      "https://" + name + ".example.com",
		AuthMode: models.AuthModeBasic,
		Username: "ops",
		Password: "secret",
	}
	require.NoError(t, env.db.CreateServer(context.Background(), server))
	return server
}

func (env *testEnv) createStream(t *testing.T, serverID, streamKey string) *models.Stream {
	t.Helper()
	ctx := context.Background()
	status := &models.StreamStatus{Alive: true, Clients: 1, RetrievedAt: time.Now()}
	require.NoError(t, env.db.UpsertStreamObservation(ctx, serverID, streamKey, status))

	streams, err := env.db.ListServerStreams(ctx, serverID)
	require.NoError(t, err)
	for i := range streams {
		if streams[i].StreamKey == streamKey {
			return &streams[i]
		}
	}
	t.Fatalf("stream %q not found after upsert", streamKey)
	return nil
}

func (env *testEnv) grant(t *testing.T, userID, streamID string) {
	t.Helper()
	perm := &models.Permission{UserID: userID, StreamID: streamID}
	require.NoError(t, env.db.CreatePermission(context.Background(), perm))
}

// envelope mirrors models.APIResponse with a raw Data payload so tests
// can decode it into the expected concrete type.
type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func (env *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, *envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	var resp envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, &resp
}

func decodeData(t *testing.T, resp *envelope, v interface{}) {
	t.Helper()
	require.NotNil(t, resp.Data)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}
