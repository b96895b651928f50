package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/inventory/internal/actions"
	"github.com/atvirokodosprendimai/inventory/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/inventory/internal/application"
	"github.com/atvirokodosprendimai/inventory/internal/storage"
	"github.com/atvirokodosprendimai/inventory/internal/wizard"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "secret-admin"
)

type testEnv struct {
	server *httptest.Server
	app    *application.ApplicationService
	hub    *Hub
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "inventory_test.db"))
	require.NoError(t, err)
	require.NoError(t, sqlite.RunMigrations(ctx, db, log))
	repo := sqlite.NewRepository(db)

	meta := application.NewMetadataService(repo, log)
	require.NoError(t, meta.Bootstrap(ctx))
	app := application.NewApplicationService(repo, meta, log)
	require.NoError(t, app.BootstrapAdmin(ctx, adminEmail, adminPassword))
	business := application.NewBusinessService(repo, repo, meta, storage.NewFileStoreOn(memoryfs.New()), log)
	physical := application.NewPhysicalConnectionsService(repo, business, meta, app, log)
	mirrors := application.NewMirrorService(business, meta, app, log)

	promReg := prometheus.NewRegistry()
	metrics, err := actions.NewMetrics(promReg)
	require.NoError(t, err)
	bus := actions.NewBus(log)
	bus.Subscribe(metrics)
	hub := NewHub(log)
	bus.Subscribe(hub)
	t.Cleanup(func() { _ = hub.Close() })

	registry := actions.NewRegistry(app, bus, log, actions.WithMetrics(metrics))
	require.NoError(t, actions.RegisterBuiltins(registry, actions.Services{
		Meta: meta, Business: business, App: app, Physical: physical, Mirrors: mirrors,
	}))
	engine := wizard.NewEngine(time.Minute, log)
	require.NoError(t, engine.Register(wizard.NewPhysicalConnection(meta, business, app, registry)))

	router := NewRouter(Services{
		App: app, Meta: meta, Business: business, Physical: physical, Mirrors: mirrors,
		Actions: registry, Wizards: engine, Events: hub, Gatherer: promReg,
	}, opts, log)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, app: app, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &out)
	require.NotEmpty(t, out.Token)
	return out.Token
}

func (e *testEnv) viewer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	roles, err := e.app.ListRoles(ctx)
	require.NoError(t, err)
	var roleID uint
	for _, r := range roles {
		if r.Key == "viewer" {
			roleID = r.ID
		}
	}
	require.NotZero(t, roleID)
	_, err = e.app.CreateUser(ctx, "viewer@example.com", "secret-viewer", roleID)
	require.NoError(t, err)
	return e.login(t, "viewer@example.com", "secret-viewer")
}

type objectResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Payload struct {
		ID        string `json:"id"`
		ClassName string `json:"class_name"`
	} `json:"payload"`
}

func TestAPIAuthentication(t *testing.T) {
	env := newTestEnv(t, Options{})

	resp := env.do(t, http.MethodGet, "/api/classes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": adminEmail, "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := env.login(t, adminEmail, adminPassword)
	resp = env.do(t, http.MethodGet, "/api/auth/whoami", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var who struct {
		Email       string   `json:"email"`
		Permissions []string `json:"permissions"`
	}
	decodeBody(t, resp, &who)
	assert.Equal(t, adminEmail, who.Email)
	assert.Contains(t, who.Permissions, "*")

	viewer := env.viewer(t)
	resp = env.do(t, http.MethodGet, "/api/classes", viewer, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/objects", viewer, map[string]any{"class": "Country", "name": "Latvia"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t, Options{LoginRateLimit: 0.001, LoginBurst: 2})
	creds := map[string]string{"email": adminEmail, "password": "wrong"}

	for i := 0; i < 2; i++ {
		resp := env.do(t, http.MethodPost, "/api/auth/login", "", creds)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp := env.do(t, http.MethodPost, "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}

func TestObjectLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.login(t, adminEmail, adminPassword)

	resp := env.do(t, http.MethodPost, "/api/objects", token, map[string]any{"class": "Country", "name": "Lithuania"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var created objectResponse
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.Payload.ID)
	assert.Equal(t, "Lithuania created", created.Message)

	resp = env.do(t, http.MethodPost, "/api/objects", token, map[string]any{"class": "NoSuchClass", "name": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/objects", token, map[string]any{"name": "no class"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/objects/-1/children", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var roots []map[string]any
	decodeBody(t, resp, &roots)
	assert.Len(t, roots, 1)

	resp = env.do(t, http.MethodPatch, "/api/objects/"+created.Payload.ID, token, map[string]any{
		"attributes": map[string]string{"name": "Lietuva"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/activity?object="+created.Payload.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []map[string]any
	decodeBody(t, resp, &entries)
	assert.Len(t, entries, 2)

	resp = env.do(t, http.MethodDelete, "/api/objects/"+created.Payload.ID, token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, http.MethodGet, "/api/objects/"+created.Payload.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.login(t, adminEmail, adminPassword)
	resp := env.do(t, http.MethodPost, "/api/objects", token, map[string]any{"class": "Country", "name": "Estonia"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), actions.MetricActionRunsTotal)
	assert.Contains(t, string(body), actions.ActionNewBusinessObject)
}

func TestEventsStreamCompletedActions(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.login(t, adminEmail, adminPassword)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dialer := ws.Dialer{Header: ws.HandshakeHeaderHTTP(http.Header{"Authorization": {"Bearer " + token}})}
	conn, _, _, err := dialer.Dial(ctx, "ws"+strings.TrimPrefix(env.server.URL, "http")+"/events")
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.hub.Watchers() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp := env.do(t, http.MethodPost, "/api/objects", token, map[string]any{"class": "Country", "name": "Poland"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	msg, op, err := wsutil.ReadServerData(conn)
	require.NoError(t, err)
	assert.Equal(t, ws.OpText, op)
	var event actions.ActionCompletedEvent
	require.NoError(t, json.Unmarshal(msg, &event))
	assert.Equal(t, actions.ActionNewBusinessObject, event.ActionID)
	assert.Equal(t, actions.StatusSuccess, event.Status)
	assert.Equal(t, adminEmail, event.ActorEmail)

	resp = env.do(t, http.MethodGet, "/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDialogSubmitRendersFlash(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.login(t, adminEmail, adminPassword)

	resp := env.do(t, http.MethodGet, "/dialogs/"+actions.ActionNewBusinessObject+"?class=Country&id=c1", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(page), "parentId")

	resp = env.do(t, http.MethodPost, "/dialogs/"+actions.ActionNewBusinessObject, token, map[string]any{
		"class": "Country", "name": "Finland", "attributes": "isoCode=FI",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `id="flash"`)
	assert.Contains(t, string(body), "Finland created")

	resp = env.do(t, http.MethodPost, "/dialogs/"+actions.ActionNewBusinessObject, token, map[string]any{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestParseAttributes(t *testing.T) {
	got := parseAttributes("vendor = acme\nbroken\n=skip; serial=S-1")
	assert.Equal(t, map[string]string{"vendor": "acme", "serial": "S-1"}, got)
}
