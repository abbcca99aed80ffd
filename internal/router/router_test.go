package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/apierror"
	"github.com/Mussapinga011/PartQuip-sub000/internal/config"
	"github.com/Mussapinga011/PartQuip-sub000/internal/events"
	"github.com/Mussapinga011/PartQuip-sub000/internal/handler"
	"github.com/Mussapinga011/PartQuip-sub000/internal/live"
	"github.com/Mussapinga011/PartQuip-sub000/internal/localstore"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
	"github.com/Mussapinga011/PartQuip-sub000/internal/realtime"
	"github.com/Mussapinga011/PartQuip-sub000/internal/remote"
	"github.com/Mussapinga011/PartQuip-sub000/internal/repository"
	"github.com/Mussapinga011/PartQuip-sub000/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret"

// ── In-memory repository ──────────────────────────────────────────────────────

type memRepo struct {
	mu   sync.Mutex
	name string
	rows map[string]model.Record
}

func newMemRepo(name string) *memRepo {
	return &memRepo{name: name, rows: make(map[string]model.Record)}
}

func (m *memRepo) Name() string { return m.name }

func (m *memRepo) List(_ context.Context, since *time.Time) ([]model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Record
	for _, r := range m.rows {
		if since == nil || r.UpdatedAt.After(*since) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (m *memRepo) Insert(_ context.Context, rec model.Record) (model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[rec.ID]; ok {
		return model.Record{}, fmt.Errorf("%w: %s/%s", repository.ErrConflict, m.name, rec.ID)
	}
	m.rows[rec.ID] = rec
	return rec, nil
}

func (m *memRepo) Upsert(_ context.Context, rec model.Record) (model.Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rows[rec.ID]; ok && cur.NewerThan(rec) {
		return cur, false, nil
	}
	m.rows[rec.ID] = rec
	return rec, true, nil
}

func (m *memRepo) Update(_ context.Context, rec model.Record) (model.Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[rec.ID]
	if !ok {
		return model.Record{}, false, fmt.Errorf("%w: %s/%s", repository.ErrNotFound, m.name, rec.ID)
	}
	if cur.NewerThan(rec) {
		return cur, false, nil
	}
	m.rows[rec.ID] = rec
	return rec, true, nil
}

func (m *memRepo) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	delete(m.rows, id)
	return ok, nil
}

// ── Harness ───────────────────────────────────────────────────────────────────

type testServer struct {
	srv    *httptest.Server
	hub    *realtime.Hub
	client *remote.HTTPClient
	token  string
}

func newTestServer(t *testing.T, checks map[string]handler.HealthCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repos := make([]repository.CollectionRepository, 0, len(model.SyncCollections))
	for _, c := range model.SyncCollections {
		repos = append(repos, newMemRepo(c))
	}
	hub := realtime.NewHub()
	cfg := &config.Config{Env: "test", JWTSecret: testSecret, RateLimitPerMinute: 1000}
	r := New(cfg, Deps{
		Repos:     repository.NewRegistryFrom(repos...),
		Hub:       hub,
		Publisher: realtime.LocalPublisher{Hub: hub},
		Checks:    checks,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	token, err := service.NewAuthService(testSecret).IssueToken("loja-centro", service.RoleTerminal, time.Hour)
	require.NoError(t, err)
	return &testServer{
		srv:    srv,
		hub:    hub,
		client: remote.NewHTTPClient(srv.URL, token, nil),
		token:  token,
	}
}

var t0 = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func pecaRecord(t *testing.T, id string, estoque int, at time.Time) model.Record {
	t.Helper()
	p := &model.Peca{
		Codigo:       "C-" + id,
		Nome:         "Amortecedor",
		PrecoCusto:   decimal.RequireFromString("250.00"),
		PrecoVenda:   decimal.RequireFromString("390.00"),
		EstoqueAtual: estoque,
	}
	p.ID = id
	p.Touch(at)
	rec, err := model.NewRecord(p)
	require.NoError(t, err)
	return rec
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestCollections_ProtocolThroughHTTPClient(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()
	c := ts.client

	require.NoError(t, c.Ping(ctx))

	require.NoError(t, c.Insert(ctx, model.CollPecas, pecaRecord(t, "p1", 10, t0)))
	assert.ErrorIs(t, c.Insert(ctx, model.CollPecas, pecaRecord(t, "p1", 10, t0)), remote.ErrConflict)

	assert.ErrorIs(t, c.Update(ctx, model.CollPecas, pecaRecord(t, "nope", 1, t0)), remote.ErrNotFound)

	require.NoError(t, c.Upsert(ctx, model.CollPecas, pecaRecord(t, "p1", 8, t0.Add(time.Hour))))
	require.NoError(t, c.Update(ctx, model.CollPecas, pecaRecord(t, "p1", 99, t0)), "stale write is accepted and ignored")

	all, err := c.FetchAll(ctx, model.CollPecas)
	require.NoError(t, err)
	require.Len(t, all, 1)
	var p model.Peca
	require.NoError(t, all[0].Decode(&p))
	assert.Equal(t, 8, p.EstoqueAtual)

	recent, err := c.FetchUpdatedSince(ctx, model.CollPecas, t0)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
	recent, err = c.FetchUpdatedSince(ctx, model.CollPecas, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, recent)

	require.NoError(t, c.Delete(ctx, model.CollPecas, "p1"))
	require.NoError(t, c.Delete(ctx, model.CollPecas, "p1"))
	all, err = c.FetchAll(ctx, model.CollPecas)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = c.FetchAll(ctx, "usuarios")
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestCollections_RejectsBadRequests(t *testing.T) {
	ts := newTestServer(t, nil)

	cases := []struct {
		name, method, path, body, token string
		want                            int
		code                            string
	}{
		{"no token", http.MethodGet, "/v1/collections/pecas", "", "", http.StatusUnauthorized, apierror.CodeUnauthorized},
		{"bad token", http.MethodGet, "/v1/collections/pecas", "", "not-a-jwt", http.StatusUnauthorized, apierror.CodeUnauthorized},
		{"bad since", http.MethodGet, "/v1/collections/pecas?since=yesterday", "", ts.token, http.StatusBadRequest, apierror.CodeInvalidDocument},
		{"empty body", http.MethodPost, "/v1/collections/pecas", "", ts.token, http.StatusBadRequest, apierror.CodeInvalidDocument},
		{"no id", http.MethodPost, "/v1/collections/pecas", `{"codigo":"x"}`, ts.token, http.StatusBadRequest, apierror.CodeInvalidDocument},
		{"id mismatch", http.MethodPut, "/v1/collections/pecas/a", `{"id":"b"}`, ts.token, http.StatusBadRequest, apierror.CodeInvalidDocument},
		{"unknown collection", http.MethodGet, "/v1/collections/usuarios", "", ts.token, http.StatusNotFound, apierror.CodeUnknownCollection},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			req, err := http.NewRequest(tc.method, ts.srv.URL+tc.path, body)
			require.NoError(t, err)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			resp, err := ts.srv.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.want, resp.StatusCode)

			var envelope map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
			assert.NotEmpty(t, envelope["detail"])
			assert.Equal(t, tc.code, envelope["code"])
		})
	}
}

func TestCollections_ListEnvelope(t *testing.T) {
	ts := newTestServer(t, nil)
	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/v1/collections/vendas", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.token)
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var body struct {
		Collection string            `json:"collection"`
		Records    []json.RawMessage `json:"records"`
		ServerTime time.Time         `json:"server_time"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "vendas", body.Collection)
	assert.NotNil(t, body.Records)
	assert.Empty(t, body.Records)
	assert.False(t, body.ServerTime.IsZero())
}

func TestHealth(t *testing.T) {
	ok := newTestServer(t, map[string]handler.HealthCheck{
		"db": func(context.Context) error { return nil },
	})
	require.NoError(t, ok.client.Ping(context.Background()))

	down := newTestServer(t, map[string]handler.HealthCheck{
		"db":    func(context.Context) error { return nil },
		"redis": func(context.Context) error { return fmt.Errorf("dial tcp: refused") },
	})
	resp, err := http.Get(down.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "connected", body["db"])
	assert.Equal(t, "error", body["redis"])
	assert.Equal(t, false, body["ok"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	require.NoError(t, ts.client.Ping(context.Background()))
	resp, err := http.Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRealtime_WriteReachesLiveChannel(t *testing.T) {
	ts := newTestServer(t, nil)
	store, err := localstore.Open(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ch := live.New(store, events.New(), live.Config{
		URL:    ts.client.RealtimeURL(),
		Header: ts.client.AuthHeader(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = ch.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool { return ts.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ts.client.Insert(context.Background(), model.CollPecas, pecaRecord(t, "p9", 3, t0)))
	require.Eventually(t, func() bool {
		_, err := store.Get(context.Background(), model.CollPecas, "p9")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ts.client.Delete(context.Background(), model.CollPecas, "p9"))
	require.Eventually(t, func() bool {
		_, err := store.Get(context.Background(), model.CollPecas, "p9")
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
}
