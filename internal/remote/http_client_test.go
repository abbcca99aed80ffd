package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/infra"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, id string, at time.Time) model.Record {
	t.Helper()
	c := &model.Categoria{Nome: "Filtros"}
	c.ID = id
	c.Touch(at)
	rec, err := model.NewRecord(c)
	require.NoError(t, err)
	return rec
}

func TestHTTPClient_FetchUpdatedSince(t *testing.T) {
	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var gotAuth, gotSince string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/collections/categorias", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotSince = r.URL.Query().Get("since")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"collection":"categorias","records":[
			{"id":"c1","nome":"Filtros","updated_at":"2026-03-02T08:00:00Z"}
		],"server_time":"2026-03-02T09:00:00Z"}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "tok", nil)
	recs, err := c.FetchUpdatedSince(context.Background(), model.CollCategorias, since)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "c1", recs[0].ID)
	assert.True(t, recs[0].UpdatedAt.Equal(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "2026-03-01T12:00:00Z", gotSince)
}

func TestHTTPClient_WriteMethods(t *testing.T) {
	type call struct{ method, path, body string }
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		calls = append(calls, call{r.Method, r.URL.Path, string(b)})
		_ = json.NewEncoder(w).Encode(WriteResponse{Applied: true})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", nil)
	ctx := context.Background()
	rec := record(t, "c1", time.Now())

	require.NoError(t, c.Insert(ctx, model.CollCategorias, rec))
	require.NoError(t, c.Upsert(ctx, model.CollCategorias, rec))
	require.NoError(t, c.Update(ctx, model.CollCategorias, rec))
	require.NoError(t, c.Delete(ctx, model.CollCategorias, "c1"))

	require.Len(t, calls, 4)
	assert.Equal(t, call{http.MethodPost, "/v1/collections/categorias", string(rec.Data)}, calls[0])
	assert.Equal(t, http.MethodPut, calls[1].method)
	assert.Equal(t, "/v1/collections/categorias/c1", calls[1].path)
	assert.Equal(t, http.MethodPatch, calls[2].method)
	assert.Equal(t, call{http.MethodDelete, "/v1/collections/categorias/c1", ""}, calls[3])
}

func TestHTTPClient_StatusMapping(t *testing.T) {
	status := map[string]int{
		"/v1/collections/categorias":    http.StatusConflict,
		"/v1/collections/categorias/c1": http.StatusNotFound,
		"/health":                       http.StatusUnauthorized,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status[r.URL.Path])
		_, _ = io.WriteString(w, `{"detail":"nope"}`)
	}))
	defer srv.Close()

	breaker := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{FailureThreshold: 1})
	c := NewHTTPClient(srv.URL, "", breaker)
	ctx := context.Background()
	rec := record(t, "c1", time.Now())

	assert.ErrorIs(t, c.Insert(ctx, model.CollCategorias, rec), ErrConflict)
	assert.ErrorIs(t, c.Update(ctx, model.CollCategorias, rec), ErrNotFound)
	assert.ErrorIs(t, c.Ping(ctx), ErrUnauthorized)
	assert.Equal(t, infra.CBClosed, breaker.State(), "client errors must not trip the breaker")
}

func TestHTTPClient_ServerErrorsOpenBreaker(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{FailureThreshold: 2, OpenTimeout: time.Hour})
	c := NewHTTPClient(srv.URL, "", breaker)
	ctx := context.Background()

	assert.ErrorIs(t, c.Ping(ctx), ErrUnavailable)
	assert.ErrorIs(t, c.Ping(ctx), ErrUnavailable)
	assert.ErrorIs(t, c.Ping(ctx), infra.ErrCircuitOpen)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestHTTPClient_RealtimeURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8000/v1/realtime", NewHTTPClient("http://localhost:8000", "", nil).RealtimeURL())
	assert.Equal(t, "wss://api.partquip.co.mz/v1/realtime", NewHTTPClient("https://api.partquip.co.mz/", "", nil).RealtimeURL())

	h := NewHTTPClient("http://x", "abc", nil).AuthHeader()
	assert.Equal(t, "Bearer abc", h.Get("Authorization"))
}

func TestMemory_WriteRules(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.Insert(ctx, model.CollCategorias, record(t, "c1", t0)))
	assert.ErrorIs(t, m.Insert(ctx, model.CollCategorias, record(t, "c1", t0)), ErrConflict)
	assert.ErrorIs(t, m.Update(ctx, model.CollCategorias, record(t, "c2", t0)), ErrNotFound)

	require.NoError(t, m.Upsert(ctx, model.CollCategorias, record(t, "c1", t0.Add(time.Hour))))
	require.NoError(t, m.Upsert(ctx, model.CollCategorias, record(t, "c1", t0)), "stale write is ignored, not rejected")
	got, ok := m.Get(model.CollCategorias, "c1")
	require.True(t, ok)
	assert.True(t, got.UpdatedAt.Equal(t0.Add(time.Hour)))

	recs, err := m.FetchUpdatedSince(ctx, model.CollCategorias, t0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	m.SetOffline(true)
	assert.ErrorIs(t, m.Ping(ctx), ErrUnavailable)
}
