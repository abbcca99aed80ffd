package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/dto"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hubServer(t *testing.T, hub *Hub) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(r.Context(), conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHub_BroadcastReachesSubscribers(t *testing.T) {
	hub := NewHub()
	url := hubServer(t, hub)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer a.CloseNow()
	b, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer b.CloseNow()
	require.Eventually(t, func() bool { return hub.Count() == 2 }, time.Second, 5*time.Millisecond)

	ev := dto.ChangeEvent{
		Type:            dto.ChangeUpdate,
		Collection:      "pecas",
		Record:          json.RawMessage(`{"id":"p1","estoque_atual":4}`),
		CommitTimestamp: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	hub.Broadcast(ev)

	for _, conn := range []*websocket.Conn{a, b} {
		var got dto.ChangeEvent
		require.NoError(t, wsjson.Read(ctx, conn, &got))
		assert.Equal(t, ev.Type, got.Type)
		assert.Equal(t, ev.Collection, got.Collection)
		assert.JSONEq(t, string(ev.Record), string(got.Record))
		assert.True(t, ev.CommitTimestamp.Equal(got.CommitTimestamp))
	}
}

func TestHub_DropsDisconnectedSubscriber(t *testing.T) {
	hub := NewHub()
	url := hubServer(t, hub)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 5*time.Millisecond)

	hub.Broadcast(dto.ChangeEvent{Type: dto.ChangeDelete, Collection: "pecas", OldID: "p1"})
}

func TestLocalPublisher(t *testing.T) {
	hub := NewHub()
	url := hubServer(t, hub)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	var p Publisher = LocalPublisher{Hub: hub}
	require.NoError(t, p.Publish(ctx, dto.ChangeEvent{Type: dto.ChangeDelete, Collection: "vendas", OldID: "v1"}))

	var got dto.ChangeEvent
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, "v1", got.OldID)
}
