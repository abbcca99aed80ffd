// Package realtime fans row change events out to websocket subscribers.
// Every server instance runs a Hub; a Redis channel carries events between
// instances so a write on one reaches subscribers on all of them.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/dto"
	"github.com/Mussapinga011/PartQuip-sub000/internal/infra"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

type client struct {
	send   chan []byte
	cancel context.CancelFunc
}

// Hub tracks the connected subscribers of one server instance.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues ev for every subscriber. A subscriber whose buffer is full
// is disconnected; it resynchronises through its own delta sync.
func (h *Hub) Broadcast(ev dto.ChangeEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("collection", ev.Collection).Msg("realtime: marshal event")
		return
	}
	infra.ChangeEvents.WithLabelValues(ev.Collection, ev.Type).Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Warn().Msg("realtime: subscriber too slow, disconnecting")
			c.cancel()
		}
	}
}

// Serve streams events to conn until the peer goes away or ctx ends.
// Messages from the peer are discarded.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(conn.CloseRead(ctx))
	c := &client{send: make(chan []byte, sendBuffer), cancel: cancel}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	log.Info().Int("subscribers", n).Msg("realtime: subscriber connected")

	defer func() {
		cancel()
		h.mu.Lock()
		delete(h.clients, c)
		n := len(h.clients)
		h.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		log.Info().Int("subscribers", n).Msg("realtime: subscriber disconnected")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.send:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, data)
			wcancel()
			if err != nil {
				log.Debug().Err(err).Msg("realtime: write failed")
				return
			}
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.cancel()
	}
}
