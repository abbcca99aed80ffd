// Package live keeps a websocket subscription to the server's row change
// events and applies each one to the Local Store as it arrives.
package live

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/dto"
	"github.com/Mussapinga011/PartQuip-sub000/internal/events"
	"github.com/Mussapinga011/PartQuip-sub000/internal/infra"
	"github.com/Mussapinga011/PartQuip-sub000/internal/localstore"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"
)

// ErrSubscriptionExhausted is returned by Run after the retry cap is reached.
// Live updates stay off for the rest of the session.
var ErrSubscriptionExhausted = errors.New("live: subscription retries exhausted")

// Config tunes the reconnect policy.
type Config struct {
	URL         string
	Header      http.Header
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type Channel struct {
	store  *localstore.Store
	bus    *events.Bus
	cfg    Config
	active atomic.Bool
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(store *localstore.Store, bus *events.Bus, cfg Config) *Channel {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = time.Minute
	}
	c := &Channel{store: store, bus: bus, cfg: cfg, sleep: sleepCtx}
	c.active.Store(true)
	return c
}

// Active is false once the channel has given up for the session.
func (c *Channel) Active() bool { return c.active.Load() }

// Run subscribes and applies events until ctx is cancelled. Each failed
// attempt (dial error or dropped connection) waits Backoff(n) before the
// next; a successful connection resets the count. After MaxAttempts
// consecutive failures it publishes TopicLiveInactive and returns
// ErrSubscriptionExhausted.
func (c *Channel) Run(ctx context.Context) error {
	failures := 0
	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			failures = 0
		}
		failures++
		log.Warn().Err(err).Int("attempt", failures).Int("max_attempts", c.cfg.MaxAttempts).
			Msg("live: subscription lost")

		if failures >= c.cfg.MaxAttempts {
			c.active.Store(false)
			log.Error().Int("attempts", failures).Msg("live: giving up, updates arrive through periodic sync only")
			c.bus.Emit(events.TopicLiveInactive, "", failures)
			return ErrSubscriptionExhausted
		}

		infra.LiveReconnects.Inc()
		if err := c.sleep(ctx, Backoff(failures, c.cfg.BaseDelay, c.cfg.MaxDelay)); err != nil {
			return nil
		}
	}
}

// session runs one connection. connected reports whether the dial
// succeeded.
func (c *Channel) session(ctx context.Context) (connected bool, err error) {
	conn, _, err := websocket.Dial(ctx, c.cfg.URL, &websocket.DialOptions{HTTPHeader: c.cfg.Header})
	if err != nil {
		return false, fmt.Errorf("live: dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(4 << 20)
	log.Info().Str("url", c.cfg.URL).Msg("live: subscribed")

	for {
		var ev dto.ChangeEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			return true, fmt.Errorf("live: read: %w", err)
		}
		if _, err := c.Apply(ctx, ev); err != nil {
			// A bad event is skipped; the periodic sync will repair it.
			log.Warn().Err(err).Str("collection", ev.Collection).Str("type", ev.Type).
				Msg("live: event not applied")
		}
	}
}

// Apply writes one change event to the Local Store. INSERT and UPDATE upsert
// the record unless the local copy is as new or newer; DELETE removes it.
// Applying the same event twice leaves the store unchanged the second time.
func (c *Channel) Apply(ctx context.Context, ev dto.ChangeEvent) (applied bool, err error) {
	if !model.IsSyncCollection(ev.Collection) {
		return false, fmt.Errorf("%w: %q", localstore.ErrUnknownCollection, ev.Collection)
	}

	var id string
	switch ev.Type {
	case dto.ChangeInsert, dto.ChangeUpdate:
		rec, rerr := model.RecordFromJSON(ev.Record)
		if rerr != nil {
			return false, rerr
		}
		id = rec.ID
		err = c.store.Update(ctx, func(tx *localstore.Tx) error {
			local, err := tx.Get(ctx, ev.Collection, rec.ID)
			switch {
			case errors.Is(err, localstore.ErrNotFound):
			case err != nil:
				return err
			case !rec.NewerThan(local):
				return nil
			}
			applied = true
			return tx.Upsert(ctx, ev.Collection, rec)
		})
	case dto.ChangeDelete:
		id = ev.OldID
		if id == "" && len(ev.Record) > 0 {
			if rec, rerr := model.RecordFromJSON(ev.Record); rerr == nil {
				id = rec.ID
			}
		}
		if id == "" {
			return false, model.ErrInvalidRecord
		}
		err = c.store.Update(ctx, func(tx *localstore.Tx) error {
			if _, err := tx.Get(ctx, ev.Collection, id); err != nil {
				if errors.Is(err, localstore.ErrNotFound) {
					return nil
				}
				return err
			}
			applied = true
			return tx.Delete(ctx, ev.Collection, id)
		})
	default:
		return false, fmt.Errorf("live: unknown event type %q", ev.Type)
	}
	if err != nil || !applied {
		return false, err
	}

	infra.LiveEvents.WithLabelValues(ev.Collection, ev.Type).Inc()
	c.bus.Emit(events.TopicDataChanged, ev.Collection, id)
	return true, nil
}

// Backoff returns base * 2^(attempt-1), capped at maxDelay.
func Backoff(attempt int, base, maxDelay time.Duration) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	return min(d, maxDelay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
