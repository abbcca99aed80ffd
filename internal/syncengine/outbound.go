package syncengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/events"
	"github.com/Mussapinga011/PartQuip-sub000/internal/infra"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
	"github.com/Mussapinga011/PartQuip-sub000/internal/queue"
	"github.com/Mussapinga011/PartQuip-sub000/internal/remote"

	"github.com/rs/zerolog/log"
)

var (
	// ErrSyncInProgress is returned when a pass is requested while one of the
	// same kind is running. The request is dropped, not queued.
	ErrSyncInProgress = errors.New("sync: pass already in progress")
	// ErrOffline is returned when a pass is requested while the remote is
	// known to be unreachable.
	ErrOffline = errors.New("sync: offline")
	// ErrRemoteSend wraps the failure of one queue item. It is logged and the
	// item stays pending; it never aborts the pass.
	ErrRemoteSend = errors.New("sync: remote send failed")
)

// Result summarizes one outbound pass.
type Result struct {
	Attempted int   `json:"attempted"`
	Sent      int   `json:"sent"`
	Failed    int   `json:"failed"`
	Purged    int64 `json:"purged"`
}

// Outbound drains the Mutation Queue against the remote backend.
type Outbound struct {
	queue         *queue.Queue
	remote        remote.Backend
	state         *State
	bus           *events.Bus
	upsertInserts bool
	now           func() time.Time
}

// NewOutbound builds the engine. With upsertInserts, queued inserts are sent
// as upserts so a replayed insert cannot fail on the remote.
func NewOutbound(q *queue.Queue, backend remote.Backend, state *State, bus *events.Bus, upsertInserts bool) *Outbound {
	return &Outbound{
		queue:         q,
		remote:        backend,
		state:         state,
		bus:           bus,
		upsertInserts: upsertInserts,
		now:           time.Now,
	}
}

// Run performs one pass: every pending item in enqueue order, one at a time.
// A failed item is logged and left pending; the pass moves on to the next.
// Confirmed items are purged at the end.
func (o *Outbound) Run(ctx context.Context) (res Result, err error) {
	if !o.state.TryBeginOutbound() {
		infra.SyncPasses.WithLabelValues("outbound", "dropped").Inc()
		return res, ErrSyncInProgress
	}
	defer func() {
		o.state.EndOutbound(o.now().UTC(), err)
		result := "ok"
		if err != nil {
			result = "error"
		}
		infra.SyncPasses.WithLabelValues("outbound", result).Inc()
	}()

	if !o.state.Online() {
		return res, ErrOffline
	}

	items, err := o.queue.ListPending(ctx)
	if err != nil {
		return res, err
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Attempted++

		if err := o.send(ctx, item); err != nil {
			res.Failed++
			infra.OutboundItems.WithLabelValues(item.Collection, "failed").Inc()
			log.Warn().
				Err(fmt.Errorf("%w: %w", ErrRemoteSend, err)).
				Str("queue_id", item.ID).
				Str("operation", string(item.Operation)).
				Str("collection", item.Collection).
				Str("record_id", item.RecordID).
				Msg("sync: item left pending")
			continue
		}

		if err := o.queue.MarkConfirmed(ctx, item.ID); err != nil {
			// Sent but not marked: it will be sent again next pass.
			res.Failed++
			log.Error().Err(err).Str("queue_id", item.ID).Msg("sync: mark confirmed")
			continue
		}
		res.Sent++
		infra.OutboundItems.WithLabelValues(item.Collection, "sent").Inc()
	}

	if res.Purged, err = o.queue.PurgeConfirmed(ctx); err != nil {
		return res, err
	}
	if n, perr := o.queue.PendingCount(ctx); perr == nil {
		infra.QueuePending.Set(float64(n))
	}

	if res.Attempted > 0 {
		log.Info().
			Int("attempted", res.Attempted).
			Int("sent", res.Sent).
			Int("failed", res.Failed).
			Int64("purged", res.Purged).
			Msg("sync: outbound pass finished")
	}
	o.bus.Emit(events.TopicSyncCompleted, "", res)
	return res, nil
}

func (o *Outbound) send(ctx context.Context, item model.MutationQueueItem) error {
	if item.Operation == model.OpDelete {
		return o.remote.Delete(ctx, item.Collection, item.RecordID)
	}

	rec, err := model.RecordFromJSON(item.Payload)
	if err != nil {
		return err
	}

	switch item.Operation {
	case model.OpInsert:
		if o.upsertInserts {
			return o.remote.Upsert(ctx, item.Collection, rec)
		}
		err = o.remote.Insert(ctx, item.Collection, rec)
		if errors.Is(err, remote.ErrConflict) {
			// An earlier attempt reached the remote but was never confirmed.
			return nil
		}
		return err
	case model.OpUpdate:
		err = o.remote.Update(ctx, item.Collection, rec)
		if errors.Is(err, remote.ErrNotFound) {
			// Payloads are full documents, so a row the remote never saw can
			// be created from the update.
			return o.remote.Upsert(ctx, item.Collection, rec)
		}
		return err
	default:
		return fmt.Errorf("unknown operation %q", item.Operation)
	}
}
