// Package queue is the Mutation Queue: an append-only, ordered log of local
// writes that still have to reach the remote backend.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/events"
	"github.com/Mussapinga011/PartQuip-sub000/internal/localstore"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Queue stores items in the Local Store's internal queue table. It never
// reorders or deduplicates: two updates of one record are both replayed.
type Queue struct {
	store *localstore.Store
	bus   *events.Bus
	now   func() time.Time
}

func New(store *localstore.Store, bus *events.Bus) *Queue {
	return &Queue{store: store, bus: bus, now: time.Now}
}

// Enqueue appends one mutation in its own transaction and requests a sync.
func (q *Queue) Enqueue(ctx context.Context, op model.Operation, collection string, payload any) (id string, err error) {
	err = q.store.Update(ctx, func(tx *localstore.Tx) error {
		id, err = q.EnqueueTx(ctx, tx, op, collection, payload)
		return err
	})
	return id, err
}

// EnqueueTx appends one mutation inside tx, so the Local Store write and the
// enqueue commit together. The sync request is published after commit.
func (q *Queue) EnqueueTx(ctx context.Context, tx *localstore.Tx, op model.Operation, collection string, payload any) (string, error) {
	if !op.Valid() {
		return "", fmt.Errorf("queue: invalid operation %q", op)
	}
	if !model.IsSyncCollection(collection) {
		return "", fmt.Errorf("queue: %w: %q", localstore.ErrUnknownCollection, collection)
	}

	data, err := snapshot(payload)
	if err != nil {
		return "", err
	}
	rec, err := model.RecordFromJSON(data)
	if err != nil {
		return "", fmt.Errorf("queue: payload: %w", err)
	}

	item := model.MutationQueueItem{
		ID:         uuid.NewString(),
		Operation:  op,
		Collection: collection,
		RecordID:   rec.ID,
		Payload:    data,
		EnqueuedAt: q.now().UTC(),
	}
	if _, err := tx.AppendMutation(ctx, item); err != nil {
		return "", err
	}

	tx.AfterCommit(func() {
		log.Debug().
			Str("queue_id", item.ID).
			Str("operation", string(op)).
			Str("collection", collection).
			Str("record_id", rec.ID).
			Msg("queue: mutation enqueued")
		q.bus.Emit(events.TopicSyncRequested, collection, item.ID)
	})
	return item.ID, nil
}

// ListAll returns every item, oldest first.
func (q *Queue) ListAll(ctx context.Context) (items []model.MutationQueueItem, err error) {
	err = q.store.View(ctx, func(tx *localstore.Tx) error {
		items, err = tx.ListMutations(ctx, false)
		return err
	})
	return items, err
}

// ListPending returns the not-yet-confirmed items, oldest first.
func (q *Queue) ListPending(ctx context.Context) (items []model.MutationQueueItem, err error) {
	err = q.store.View(ctx, func(tx *localstore.Tx) error {
		items, err = tx.ListMutations(ctx, true)
		return err
	})
	return items, err
}

func (q *Queue) MarkConfirmed(ctx context.Context, id string) error {
	return q.store.Update(ctx, func(tx *localstore.Tx) error {
		return tx.MarkMutationConfirmed(ctx, id)
	})
}

// PurgeConfirmed removes every confirmed item and reports how many.
func (q *Queue) PurgeConfirmed(ctx context.Context) (n int64, err error) {
	err = q.store.Update(ctx, func(tx *localstore.Tx) error {
		n, err = tx.PurgeConfirmedMutations(ctx)
		return err
	})
	return n, err
}

func (q *Queue) PendingCount(ctx context.Context) (n int, err error) {
	err = q.store.View(ctx, func(tx *localstore.Tx) error {
		n, err = tx.CountPendingMutations(ctx)
		return err
	})
	return n, err
}

// snapshot returns an independent JSON copy of payload, so later edits of the
// caller's value cannot change what is replayed.
func snapshot(payload any) ([]byte, error) {
	var src []byte
	switch p := payload.(type) {
	case model.Record:
		src = p.Data
	case json.RawMessage:
		src = p
	case []byte:
		src = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("queue: marshal payload: %w", err)
		}
		return b, nil
	}
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}
