package syncengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/config"
	"github.com/Mussapinga011/PartQuip-sub000/internal/events"
	"github.com/Mussapinga011/PartQuip-sub000/internal/infra"
	"github.com/Mussapinga011/PartQuip-sub000/internal/localstore"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
	"github.com/Mussapinga011/PartQuip-sub000/internal/queue"
	"github.com/Mussapinga011/PartQuip-sub000/internal/remote"

	"github.com/rs/zerolog/log"
)

const (
	metaFirstSyncDone = "first_sync_done"
	metaLastFullSync  = "last_full_sync"
	watermarkPrefix   = "watermark:"
)

// coreCollections must hold data once a first sync has completed.
var coreCollections = []string{model.CollCategorias, model.CollPecas}

// Trigger says why a reconcile was requested.
type Trigger string

const (
	TriggerStartup   Trigger = "startup"
	TriggerReconnect Trigger = "reconnect"
	TriggerPeriodic  Trigger = "periodic"
	TriggerManual    Trigger = "manual"
)

// InboundResult summarizes one inbound pass.
type InboundResult struct {
	Mode     string `json:"mode"` // full | delta | skipped
	Fetched  int    `json:"fetched"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
	Pushed   int    `json:"pushed"`
	Kept     int    `json:"kept"`
}

// Reconciler pulls remote state into the Local Store. Both source variants
// of inbound sync are modes of this one type. Both replace everything on
// start and reconnect; between those INBOUND_MODE=delta merges changed rows
// on every pass and full_on_reconnect leaves inbound to the live channel.
type Reconciler struct {
	store  *localstore.Store
	queue  *queue.Queue
	remote remote.Backend
	state  *State
	bus    *events.Bus
	mode   string
	now    func() time.Time
}

func NewReconciler(store *localstore.Store, q *queue.Queue, backend remote.Backend, state *State, bus *events.Bus, mode string) *Reconciler {
	if mode != config.InboundModeFullOnReconnect {
		mode = config.InboundModeDelta
	}
	return &Reconciler{store: store, queue: q, remote: backend, state: state, bus: bus, mode: mode, now: time.Now}
}

func (r *Reconciler) Mode() string { return r.mode }

// Reconcile picks full, delta or nothing for trigger according to the mode.
func (r *Reconciler) Reconcile(ctx context.Context, trigger Trigger) (InboundResult, error) {
	needsFull, err := r.NeedsFullSync(ctx)
	if err != nil {
		return InboundResult{}, err
	}

	// Startup and reconnect always replace: delta never sees remote deletes.
	full := needsFull
	switch trigger {
	case TriggerStartup, TriggerReconnect:
		full = true
	case TriggerPeriodic:
		if r.mode == config.InboundModeFullOnReconnect && !needsFull {
			return InboundResult{Mode: "skipped"}, nil
		}
	}

	if full {
		return r.FullSync(ctx)
	}
	return r.DeltaSync(ctx)
}

// NeedsFullSync is true until a full sync has completed and the core
// collections hold data.
func (r *Reconciler) NeedsFullSync(ctx context.Context) (bool, error) {
	done, _, err := r.store.GetMeta(ctx, metaFirstSyncDone)
	if err != nil {
		return false, err
	}
	if done != "true" {
		return true, nil
	}
	for _, coll := range coreCollections {
		n, err := r.store.Count(ctx, coll)
		if err != nil {
			return false, err
		}
		if n == 0 {
			return true, nil
		}
	}
	return false, nil
}

// FullSync downloads every collection and replaces the local copies in one
// transaction. Mutations still waiting in the queue are re-applied on top, so
// local changes that have not reached the remote survive the replace.
func (r *Reconciler) FullSync(ctx context.Context) (res InboundResult, err error) {
	res.Mode = "full"
	if !r.state.TryBeginInbound() {
		infra.SyncPasses.WithLabelValues("full", "dropped").Inc()
		return res, ErrSyncInProgress
	}
	defer func() { r.finish("full", err) }()

	if !r.state.Online() {
		return res, ErrOffline
	}

	fetched := make(map[string][]model.Record, len(model.SyncCollections))
	for _, coll := range model.SyncCollections {
		recs, err := r.remote.FetchAll(ctx, coll)
		if err != nil {
			return res, fmt.Errorf("full sync: fetch %s: %w", coll, err)
		}
		fetched[coll] = recs
		res.Fetched += len(recs)
	}

	now := r.now().UTC()
	err = r.store.Update(ctx, func(tx *localstore.Tx) error {
		for _, coll := range model.SyncCollections {
			if err := tx.Clear(ctx, coll); err != nil {
				return err
			}
			var wm time.Time
			for _, rec := range fetched[coll] {
				if err := tx.Upsert(ctx, coll, rec); err != nil {
					return err
				}
				if rec.UpdatedAt.After(wm) {
					wm = rec.UpdatedAt
				}
			}
			if !wm.IsZero() {
				if err := tx.SetMeta(ctx, watermarkPrefix+coll, wm.Format(time.RFC3339Nano)); err != nil {
					return err
				}
			}
		}

		pending, err := tx.ListMutations(ctx, true)
		if err != nil {
			return err
		}
		for _, item := range pending {
			if err := reapply(ctx, tx, item); err != nil {
				return err
			}
		}
		res.Kept = len(pending)

		if err := tx.SetMeta(ctx, metaFirstSyncDone, "true"); err != nil {
			return err
		}
		return tx.SetMeta(ctx, metaLastFullSync, now.Format(time.RFC3339Nano))
	})
	if err != nil {
		return res, err
	}

	for _, coll := range model.SyncCollections {
		infra.InboundRecords.WithLabelValues(coll, "replaced").Add(float64(len(fetched[coll])))
		r.bus.Emit(events.TopicDataChanged, coll, nil)
	}
	log.Info().Int("records", res.Fetched).Int("pending_kept", res.Kept).Msg("sync: full sync finished")
	r.bus.Emit(events.TopicSyncCompleted, "", res)
	return res, nil
}

func reapply(ctx context.Context, tx *localstore.Tx, item model.MutationQueueItem) error {
	if item.Operation == model.OpDelete {
		return tx.Delete(ctx, item.Collection, item.RecordID)
	}
	rec, err := model.RecordFromJSON(item.Payload)
	if err != nil {
		return fmt.Errorf("full sync: queued %s: %w", item.ID, err)
	}
	return tx.Upsert(ctx, item.Collection, rec)
}

// DeltaSync fetches, per collection, the remote rows changed after the stored
// watermark and merges them last-write-wins:
//
//   - absent locally: inserted
//   - remote newer:   local copy replaced
//   - local newer:    local copy kept and pushed to the remote
//
// The watermark advances only after the collection's batch commits. A failing
// collection is logged and skipped; the others still sync.
func (r *Reconciler) DeltaSync(ctx context.Context) (res InboundResult, err error) {
	res.Mode = "delta"
	if !r.state.TryBeginInbound() {
		infra.SyncPasses.WithLabelValues("delta", "dropped").Inc()
		return res, ErrSyncInProgress
	}
	defer func() { r.finish("delta", err) }()

	if !r.state.Online() {
		return res, ErrOffline
	}

	var errs []error
	for _, coll := range model.SyncCollections {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := r.deltaCollection(ctx, coll, &res); err != nil {
			log.Warn().Err(err).Str("collection", coll).Msg("sync: delta merge failed")
			errs = append(errs, fmt.Errorf("%s: %w", coll, err))
		}
	}

	if res.Fetched > 0 {
		log.Info().
			Int("fetched", res.Fetched).
			Int("inserted", res.Inserted).
			Int("updated", res.Updated).
			Int("pushed", res.Pushed).
			Msg("sync: delta sync finished")
	}
	r.bus.Emit(events.TopicSyncCompleted, "", res)
	return res, errors.Join(errs...)
}

func (r *Reconciler) deltaCollection(ctx context.Context, coll string, res *InboundResult) error {
	since, err := r.Watermark(ctx, coll)
	if err != nil {
		return err
	}
	recs, err := r.remote.FetchUpdatedSince(ctx, coll, since)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	res.Fetched += len(recs)

	var push []model.Record
	var inserted, updated int
	err = r.store.Update(ctx, func(tx *localstore.Tx) error {
		wm := since
		for _, rec := range recs {
			if rec.UpdatedAt.After(wm) {
				wm = rec.UpdatedAt
			}
			local, err := tx.Get(ctx, coll, rec.ID)
			switch {
			case errors.Is(err, localstore.ErrNotFound):
				if err := tx.Insert(ctx, coll, rec); err != nil {
					return err
				}
				inserted++
			case err != nil:
				return err
			case rec.NewerThan(local):
				if err := tx.Upsert(ctx, coll, rec); err != nil {
					return err
				}
				updated++
			case local.NewerThan(rec):
				push = append(push, local)
			}
		}
		if wm.After(since) {
			return tx.SetMeta(ctx, watermarkPrefix+coll, wm.Format(time.RFC3339Nano))
		}
		return nil
	})
	if err != nil {
		return err
	}
	res.Inserted += inserted
	res.Updated += updated
	infra.InboundRecords.WithLabelValues(coll, "inserted").Add(float64(inserted))
	infra.InboundRecords.WithLabelValues(coll, "updated").Add(float64(updated))
	if inserted+updated > 0 {
		r.bus.Emit(events.TopicDataChanged, coll, nil)
	}

	for _, local := range push {
		if err := r.remote.Upsert(ctx, coll, local); err != nil {
			// Hand it to the queue so the next outbound pass retries it.
			log.Warn().Err(err).Str("collection", coll).Str("record_id", local.ID).
				Msg("sync: push of newer local copy failed; queued")
			if _, qerr := r.queue.Enqueue(ctx, model.OpUpdate, coll, local); qerr != nil {
				return qerr
			}
			continue
		}
		res.Pushed++
		infra.InboundRecords.WithLabelValues(coll, "pushed").Inc()
	}
	return nil
}

// Watermark returns the updated_at of the newest remote row merged into
// collection, or the zero time before the first merge.
func (r *Reconciler) Watermark(ctx context.Context, collection string) (time.Time, error) {
	v, ok, err := r.store.GetMeta(ctx, watermarkPrefix+collection)
	if err != nil || !ok {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		log.Warn().Str("collection", collection).Str("value", v).Msg("sync: bad watermark ignored")
		return time.Time{}, nil
	}
	return ts, nil
}

func (r *Reconciler) finish(kind string, err error) {
	r.state.EndInbound(r.now().UTC(), err)
	result := "ok"
	if err != nil {
		result = "error"
	}
	infra.SyncPasses.WithLabelValues(kind, result).Inc()
}
