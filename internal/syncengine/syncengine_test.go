package syncengine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/config"
	"github.com/Mussapinga011/PartQuip-sub000/internal/events"
	"github.com/Mussapinga011/PartQuip-sub000/internal/localstore"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
	"github.com/Mussapinga011/PartQuip-sub000/internal/queue"
	"github.com/Mussapinga011/PartQuip-sub000/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

type harness struct {
	store  *localstore.Store
	queue  *queue.Queue
	remote *remote.Memory
	state  *State
	bus    *events.Bus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	bus := events.New()
	return &harness{
		store:  store,
		queue:  queue.New(store, bus),
		remote: remote.NewMemory(),
		state:  NewState(),
		bus:    bus,
	}
}

func (h *harness) outbound(upsertInserts bool) *Outbound {
	return NewOutbound(h.queue, h.remote, h.state, h.bus, upsertInserts)
}

func (h *harness) reconciler(mode string) *Reconciler {
	return NewReconciler(h.store, h.queue, h.remote, h.state, h.bus, mode)
}

func categoria(t *testing.T, id, nome string, at time.Time) model.Record {
	t.Helper()
	c := &model.Categoria{Nome: nome}
	c.ID = id
	c.Touch(at)
	rec, err := model.NewRecord(c)
	require.NoError(t, err)
	return rec
}

func nome(t *testing.T, rec model.Record) string {
	t.Helper()
	var c model.Categoria
	require.NoError(t, rec.Decode(&c))
	return c.Nome
}

// ── Outbound ──────────────────────────────────────────────────────────────────

func TestOutbound_FailedItemDoesNotBlockQueue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, id := range []string{"c1", "c2", "c3"} {
		_, err := h.queue.Enqueue(ctx, model.OpInsert, model.CollCategorias, categoria(t, id, id, t0))
		require.NoError(t, err)
	}
	h.remote.FailOn = func(_ model.Operation, _, id string) error {
		if id == "c2" {
			return errors.New("boom")
		}
		return nil
	}

	res, err := h.outbound(true).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Attempted: 3, Sent: 2, Failed: 1, Purged: 2}, res)
	assert.Equal(t, []string{"upsert categorias/c1", "upsert categorias/c2", "upsert categorias/c3"}, h.remote.Calls)

	pending, err := h.queue.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c2", pending[0].RecordID)

	h.remote.FailOn = nil
	res, err = h.outbound(true).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	_, ok := h.remote.Get(model.CollCategorias, "c2")
	assert.True(t, ok)
}

func TestOutbound_ReplaysInEnqueueOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.queue.Enqueue(ctx, model.OpInsert, model.CollCategorias, categoria(t, "c1", "A", t0))
	require.NoError(t, err)
	_, err = h.queue.Enqueue(ctx, model.OpUpdate, model.CollCategorias, categoria(t, "c1", "B", t0.Add(time.Minute)))
	require.NoError(t, err)
	_, err = h.queue.Enqueue(ctx, model.OpUpdate, model.CollCategorias, categoria(t, "c1", "C", t0.Add(2*time.Minute)))
	require.NoError(t, err)

	_, err = h.outbound(false).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"insert categorias/c1", "update categorias/c1", "update categorias/c1"}, h.remote.Calls)
	got, _ := h.remote.Get(model.CollCategorias, "c1")
	assert.Equal(t, "C", nome(t, got))
}

func TestOutbound_DuplicateInsertCountsAsDelivered(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rec := categoria(t, "c1", "A", t0)
	h.remote.Put(model.CollCategorias, rec)
	_, err := h.queue.Enqueue(ctx, model.OpInsert, model.CollCategorias, rec)
	require.NoError(t, err)

	res, err := h.outbound(false).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
}

func TestOutbound_UpdateOfUnknownRowCreatesIt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.queue.Enqueue(ctx, model.OpUpdate, model.CollCategorias, categoria(t, "c9", "Z", t0))
	require.NoError(t, err)

	res, err := h.outbound(false).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	_, ok := h.remote.Get(model.CollCategorias, "c9")
	assert.True(t, ok)
}

func TestOutbound_Delete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rec := categoria(t, "c1", "A", t0)
	h.remote.Put(model.CollCategorias, rec)
	_, err := h.queue.Enqueue(ctx, model.OpDelete, model.CollCategorias, rec)
	require.NoError(t, err)

	_, err = h.outbound(true).Run(ctx)
	require.NoError(t, err)
	_, ok := h.remote.Get(model.CollCategorias, "c1")
	assert.False(t, ok)
}

func TestOutbound_DroppedWhileRunning(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.state.TryBeginOutbound())

	_, err := h.outbound(true).Run(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)

	h.state.EndOutbound(time.Now(), nil)
	_, err = h.outbound(true).Run(context.Background())
	assert.NoError(t, err)
}

func TestOutbound_Offline(t *testing.T) {
	h := newHarness(t)
	h.state.SetOnline(false)
	_, err := h.outbound(true).Run(context.Background())
	assert.ErrorIs(t, err, ErrOffline)
	assert.False(t, h.state.Syncing())
}

func TestOutbound_PublishesCompletion(t *testing.T) {
	h := newHarness(t)
	var got []events.Event
	h.bus.Subscribe(events.TopicSyncCompleted, func(e events.Event) { got = append(got, e) })

	_, err := h.outbound(true).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Result{}, got[0].Payload)
}

// ── Delta sync ────────────────────────────────────────────────────────────────

func TestDeltaSync_LocalNewerIsPushedNotOverwritten(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.remote.Put(model.CollCategorias, categoria(t, "c1", "remota", t0))
	require.NoError(t, h.store.Upsert(ctx, model.CollCategorias, categoria(t, "c1", "local", t0.Add(time.Hour))))

	res, err := h.reconciler(config.InboundModeDelta).DeltaSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pushed)

	local, err := h.store.Get(ctx, model.CollCategorias, "c1")
	require.NoError(t, err)
	assert.Equal(t, "local", nome(t, local))
	got, _ := h.remote.Get(model.CollCategorias, "c1")
	assert.Equal(t, "local", nome(t, got))
}

func TestDeltaSync_RemoteNewerReplacesAndAbsentInserts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Upsert(ctx, model.CollCategorias, categoria(t, "c1", "velha", t0)))
	h.remote.Put(model.CollCategorias, categoria(t, "c1", "nova", t0.Add(time.Hour)))
	h.remote.Put(model.CollCategorias, categoria(t, "c2", "outra", t0.Add(2*time.Hour)))

	var changed []string
	h.bus.Subscribe(events.TopicDataChanged, func(e events.Event) { changed = append(changed, e.Collection) })

	r := h.reconciler(config.InboundModeDelta)
	res, err := r.DeltaSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, []string{model.CollCategorias}, changed)

	local, err := h.store.Get(ctx, model.CollCategorias, "c1")
	require.NoError(t, err)
	assert.Equal(t, "nova", nome(t, local))

	wm, err := r.Watermark(ctx, model.CollCategorias)
	require.NoError(t, err)
	assert.True(t, wm.Equal(t0.Add(2*time.Hour)))

	// Nothing newer than the watermark: second pass fetches nothing.
	res, err = r.DeltaSync(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Fetched)
}

func TestDeltaSync_ServerRoundTripIsNotAConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	local := categoria(t, "c1", "Filtros", t0.Add(123456789*time.Nanosecond))
	require.NoError(t, h.store.Insert(ctx, model.CollCategorias, local))

	// the server hands rows back at microsecond precision
	stored := local
	stored.UpdatedAt = local.UpdatedAt.Truncate(time.Microsecond)
	h.remote.Put(model.CollCategorias, stored)

	res, err := h.reconciler(config.InboundModeDelta).DeltaSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fetched)
	assert.Zero(t, res.Pushed)
	assert.Zero(t, res.Updated)
	assert.Zero(t, res.Inserted)
}

func TestDeltaSync_FailedPushIsQueued(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.remote.Put(model.CollCategorias, categoria(t, "c1", "remota", t0))
	require.NoError(t, h.store.Upsert(ctx, model.CollCategorias, categoria(t, "c1", "local", t0.Add(time.Hour))))
	h.remote.FailOn = func(model.Operation, string, string) error { return remote.ErrUnavailable }

	res, err := h.reconciler(config.InboundModeDelta).DeltaSync(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Pushed)

	pending, err := h.queue.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.OpUpdate, pending[0].Operation)
	assert.Equal(t, "c1", pending[0].RecordID)
}

func TestDeltaSync_FetchFailureKeepsWatermark(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.remote.SetOffline(true)

	r := h.reconciler(config.InboundModeDelta)
	_, err := r.DeltaSync(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrUnavailable)

	wm, err := r.Watermark(ctx, model.CollCategorias)
	require.NoError(t, err)
	assert.True(t, wm.IsZero())
}

// ── Full sync ─────────────────────────────────────────────────────────────────

func TestFullSync_ReplacesAndKeepsPendingMutations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Upsert(ctx, model.CollCategorias, categoria(t, "stale", "só local antiga", t0)))
	pendente := categoria(t, "nova", "ainda não enviada", t0)
	require.NoError(t, h.store.Upsert(ctx, model.CollCategorias, pendente))
	_, err := h.queue.Enqueue(ctx, model.OpInsert, model.CollCategorias, pendente)
	require.NoError(t, err)

	h.remote.Put(model.CollCategorias, categoria(t, "r1", "Filtros", t0))
	h.remote.Put(model.CollCategorias, categoria(t, "r2", "Travões", t0.Add(time.Minute)))
	p := &model.Peca{Codigo: "FO-1", Nome: "Filtro"}
	p.Touch(t0)
	prec, err := model.NewRecord(p)
	require.NoError(t, err)
	h.remote.Put(model.CollPecas, prec)

	r := h.reconciler(config.InboundModeDelta)
	needs, err := r.NeedsFullSync(ctx)
	require.NoError(t, err)
	require.True(t, needs)

	res, err := r.FullSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 1, res.Kept)

	all, err := h.store.GetAll(ctx, model.CollCategorias)
	require.NoError(t, err)
	var ids []string
	for _, rec := range all {
		ids = append(ids, rec.ID)
	}
	assert.ElementsMatch(t, []string{"r1", "r2", "nova"}, ids)

	needs, err = r.NeedsFullSync(ctx)
	require.NoError(t, err)
	assert.False(t, needs)

	wm, err := r.Watermark(ctx, model.CollCategorias)
	require.NoError(t, err)
	assert.True(t, wm.Equal(t0.Add(time.Minute)))
}

func TestFullSync_FetchFailureChangesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Upsert(ctx, model.CollCategorias, categoria(t, "c1", "A", t0)))
	h.remote.SetOffline(true)

	_, err := h.reconciler(config.InboundModeDelta).FullSync(ctx)
	require.Error(t, err)

	n, err := h.store.Count(ctx, model.CollCategorias)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReconcile_ModeSelection(t *testing.T) {
	ctx := context.Background()
	seed := func(h *harness) {
		p := &model.Peca{Codigo: "FO-1", Nome: "Filtro"}
		p.Touch(t0)
		prec, err := model.NewRecord(p)
		require.NoError(t, err)
		h.remote.Put(model.CollPecas, prec)
		h.remote.Put(model.CollCategorias, categoria(t, "c1", "A", t0))
	}

	t.Run("delta mode replaces on start and reconnect, merges otherwise", func(t *testing.T) {
		h := newHarness(t)
		seed(h)
		r := h.reconciler(config.InboundModeDelta)
		res, err := r.Reconcile(ctx, TriggerStartup)
		require.NoError(t, err)
		assert.Equal(t, "full", res.Mode)
		res, err = r.Reconcile(ctx, TriggerPeriodic)
		require.NoError(t, err)
		assert.Equal(t, "delta", res.Mode)
		res, err = r.Reconcile(ctx, TriggerManual)
		require.NoError(t, err)
		assert.Equal(t, "delta", res.Mode)
		res, err = r.Reconcile(ctx, TriggerReconnect)
		require.NoError(t, err)
		assert.Equal(t, "full", res.Mode)
	})

	t.Run("full_on_reconnect skips periodic and replaces on reconnect", func(t *testing.T) {
		h := newHarness(t)
		seed(h)
		r := h.reconciler(config.InboundModeFullOnReconnect)
		res, err := r.Reconcile(ctx, TriggerStartup)
		require.NoError(t, err)
		assert.Equal(t, "full", res.Mode)
		res, err = r.Reconcile(ctx, TriggerPeriodic)
		require.NoError(t, err)
		assert.Equal(t, "skipped", res.Mode)
		res, err = r.Reconcile(ctx, TriggerReconnect)
		require.NoError(t, err)
		assert.Equal(t, "full", res.Mode)
	})

	t.Run("unknown mode falls back to delta", func(t *testing.T) {
		h := newHarness(t)
		assert.Equal(t, config.InboundModeDelta, h.reconciler("bogus").Mode())
	})
}

func TestReconcile_RemoteDeleteReachesStoreOnReconnect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := &model.Peca{Codigo: "FO-1", Nome: "Filtro"}
	p.Touch(t0)
	prec, err := model.NewRecord(p)
	require.NoError(t, err)
	h.remote.Put(model.CollPecas, prec)
	h.remote.Put(model.CollCategorias, categoria(t, "c1", "A", t0))
	h.remote.Put(model.CollCategorias, categoria(t, "c2", "B", t0))

	r := h.reconciler(config.InboundModeDelta)
	_, err = r.Reconcile(ctx, TriggerStartup)
	require.NoError(t, err)
	_, err = h.store.Get(ctx, model.CollCategorias, "c2")
	require.NoError(t, err)

	err = h.remote.Delete(ctx, model.CollCategorias, "c2")
	require.NoError(t, err)

	res, err := r.Reconcile(ctx, TriggerPeriodic)
	require.NoError(t, err)
	assert.Equal(t, "delta", res.Mode)
	_, err = h.store.Get(ctx, model.CollCategorias, "c2")
	require.NoError(t, err, "delta merges cannot see deletes")

	res, err = r.Reconcile(ctx, TriggerReconnect)
	require.NoError(t, err)
	assert.Equal(t, "full", res.Mode)
	_, err = h.store.Get(ctx, model.CollCategorias, "c2")
	assert.ErrorIs(t, err, localstore.ErrNotFound)
	_, err = h.store.Get(ctx, model.CollCategorias, "c1")
	assert.NoError(t, err)
}

func TestState_Snapshot(t *testing.T) {
	s := NewState()
	assert.True(t, s.Online())
	assert.True(t, s.SetOnline(false))
	assert.False(t, s.SetOnline(false))

	require.True(t, s.TryBeginInbound())
	assert.True(t, s.Syncing())
	s.EndInbound(t0, errors.New("falhou"))

	snap := s.Snapshot()
	assert.False(t, snap.Online)
	assert.False(t, snap.Syncing)
	assert.True(t, snap.LastInbound.IsZero())
	assert.Equal(t, "falhou", snap.LastError)
}
