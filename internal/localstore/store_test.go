package localstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "partquip.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func pecaRecord(t *testing.T, id, codigo, categoriaID string, at time.Time) model.Record {
	t.Helper()
	p := &model.Peca{Codigo: codigo, Nome: "Filtro " + codigo, CategoriaID: categoriaID}
	p.ID = id
	p.Touch(at)
	rec, err := model.NewRecord(p)
	require.NoError(t, err)
	return rec
}

func TestStore_InsertGetAndDuplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rec := pecaRecord(t, "p1", "FO-001", "cat-1", time.Now())

	require.NoError(t, s.Insert(ctx, model.CollPecas, rec))

	got, err := s.Get(ctx, model.CollPecas, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
	assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))
	assert.JSONEq(t, string(rec.Data), string(got.Data))

	err = s.Insert(ctx, model.CollPecas, rec)
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestStore_GetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), model.CollPecas, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpsertReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Upsert(ctx, model.CollPecas, pecaRecord(t, "p1", "A", "c1", t0)))
	require.NoError(t, s.Upsert(ctx, model.CollPecas, pecaRecord(t, "p1", "B", "c1", t0.Add(time.Hour))))

	all, err := s.GetAll(ctx, model.CollPecas)
	require.NoError(t, err)
	require.Len(t, all, 1)
	var p model.Peca
	require.NoError(t, all[0].Decode(&p))
	assert.Equal(t, "B", p.Codigo)
	assert.True(t, all[0].UpdatedAt.Equal(t0.Add(time.Hour)))
}

func TestStore_DeleteAndClear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Insert(ctx, model.CollPecas, pecaRecord(t, "p1", "A", "c1", now)))
	require.NoError(t, s.Insert(ctx, model.CollPecas, pecaRecord(t, "p2", "B", "c1", now)))

	require.NoError(t, s.Delete(ctx, model.CollPecas, "p1"))
	require.NoError(t, s.Delete(ctx, model.CollPecas, "p1"), "deleting twice is a no-op")
	n, err := s.Count(ctx, model.CollPecas)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Clear(ctx, model.CollPecas))
	n, err = s.Count(ctx, model.CollPecas)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_FindByIndex(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Insert(ctx, model.CollPecas, pecaRecord(t, "p1", "A", "travoes", now)))
	require.NoError(t, s.Insert(ctx, model.CollPecas, pecaRecord(t, "p2", "B", "filtros", now)))
	require.NoError(t, s.Insert(ctx, model.CollPecas, pecaRecord(t, "p3", "C", "travoes", now)))

	recs, err := s.FindByIndex(ctx, model.CollPecas, "categoria_id", "travoes")
	require.NoError(t, err)
	ids := []string{}
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"p1", "p3"}, ids)

	_, err = s.FindByIndex(ctx, model.CollPecas, "nome", "x")
	assert.ErrorIs(t, err, ErrUnknownIndex)
}

func TestStore_UnknownCollection(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetAll(context.Background(), "usuarios")
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestStore_NotReady(t *testing.T) {
	var nilStore *Store
	_, err := nilStore.GetAll(context.Background(), model.CollPecas)
	assert.ErrorIs(t, err, ErrStoreNotReady)

	s := openTestStore(t)
	require.NoError(t, s.Close())
	err = s.Insert(context.Background(), model.CollPecas, pecaRecord(t, "p1", "A", "c", time.Now()))
	assert.ErrorIs(t, err, ErrStoreNotReady)
}

func TestStore_UpdateRollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")
	hookRan := false

	err := s.Update(ctx, func(tx *Tx) error {
		tx.AfterCommit(func() { hookRan = true })
		if err := tx.Insert(ctx, model.CollPecas, pecaRecord(t, "p1", "A", "c", time.Now())); err != nil {
			return err
		}
		if err := tx.SetMeta(ctx, "k", "v"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, hookRan)

	n, err := s.Count(ctx, model.CollPecas)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, ok, err := s.GetMeta(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_UpdateRunsHooksAfterCommit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	hookRan := false

	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		tx.AfterCommit(func() { hookRan = true })
		return tx.Insert(ctx, model.CollPecas, pecaRecord(t, "p1", "A", "c", time.Now()))
	}))
	assert.True(t, hookRan)
}

func TestStore_ReplaceAll(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Insert(ctx, model.CollPecas, pecaRecord(t, "old", "A", "c", now)))

	require.NoError(t, s.ReplaceAll(ctx, model.CollPecas, []model.Record{
		pecaRecord(t, "n1", "B", "c", now),
		pecaRecord(t, "n2", "C", "c", now),
	}))

	all, err := s.GetAll(ctx, model.CollPecas)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "n1", all[0].ID)
	assert.Equal(t, "n2", all[1].ID)
}

func TestStore_Meta(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetMeta(ctx, "watermark:pecas", "2026-01-01T00:00:00Z"))
	require.NoError(t, s.SetMeta(ctx, "watermark:pecas", "2026-02-01T00:00:00Z"))

	v, ok, err := s.GetMeta(ctx, "watermark:pecas")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2026-02-01T00:00:00Z", v)
}

func TestStore_MutationTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		for _, id := range []string{"m1", "m2", "m3"} {
			if _, err := tx.AppendMutation(ctx, model.MutationQueueItem{
				ID: id, Operation: model.OpInsert, Collection: model.CollPecas,
				RecordID: "p-" + id, Payload: []byte(`{"id":"p-` + id + `"}`), EnqueuedAt: time.Now(),
			}); err != nil {
				return err
			}
		}
		return tx.MarkMutationConfirmed(ctx, "m2")
	}))

	var pending []model.MutationQueueItem
	var purged int64
	require.NoError(t, s.Update(ctx, func(tx *Tx) (err error) {
		if pending, err = tx.ListMutations(ctx, true); err != nil {
			return err
		}
		purged, err = tx.PurgeConfirmedMutations(ctx)
		return err
	}))
	require.Len(t, pending, 2)
	assert.Equal(t, "m1", pending[0].ID)
	assert.Equal(t, "m3", pending[1].ID)
	assert.EqualValues(t, 1, purged)

	err := s.Update(ctx, func(tx *Tx) error { return tx.MarkMutationConfirmed(ctx, "ghost") })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_FindByPrefix(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()
	for id, codigo := range map[string]string{"p1": "FO_01", "p2": "FO-02", "p3": "FX-03"} {
		require.NoError(t, s.Insert(ctx, model.CollPecas, pecaRecord(t, id, codigo, "c", now)))
	}

	recs, err := s.FindByPrefix(ctx, model.CollPecas, "codigo", "FO")
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = s.FindByPrefix(ctx, model.CollPecas, "codigo", "FO_")
	require.NoError(t, err)
	require.Len(t, recs, 1, "underscore is matched literally")
	assert.Equal(t, "p1", recs[0].ID)
}

func TestStore_ReadsDoNotWaitForAnotherWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	writer, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	reader, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reader.Close() })

	ctx := context.Background()
	require.NoError(t, writer.Insert(ctx, model.CollPecas, pecaRecord(t, "p1", "A", "c", time.Now())))

	inTx := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- writer.Update(ctx, func(tx *Tx) error {
			if err := tx.Insert(ctx, model.CollPecas, pecaRecord(t, "p2", "B", "c", time.Now())); err != nil {
				return err
			}
			close(inTx)
			<-release
			return nil
		})
	}()
	<-inTx

	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	start := time.Now()
	_, err = reader.Get(rctx, model.CollPecas, "p1")
	require.NoError(t, err)
	_, err = reader.Get(rctx, model.CollPecas, "p2")
	assert.ErrorIs(t, err, ErrNotFound, "uncommitted row is invisible")
	n, err := reader.Count(rctx, model.CollPecas)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Less(t, time.Since(start), time.Second)

	close(release)
	require.NoError(t, <-done)
	n, err = reader.Count(ctx, model.CollPecas)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_ViewRejectsWrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	err := s.View(ctx, func(tx *Tx) error {
		return tx.Insert(ctx, model.CollPecas, pecaRecord(t, "p1", "A", "c", time.Now()))
	})
	require.Error(t, err)

	n, err := s.Count(ctx, model.CollPecas)
	require.NoError(t, err)
	assert.Zero(t, n)
}
