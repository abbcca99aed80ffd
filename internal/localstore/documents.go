package localstore

import (
	"context"

	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
)

// Each Store method below runs in its own transaction: it either fully
// succeeds or has no effect. Reads use View, writes use Update.

func (s *Store) Get(ctx context.Context, collection, id string) (rec model.Record, err error) {
	err = s.View(ctx, func(tx *Tx) error {
		rec, err = tx.Get(ctx, collection, id)
		return err
	})
	return rec, err
}

func (s *Store) GetAll(ctx context.Context, collection string) (recs []model.Record, err error) {
	err = s.View(ctx, func(tx *Tx) error {
		recs, err = tx.GetAll(ctx, collection)
		return err
	})
	return recs, err
}

func (s *Store) FindByIndex(ctx context.Context, collection, field string, value any) (recs []model.Record, err error) {
	err = s.View(ctx, func(tx *Tx) error {
		recs, err = tx.FindByIndex(ctx, collection, field, value)
		return err
	})
	return recs, err
}

func (s *Store) FindByPrefix(ctx context.Context, collection, field, prefix string) (recs []model.Record, err error) {
	err = s.View(ctx, func(tx *Tx) error {
		recs, err = tx.FindByPrefix(ctx, collection, field, prefix)
		return err
	})
	return recs, err
}

func (s *Store) Count(ctx context.Context, collection string) (n int, err error) {
	err = s.View(ctx, func(tx *Tx) error {
		n, err = tx.Count(ctx, collection)
		return err
	})
	return n, err
}

func (s *Store) Insert(ctx context.Context, collection string, rec model.Record) error {
	return s.Update(ctx, func(tx *Tx) error { return tx.Insert(ctx, collection, rec) })
}

func (s *Store) Upsert(ctx context.Context, collection string, rec model.Record) error {
	return s.Update(ctx, func(tx *Tx) error { return tx.Upsert(ctx, collection, rec) })
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.Update(ctx, func(tx *Tx) error { return tx.Delete(ctx, collection, id) })
}

func (s *Store) Clear(ctx context.Context, collection string) error {
	return s.Update(ctx, func(tx *Tx) error { return tx.Clear(ctx, collection) })
}

// ReplaceAll clears collection and repopulates it with recs atomically.
func (s *Store) ReplaceAll(ctx context.Context, collection string, recs []model.Record) error {
	return s.Update(ctx, func(tx *Tx) error {
		if err := tx.Clear(ctx, collection); err != nil {
			return err
		}
		for _, rec := range recs {
			if err := tx.Upsert(ctx, collection, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetMeta(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.View(ctx, func(tx *Tx) error {
		value, ok, err = tx.GetMeta(ctx, key)
		return err
	})
	return value, ok, err
}

func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	return s.Update(ctx, func(tx *Tx) error { return tx.SetMeta(ctx, key, value) })
}
