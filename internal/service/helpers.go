package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/Mussapinga011/PartQuip-sub000/internal/localstore"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
	"github.com/Mussapinga011/PartQuip-sub000/internal/queue"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Lets tags like min=0 apply to decimal.Decimal fields.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// validateStruct runs the validator tags and wraps failures in ErrInvalidInput.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace()+"="+fe.Tag())
	}
	sort.Strings(fields)
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, ", "))
}

// persist writes e to the Local Store and enqueues the same change inside
// tx. Every domain write goes through here, so the store and the queue can
// never diverge.
func persist(ctx context.Context, tx *localstore.Tx, q *queue.Queue, op model.Operation, e model.Entity) error {
	rec, err := model.NewRecord(e)
	if err != nil {
		return err
	}
	coll := e.CollectionName()
	switch op {
	case model.OpInsert:
		err = tx.Insert(ctx, coll, rec)
	case model.OpUpdate:
		err = tx.Upsert(ctx, coll, rec)
	case model.OpDelete:
		err = tx.Delete(ctx, coll, rec.ID)
	default:
		err = fmt.Errorf("operação desconhecida %q", op)
	}
	if err != nil {
		return err
	}
	_, err = q.EnqueueTx(ctx, tx, op, coll, rec)
	return err
}

// load fetches one document and decodes it. A missing id maps to ErrNotFound.
func load[T any](ctx context.Context, q localstore.Querier, collection, id string) (*T, error) {
	rec, err := q.Get(ctx, collection, id)
	if errors.Is(err, localstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := rec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return &v, nil
}

func decodeAll[T any](recs []model.Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := rec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", rec.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}
