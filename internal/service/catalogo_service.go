package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/events"
	"github.com/Mussapinga011/PartQuip-sub000/internal/localstore"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
	"github.com/Mussapinga011/PartQuip-sub000/internal/queue"
)

// CatalogService is the create/update/delete surface for catalogue data:
// reference entities, parts and vehicle compatibility.
type CatalogService[T any] interface {
	Criar(ctx context.Context, v *T) (*T, error)
	Atualizar(ctx context.Context, id string, v *T) (*T, error)
	Remover(ctx context.Context, id string) error
	Obter(ctx context.Context, id string) (*T, error)
	Listar(ctx context.Context) ([]T, error)
}

type entityPtr[T any] interface {
	*T
	model.Entity
	Meta() *model.Base
}

// beforeWrite runs inside the write transaction. atual is nil on create.
type beforeWrite[T any] func(ctx context.Context, tx *localstore.Tx, novo, atual *T) error

type catalogService[T any, P entityPtr[T]] struct {
	store      *localstore.Store
	queue      *queue.Queue
	bus        *events.Bus
	collection string
	hook       beforeWrite[T]
	now        func() time.Time
}

func newCatalogService[T any, P entityPtr[T]](store *localstore.Store, q *queue.Queue, bus *events.Bus, hook beforeWrite[T]) *catalogService[T, P] {
	var zero T
	return &catalogService[T, P]{
		store:      store,
		queue:      q,
		bus:        bus,
		collection: P(&zero).CollectionName(),
		hook:       hook,
		now:        time.Now,
	}
}

func NewCategoriaService(store *localstore.Store, q *queue.Queue, bus *events.Bus) CatalogService[model.Categoria] {
	return newCatalogService[model.Categoria](store, q, bus, nil)
}

func NewTipoService(store *localstore.Store, q *queue.Queue, bus *events.Bus) CatalogService[model.Tipo] {
	return newCatalogService[model.Tipo](store, q, bus, func(ctx context.Context, tx *localstore.Tx, novo, _ *model.Tipo) error {
		return refExists(ctx, tx, model.CollCategorias, novo.CategoriaID)
	})
}

func NewFornecedorService(store *localstore.Store, q *queue.Queue, bus *events.Bus) CatalogService[model.Fornecedor] {
	return newCatalogService[model.Fornecedor](store, q, bus, nil)
}

func NewCompatibilidadeService(store *localstore.Store, q *queue.Queue, bus *events.Bus) CatalogService[model.CompatibilidadeVeiculo] {
	return newCatalogService[model.CompatibilidadeVeiculo](store, q, bus, func(ctx context.Context, tx *localstore.Tx, novo, _ *model.CompatibilidadeVeiculo) error {
		for i, c := range novo.CodigosPecas {
			novo.CodigosPecas[i] = strings.TrimSpace(c)
		}
		return refExists(ctx, tx, model.CollCategorias, novo.CategoriaID)
	})
}

// NewPecaService enforces a unique codigo. Stock and cost are only taken from
// the caller on create; updates keep the stored values, which change through
// sales and stock entries alone.
func NewPecaService(store *localstore.Store, q *queue.Queue, bus *events.Bus) CatalogService[model.Peca] {
	return newCatalogService[model.Peca](store, q, bus, func(ctx context.Context, tx *localstore.Tx, novo, atual *model.Peca) error {
		novo.Codigo = strings.TrimSpace(novo.Codigo)
		recs, err := tx.FindByIndex(ctx, model.CollPecas, "codigo", novo.Codigo)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if rec.ID != novo.ID {
				return fmt.Errorf("%w: %s", ErrDuplicateCode, novo.Codigo)
			}
		}
		for _, ref := range []struct{ coll, id string }{
			{model.CollCategorias, novo.CategoriaID},
			{model.CollTipos, novo.TipoID},
			{model.CollFornecedores, novo.FornecedorID},
		} {
			if err := refExists(ctx, tx, ref.coll, ref.id); err != nil {
				return err
			}
		}
		if atual != nil {
			novo.EstoqueAtual = atual.EstoqueAtual
			novo.PrecoCusto = atual.PrecoCusto
		}
		return nil
	})
}

func (s *catalogService[T, P]) Criar(ctx context.Context, v *T) (*T, error) {
	if err := validateStruct(v); err != nil {
		return nil, err
	}
	e := P(v)
	err := s.store.Update(ctx, func(tx *localstore.Tx) error {
		e.Touch(s.now())
		if s.hook != nil {
			if err := s.hook(ctx, tx, v, nil); err != nil {
				return err
			}
		}
		return persist(ctx, tx, s.queue, model.OpInsert, e)
	})
	if err != nil {
		return nil, err
	}
	s.bus.Emit(events.TopicDataChanged, s.collection, e.GetID())
	return v, nil
}

// Atualizar replaces the stored document with v, keeping id and created_at.
func (s *catalogService[T, P]) Atualizar(ctx context.Context, id string, v *T) (*T, error) {
	if err := validateStruct(v); err != nil {
		return nil, err
	}
	e := P(v)
	err := s.store.Update(ctx, func(tx *localstore.Tx) error {
		atual, err := load[T](ctx, tx, s.collection, id)
		if err != nil {
			return err
		}
		meta := e.Meta()
		meta.ID = id
		meta.CreatedAt = P(atual).Meta().CreatedAt
		e.Touch(s.now())
		if s.hook != nil {
			if err := s.hook(ctx, tx, v, atual); err != nil {
				return err
			}
		}
		return persist(ctx, tx, s.queue, model.OpUpdate, e)
	})
	if err != nil {
		return nil, err
	}
	s.bus.Emit(events.TopicDataChanged, s.collection, id)
	return v, nil
}

func (s *catalogService[T, P]) Remover(ctx context.Context, id string) error {
	err := s.store.Update(ctx, func(tx *localstore.Tx) error {
		atual, err := load[T](ctx, tx, s.collection, id)
		if err != nil {
			return err
		}
		return persist(ctx, tx, s.queue, model.OpDelete, P(atual))
	})
	if err != nil {
		return err
	}
	s.bus.Emit(events.TopicDataChanged, s.collection, id)
	return nil
}

func (s *catalogService[T, P]) Obter(ctx context.Context, id string) (*T, error) {
	return load[T](ctx, s.store, s.collection, id)
}

func (s *catalogService[T, P]) Listar(ctx context.Context) ([]T, error) {
	recs, err := s.store.GetAll(ctx, s.collection)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](recs)
}

// refExists accepts an empty id (optional reference).
func refExists(ctx context.Context, tx *localstore.Tx, collection, id string) error {
	if id == "" {
		return nil
	}
	if _, err := tx.Get(ctx, collection, id); err != nil {
		return fmt.Errorf("%w: %s/%s inexistente", ErrInvalidInput, collection, id)
	}
	return nil
}
