package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrConflict is returned by Insert when the id already exists.
	ErrConflict = errors.New("repository: record already exists")
	// ErrNotFound is returned by Update when the id does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrUnknownCollection is returned by Registry.Get for names outside the mirrored set.
	ErrUnknownCollection = errors.New("repository: unknown collection")
	// ErrInvalidDocument is returned when a document does not fit the collection's row type.
	ErrInvalidDocument = errors.New("repository: invalid document")
)

// CollectionRepository is the server-side store of one mirrored collection.
// Writes are last-write-wins on updated_at: Upsert and Update leave a row
// alone when the stored copy is newer and report applied=false.
type CollectionRepository interface {
	Name() string
	// List returns every row, or only rows with updated_at after *since,
	// oldest first.
	List(ctx context.Context, since *time.Time) ([]model.Record, error)
	Insert(ctx context.Context, rec model.Record) (model.Record, error)
	Upsert(ctx context.Context, rec model.Record) (out model.Record, applied bool, err error)
	Update(ctx context.Context, rec model.Record) (out model.Record, applied bool, err error)
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, id string) (bool, error)
}

// row is satisfied by a pointer to any domain entity.
type row[T any] interface {
	*T
	model.Entity
}

type collectionRepo[T any, P row[T]] struct {
	db   *gorm.DB
	name string
}

func newCollectionRepo[T any, P row[T]](db *gorm.DB) CollectionRepository {
	return &collectionRepo[T, P]{db: db, name: P(new(T)).CollectionName()}
}

func (r *collectionRepo[T, P]) Name() string { return r.name }

func (r *collectionRepo[T, P]) List(ctx context.Context, since *time.Time) ([]model.Record, error) {
	var rows []T
	q := r.db.WithContext(ctx).Order("updated_at ASC").Order("id ASC")
	if since != nil {
		q = q.Where("updated_at > ?", since.UTC())
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("repository: list %s: %w", r.name, err)
	}
	out := make([]model.Record, 0, len(rows))
	for i := range rows {
		rec, err := model.NewRecord(P(&rows[i]))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *collectionRepo[T, P]) Insert(ctx context.Context, rec model.Record) (model.Record, error) {
	p, err := r.decode(rec)
	if err != nil {
		return model.Record{}, err
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(p)
	if res.Error != nil {
		return model.Record{}, fmt.Errorf("repository: insert %s/%s: %w", r.name, rec.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return model.Record{}, fmt.Errorf("%w: %s/%s", ErrConflict, r.name, rec.ID)
	}
	return model.NewRecord(p)
}

func (r *collectionRepo[T, P]) Upsert(ctx context.Context, rec model.Record) (model.Record, bool, error) {
	p, err := r.decode(rec)
	if err != nil {
		return model.Record{}, false, err
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: fmt.Sprintf("%q.updated_at <= excluded.updated_at", r.name)},
		}},
	}).Create(p)
	if res.Error != nil {
		return model.Record{}, false, fmt.Errorf("repository: upsert %s/%s: %w", r.name, rec.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		cur, err := r.get(ctx, r.db, rec.ID)
		return cur, false, err
	}
	out, err := model.NewRecord(p)
	return out, true, err
}

func (r *collectionRepo[T, P]) Update(ctx context.Context, rec model.Record) (out model.Record, applied bool, err error) {
	p, err := r.decode(rec)
	if err != nil {
		return model.Record{}, false, err
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur T
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&cur, "id = ?", rec.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, r.name, rec.ID)
		}
		if err != nil {
			return err
		}
		if P(&cur).GetUpdatedAt().After(p.GetUpdatedAt()) {
			out, err = model.NewRecord(P(&cur))
			return err
		}
		if err := tx.Save(p).Error; err != nil {
			return err
		}
		applied = true
		out, err = model.NewRecord(p)
		return err
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		err = fmt.Errorf("repository: update %s/%s: %w", r.name, rec.ID, err)
	}
	return out, applied, err
}

func (r *collectionRepo[T, P]) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(P(new(T)))
	if res.Error != nil {
		return false, fmt.Errorf("repository: delete %s/%s: %w", r.name, id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *collectionRepo[T, P]) get(ctx context.Context, db *gorm.DB, id string) (model.Record, error) {
	var cur T
	if err := db.WithContext(ctx).First(&cur, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Record{}, fmt.Errorf("%w: %s/%s", ErrNotFound, r.name, id)
		}
		return model.Record{}, err
	}
	return model.NewRecord(P(&cur))
}

// decode maps the client's JSON document onto the typed row. The id in the
// document always wins over any id given elsewhere.
func (r *collectionRepo[T, P]) decode(rec model.Record) (P, error) {
	p := P(new(T))
	if err := json.Unmarshal(rec.Data, p); err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrInvalidDocument, r.name, rec.ID, err)
	}
	if p.GetID() == "" {
		return nil, fmt.Errorf("%w: %s: missing id", ErrInvalidDocument, r.name)
	}
	return p, nil
}

// ── Registry ──────────────────────────────────────────────────────────────────

// Registry resolves collection names to their repository.
type Registry struct {
	repos map[string]CollectionRepository
}

// NewRegistry builds a repository for each mirrored collection.
func NewRegistry(db *gorm.DB) *Registry {
	return NewRegistryFrom(
		newCollectionRepo[model.Categoria](db),
		newCollectionRepo[model.Tipo](db),
		newCollectionRepo[model.Fornecedor](db),
		newCollectionRepo[model.Peca](db),
		newCollectionRepo[model.CompatibilidadeVeiculo](db),
		newCollectionRepo[model.Abastecimento](db),
		newCollectionRepo[model.Venda](db),
	)
}

// NewRegistryFrom is used by tests to plug in other implementations.
func NewRegistryFrom(repos ...CollectionRepository) *Registry {
	m := make(map[string]CollectionRepository, len(repos))
	for _, r := range repos {
		m[r.Name()] = r
	}
	return &Registry{repos: m}
}

func (g *Registry) Get(name string) (CollectionRepository, error) {
	r, ok := g.repos[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return r, nil
}

func (g *Registry) Names() []string {
	names := make([]string, 0, len(g.repos))
	for n := range g.repos {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
