package remote

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
)

// Memory is an in-process Backend with the same write rules as the server:
// insert rejects existing ids, update rejects missing ids, and upsert/update
// never replace a row with an older updated_at. It backs the sync tests and
// `partquip sync --dry-run`.
type Memory struct {
	mu      sync.Mutex
	rows    map[string]map[string]model.Record
	offline bool

	// FailOn, when set, is consulted before every write; a non-nil result is
	// returned instead of applying the write.
	FailOn func(op model.Operation, collection, id string) error
	// Calls records every write as "op collection/id", in call order.
	Calls []string
}

var _ Backend = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{rows: make(map[string]map[string]model.Record)}
}

// SetOffline makes every call fail with ErrUnavailable until reset.
func (m *Memory) SetOffline(offline bool) {
	m.mu.Lock()
	m.offline = offline
	m.mu.Unlock()
}

// Put stores rec unconditionally.
func (m *Memory) Put(collection string, rec model.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.table(collection)[rec.ID] = rec
}

// Get returns the stored row, if any.
func (m *Memory) Get(collection, id string) (model.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[collection][id]
	return rec, ok
}

func (m *Memory) table(collection string) map[string]model.Record {
	t, ok := m.rows[collection]
	if !ok {
		t = make(map[string]model.Record)
		m.rows[collection] = t
	}
	return t
}

func (m *Memory) FetchAll(ctx context.Context, collection string) ([]model.Record, error) {
	return m.FetchUpdatedSince(ctx, collection, time.Time{})
}

func (m *Memory) FetchUpdatedSince(_ context.Context, collection string, since time.Time) ([]model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return nil, ErrUnavailable
	}
	var out []model.Record
	for _, rec := range m.rows[collection] {
		if since.IsZero() || rec.UpdatedAt.After(since) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}

func (m *Memory) Insert(_ context.Context, collection string, rec model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.precheck(model.OpInsert, collection, rec.ID); err != nil {
		return err
	}
	t := m.table(collection)
	if _, exists := t[rec.ID]; exists {
		return fmt.Errorf("%w: %s/%s", ErrConflict, collection, rec.ID)
	}
	t[rec.ID] = rec
	return nil
}

func (m *Memory) Upsert(_ context.Context, collection string, rec model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.precheck("upsert", collection, rec.ID); err != nil {
		return err
	}
	t := m.table(collection)
	if cur, ok := t[rec.ID]; ok && cur.NewerThan(rec) {
		return nil
	}
	t[rec.ID] = rec
	return nil
}

func (m *Memory) Update(_ context.Context, collection string, rec model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.precheck(model.OpUpdate, collection, rec.ID); err != nil {
		return err
	}
	t := m.table(collection)
	cur, ok := t[rec.ID]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, rec.ID)
	}
	if cur.NewerThan(rec) {
		return nil
	}
	t[rec.ID] = rec
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.precheck(model.OpDelete, collection, id); err != nil {
		return err
	}
	delete(m.table(collection), id)
	return nil
}

func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return ErrUnavailable
	}
	return nil
}

func (m *Memory) precheck(op model.Operation, collection, id string) error {
	m.Calls = append(m.Calls, fmt.Sprintf("%s %s/%s", op, collection, id))
	if m.offline {
		return ErrUnavailable
	}
	if m.FailOn != nil {
		return m.FailOn(op, collection, id)
	}
	return nil
}
