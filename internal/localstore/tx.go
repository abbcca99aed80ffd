package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
)

// tsLayout is fixed width so stored timestamps sort lexicographically.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTS(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

// Querier is the document API shared by Store (one transaction per call) and
// Tx (caller-controlled transaction).
type Querier interface {
	Get(ctx context.Context, collection, id string) (model.Record, error)
	GetAll(ctx context.Context, collection string) ([]model.Record, error)
	FindByIndex(ctx context.Context, collection, field string, value any) ([]model.Record, error)
	FindByPrefix(ctx context.Context, collection, field, prefix string) ([]model.Record, error)
	Count(ctx context.Context, collection string) (int, error)
	Insert(ctx context.Context, collection string, rec model.Record) error
	Upsert(ctx context.Context, collection string, rec model.Record) error
	Delete(ctx context.Context, collection, id string) error
	Clear(ctx context.Context, collection string) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is an open store transaction handed to Store.Update callbacks.
type Tx struct {
	ex          execer
	afterCommit []func()
}

var (
	_ Querier = (*Tx)(nil)
	_ Querier = (*Store)(nil)
)

// AfterCommit registers fn to run once the transaction commits.
func (t *Tx) AfterCommit(fn func()) {
	t.afterCommit = append(t.afterCommit, fn)
}

func (t *Tx) Get(ctx context.Context, collection, id string) (model.Record, error) {
	if err := checkCollection(collection); err != nil {
		return model.Record{}, err
	}
	var doc, updated string
	err := t.ex.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT doc, updated_at FROM %q WHERE id = ?`, collection), id,
	).Scan(&doc, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return model.Record{}, fmt.Errorf("localstore: get %s/%s: %w", collection, id, err)
	}
	return toRecord(id, doc, updated)
}

func (t *Tx) GetAll(ctx context.Context, collection string) ([]model.Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	return t.query(ctx, fmt.Sprintf(`SELECT id, doc, updated_at FROM %q ORDER BY rowid`, collection))
}

func (t *Tx) FindByIndex(ctx context.Context, collection, field string, value any) ([]model.Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	if err := checkIndex(collection, field); err != nil {
		return nil, err
	}
	return t.query(ctx, fmt.Sprintf(
		`SELECT id, doc, updated_at FROM %q WHERE json_extract(doc, '$.%s') = ? ORDER BY rowid`,
		collection, field), value)
}

// FindByPrefix returns documents whose indexed string field starts with prefix.
func (t *Tx) FindByPrefix(ctx context.Context, collection, field, prefix string) ([]model.Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	if err := checkIndex(collection, field); err != nil {
		return nil, err
	}
	return t.query(ctx, fmt.Sprintf(
		`SELECT id, doc, updated_at FROM %q WHERE json_extract(doc, '$.%s') LIKE ? ESCAPE '\' ORDER BY rowid`,
		collection, field), likeEscaper.Replace(prefix)+"%")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (t *Tx) Count(ctx context.Context, collection string) (int, error) {
	if err := checkCollection(collection); err != nil {
		return 0, err
	}
	var n int
	err := t.ex.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, collection)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("localstore: count %s: %w", collection, err)
	}
	return n, nil
}

func (t *Tx) Insert(ctx context.Context, collection string, rec model.Record) error {
	if err := checkRecord(collection, rec); err != nil {
		return err
	}
	res, err := t.ex.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %q (id, doc, updated_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`, collection),
		rec.ID, string(rec.Data), formatTS(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("localstore: insert %s/%s: %w", collection, rec.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateKey, collection, rec.ID)
	}
	return nil
}

func (t *Tx) Upsert(ctx context.Context, collection string, rec model.Record) error {
	if err := checkRecord(collection, rec); err != nil {
		return err
	}
	_, err := t.ex.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %q (id, doc, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`, collection),
		rec.ID, string(rec.Data), formatTS(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("localstore: upsert %s/%s: %w", collection, rec.ID, err)
	}
	return nil
}

// Delete removes id from collection. Deleting a missing id is not an error.
func (t *Tx) Delete(ctx context.Context, collection, id string) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	if _, err := t.ex.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, collection), id); err != nil {
		return fmt.Errorf("localstore: delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (t *Tx) Clear(ctx context.Context, collection string) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	if _, err := t.ex.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q`, collection)); err != nil {
		return fmt.Errorf("localstore: clear %s: %w", collection, err)
	}
	return nil
}

// GetMeta reads a bookkeeping value; ok is false when the key is unset.
func (t *Tx) GetMeta(ctx context.Context, key string) (value string, ok bool, err error) {
	err = t.ex.QueryRowContext(ctx, `SELECT value FROM _meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("localstore: get meta %s: %w", key, err)
	}
	return value, true, nil
}

func (t *Tx) SetMeta(ctx context.Context, key, value string) error {
	_, err := t.ex.ExecContext(ctx,
		`INSERT INTO _meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("localstore: set meta %s: %w", key, err)
	}
	return nil
}

func (t *Tx) query(ctx context.Context, q string, args ...any) ([]model.Record, error) {
	rows, err := t.ex.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("localstore: query: %w", err)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var id, doc, updated string
		if err := rows.Scan(&id, &doc, &updated); err != nil {
			return nil, fmt.Errorf("localstore: scan: %w", err)
		}
		rec, err := toRecord(id, doc, updated)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func toRecord(id, doc, updated string) (model.Record, error) {
	ts, err := parseTS(updated)
	if err != nil {
		return model.Record{}, fmt.Errorf("localstore: bad updated_at on %s: %w", id, err)
	}
	return model.Record{ID: id, UpdatedAt: ts, Data: []byte(doc)}, nil
}

func checkRecord(collection string, rec model.Record) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	if rec.ID == "" || len(rec.Data) == 0 {
		return fmt.Errorf("localstore: %s: %w", collection, model.ErrInvalidRecord)
	}
	return nil
}
