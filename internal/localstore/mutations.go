package localstore

import (
	"context"
	"fmt"

	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
)

// AppendMutation adds item to the internal queue table and returns its
// sequence number.
func (t *Tx) AppendMutation(ctx context.Context, item model.MutationQueueItem) (int64, error) {
	res, err := t.ex.ExecContext(ctx,
		`INSERT INTO `+queueTable+` (id, operation, collection, record_id, payload, enqueued_at, confirmed)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		item.ID, string(item.Operation), item.Collection, item.RecordID, string(item.Payload), formatTS(item.EnqueuedAt))
	if err != nil {
		return 0, fmt.Errorf("localstore: append mutation: %w", err)
	}
	return res.LastInsertId()
}

// ListMutations returns queue items oldest first.
func (t *Tx) ListMutations(ctx context.Context, pendingOnly bool) ([]model.MutationQueueItem, error) {
	q := `SELECT seq, id, operation, collection, record_id, payload, enqueued_at, confirmed FROM ` + queueTable
	if pendingOnly {
		q += ` WHERE confirmed = 0`
	}
	q += ` ORDER BY seq`

	rows, err := t.ex.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("localstore: list mutations: %w", err)
	}
	defer rows.Close()

	var items []model.MutationQueueItem
	for rows.Next() {
		var (
			it                 model.MutationQueueItem
			op, payload, enqAt string
		)
		if err := rows.Scan(&it.Seq, &it.ID, &op, &it.Collection, &it.RecordID, &payload, &enqAt, &it.Confirmed); err != nil {
			return nil, fmt.Errorf("localstore: scan mutation: %w", err)
		}
		it.Operation = model.Operation(op)
		it.Payload = []byte(payload)
		if it.EnqueuedAt, err = parseTS(enqAt); err != nil {
			return nil, fmt.Errorf("localstore: bad enqueued_at on %s: %w", it.ID, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// MarkMutationConfirmed flags one item as delivered.
func (t *Tx) MarkMutationConfirmed(ctx context.Context, id string) error {
	res, err := t.ex.ExecContext(ctx, `UPDATE `+queueTable+` SET confirmed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("localstore: confirm mutation %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: mutation %s", ErrNotFound, id)
	}
	return nil
}

// PurgeConfirmedMutations deletes delivered items and reports how many.
func (t *Tx) PurgeConfirmedMutations(ctx context.Context) (int64, error) {
	res, err := t.ex.ExecContext(ctx, `DELETE FROM `+queueTable+` WHERE confirmed = 1`)
	if err != nil {
		return 0, fmt.Errorf("localstore: purge mutations: %w", err)
	}
	return res.RowsAffected()
}

func (t *Tx) CountPendingMutations(ctx context.Context) (int, error) {
	var n int
	if err := t.ex.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+queueTable+` WHERE confirmed = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("localstore: count mutations: %w", err)
	}
	return n, nil
}
