package localstore

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
)

// Indexes declares the document fields each collection can be looked up by.
var Indexes = map[string][]string{
	model.CollPecas:           {"codigo", "categoria_id", "tipo_id", "fornecedor_id"},
	model.CollTipos:           {"categoria_id"},
	model.CollVendas:          {"peca_id", "numero_venda", "status"},
	model.CollAbastecimentos:  {"peca_id", "fornecedor_id"},
	model.CollCompatibilidade: {"categoria_id", "marca"},
}

const queueTable = "_mutation_queue"

func migrate(db *sql.DB) error {
	var stmts []string
	for _, coll := range model.SyncCollections {
		stmts = append(stmts, fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %q (
				id TEXT PRIMARY KEY,
				doc TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`, coll))
		stmts = append(stmts, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %q ON %q (updated_at)`, "idx_"+coll+"_updated_at", coll))
		for _, field := range Indexes[coll] {
			stmts = append(stmts, fmt.Sprintf(
				`CREATE INDEX IF NOT EXISTS %q ON %q (json_extract(doc, '$.%s'))`,
				"idx_"+coll+"_"+field, coll, field))
		}
	}

	stmts = append(stmts,
		`CREATE TABLE IF NOT EXISTS _meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS `+queueTable+` (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			operation TEXT NOT NULL,
			collection TEXT NOT NULL,
			record_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			enqueued_at TEXT NOT NULL,
			confirmed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mutation_queue_confirmed ON `+queueTable+` (confirmed, seq)`,
	)

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("localstore: migrate: %w (%s)", err, firstLine(stmt))
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func checkCollection(name string) error {
	if !model.IsSyncCollection(name) {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return nil
}

func checkIndex(collection, field string) error {
	for _, f := range Indexes[collection] {
		if f == field {
			return nil
		}
	}
	return fmt.Errorf("%w: %s.%s", ErrUnknownIndex, collection, field)
}
