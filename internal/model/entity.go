package model

import (
	"time"

	"github.com/google/uuid"
)

// Syncable collection names. They are shared by the Local Store, the remote
// tables and the backup document.
const (
	CollCategorias      = "categorias"
	CollTipos           = "tipos"
	CollFornecedores    = "fornecedores"
	CollPecas           = "pecas"
	CollCompatibilidade = "compatibilidade_veiculos"
	CollAbastecimentos  = "abastecimentos"
	CollVendas          = "vendas"
)

// SyncCollections lists every mirrored collection, reference data first.
var SyncCollections = []string{
	CollCategorias,
	CollTipos,
	CollFornecedores,
	CollPecas,
	CollCompatibilidade,
	CollAbastecimentos,
	CollVendas,
}

// IsSyncCollection reports whether name is one of the mirrored collections.
func IsSyncCollection(name string) bool {
	for _, c := range SyncCollections {
		if c == name {
			return true
		}
	}
	return false
}

// Entity is implemented by every persisted domain type.
type Entity interface {
	GetID() string
	GetUpdatedAt() time.Time
	CollectionName() string
	Touch(now time.Time)
}

// Base carries the identity and timestamps every entity shares.
// Timestamps are written by the client that made the change, never by the
// database, so last-write-wins compares the author's clocks.
type Base struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime:false;index"`
}

func (b *Base) GetID() string { return b.ID }

func (b *Base) GetUpdatedAt() time.Time { return b.UpdatedAt }

// Touch assigns an id on first write and stamps created_at/updated_at.
// Stamps keep microseconds, the precision of the remote TIMESTAMPTZ columns,
// so a row read back from the server compares equal to the local copy.
func (b *Base) Touch(now time.Time) {
	now = now.UTC().Truncate(time.Microsecond)
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// Meta exposes the embedded Base so generic code can set identity fields.
func (b *Base) Meta() *Base { return b }
