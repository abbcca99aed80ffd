package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Abastecimento is an immutable stock entry. Its effect on the part (stock
// and weighted average cost) is applied once, when it is created.
type Abastecimento struct {
	Base
	PecaID        string          `json:"peca_id" gorm:"index;not null"`
	FornecedorID  string          `json:"fornecedor_id" gorm:"index"`
	Quantidade    int             `json:"quantidade" gorm:"not null"`
	CustoUnitario decimal.Decimal `json:"custo_unitario" gorm:"type:decimal(12,2);not null"`
	CustoTotal    decimal.Decimal `json:"custo_total" gorm:"type:decimal(12,2);not null"`
	Data          time.Time       `json:"data" gorm:"not null"`
	Observacoes   string          `json:"observacoes"`
}

func (Abastecimento) TableName() string      { return CollAbastecimentos }
func (Abastecimento) CollectionName() string { return CollAbastecimentos }
