package model

import (
	"github.com/shopspring/decimal"
)

// Peca is a stocked auto part. EstoqueAtual and PrecoCusto are derived
// values: they only change through sales, cancellations, sale edits and
// stock entries.
type Peca struct {
	Base
	Codigo        string          `json:"codigo" gorm:"uniqueIndex;not null" validate:"required,max=60"`
	Nome          string          `json:"nome" gorm:"not null" validate:"required,max=200"`
	Descricao     string          `json:"descricao"`
	CategoriaID   string          `json:"categoria_id" gorm:"index"`
	TipoID        string          `json:"tipo_id" gorm:"index"`
	FornecedorID  string          `json:"fornecedor_id" gorm:"index"`
	PrecoCusto    decimal.Decimal `json:"preco_custo" gorm:"type:decimal(18,6);not null" validate:"min=0"`
	PrecoVenda    decimal.Decimal `json:"preco_venda" gorm:"type:decimal(12,2);not null" validate:"min=0"`
	EstoqueAtual  int             `json:"estoque_atual" gorm:"not null;default:0" validate:"min=0"`
	EstoqueMinimo int             `json:"estoque_minimo" gorm:"not null;default:0" validate:"min=0"`
	Localizacao   string          `json:"localizacao"`
}

func (Peca) TableName() string      { return CollPecas }
func (Peca) CollectionName() string { return CollPecas }

// AbaixoDoMinimo reports whether current stock fell below the minimum threshold.
func (p *Peca) AbaixoDoMinimo() bool {
	return p.EstoqueAtual < p.EstoqueMinimo
}
