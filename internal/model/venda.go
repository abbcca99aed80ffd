package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	VendaConfirmada = "confirmada"
	VendaCancelada  = "cancelada"
)

// Venda is one line item of a checkout. Lines of the same checkout share
// NumeroVenda. The part code and name are copied so the line survives the
// part being deleted.
type Venda struct {
	Base
	NumeroVenda    string          `json:"numero_venda" gorm:"index;not null"`
	PecaID         string          `json:"peca_id" gorm:"index"`
	PecaCodigo     string          `json:"peca_codigo"`
	PecaNome       string          `json:"peca_nome"`
	Quantidade     int             `json:"quantidade" gorm:"not null"`
	PrecoUnitario  decimal.Decimal `json:"preco_unitario" gorm:"type:decimal(12,2);not null"`
	Total          decimal.Decimal `json:"total" gorm:"type:decimal(12,2);not null"`
	FormaPagamento string          `json:"forma_pagamento"`
	Cliente        string          `json:"cliente"`
	Veiculo        string          `json:"veiculo"`
	Vendedor       string          `json:"vendedor"`
	Status         string          `json:"status" gorm:"not null;default:'confirmada'"`
	Observacoes    string          `json:"observacoes"`
	CanceladaEm    *time.Time      `json:"cancelada_em,omitempty"`
}

func (Venda) TableName() string      { return CollVendas }
func (Venda) CollectionName() string { return CollVendas }

func (v *Venda) Confirmada() bool { return v.Status == VendaConfirmada }
