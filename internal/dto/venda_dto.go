package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// ItemVendaRequest is one cart line. PrecoUnitario defaults to the part's
// sale price when zero.
type ItemVendaRequest struct {
	PecaID        string          `json:"peca_id"        validate:"required"`
	Quantidade    int             `json:"quantidade"     validate:"required,min=1"`
	PrecoUnitario decimal.Decimal `json:"preco_unitario" validate:"min=0"`
}

type RegistrarVendaRequest struct {
	Itens          []ItemVendaRequest `json:"itens"           validate:"required,min=1,dive"`
	FormaPagamento string             `json:"forma_pagamento" validate:"required,oneof=dinheiro cartao transferencia mpesa emola credito"`
	Cliente        string             `json:"cliente"         validate:"max=200"`
	Veiculo        string             `json:"veiculo"         validate:"max=200"`
	Vendedor       string             `json:"vendedor"        validate:"max=100"`
	Observacoes    string             `json:"observacoes"     validate:"max=500"`
}

// EditarVendaRequest edits a confirmed line. When Total is set it is the
// authoritative value and the unit price is derived from it; otherwise the
// total is derived from quantity and unit price.
type EditarVendaRequest struct {
	Quantidade     *int             `json:"quantidade"      validate:"omitempty,min=1"`
	PrecoUnitario  *decimal.Decimal `json:"preco_unitario"`
	Total          *decimal.Decimal `json:"total"`
	FormaPagamento *string          `json:"forma_pagamento" validate:"omitempty,oneof=dinheiro cartao transferencia mpesa emola credito"`
	Cliente        *string          `json:"cliente"         validate:"omitempty,max=200"`
	Veiculo        *string          `json:"veiculo"         validate:"omitempty,max=200"`
	Observacoes    *string          `json:"observacoes"     validate:"omitempty,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type VendaResumo struct {
	NumeroVenda  string          `json:"numero_venda"`
	Linhas       int             `json:"linhas"`
	Total        decimal.Decimal `json:"total"`
	IDs          []string        `json:"ids"`
	EstoqueBaixo []string        `json:"estoque_baixo,omitempty"`
}
