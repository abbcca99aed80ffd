package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type RegistrarAbastecimentoRequest struct {
	PecaID        string          `json:"peca_id"        validate:"required"`
	FornecedorID  string          `json:"fornecedor_id"`
	Quantidade    int             `json:"quantidade"     validate:"required,min=1"`
	CustoUnitario decimal.Decimal `json:"custo_unitario" validate:"min=0"`
	Data          *time.Time      `json:"data"`
	Observacoes   string          `json:"observacoes"    validate:"max=500"`
}

type AbastecimentoResponse struct {
	ID              string          `json:"id"`
	PecaID          string          `json:"peca_id"`
	EstoqueAnterior int             `json:"estoque_anterior"`
	EstoqueNovo     int             `json:"estoque_novo"`
	CustoAnterior   decimal.Decimal `json:"custo_anterior"`
	CustoMedio      decimal.Decimal `json:"custo_medio"`
}
