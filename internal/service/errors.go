package service

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock     = errors.New("estoque insuficiente")
	ErrDuplicateCancellation = errors.New("venda já está cancelada")
	ErrSaleNotEditable       = errors.New("apenas vendas confirmadas podem ser editadas")
	ErrDuplicateCode         = errors.New("já existe uma peça com esse código")
	ErrInvalidInput          = errors.New("dados inválidos")
	ErrNotFound              = errors.New("registo não encontrado")
)

// InsufficientStockError reports which part could not cover a quantity.
type InsufficientStockError struct {
	PecaID     string
	Codigo     string
	Solicitado int
	Disponivel int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("estoque insuficiente para %s: solicitado %d, disponível %d", e.Codigo, e.Solicitado, e.Disponivel)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
