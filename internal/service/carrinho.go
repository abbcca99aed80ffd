package service

import (
	"context"

	"github.com/Mussapinga011/PartQuip-sub000/internal/dto"
	"github.com/Mussapinga011/PartQuip-sub000/internal/localstore"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"

	"github.com/shopspring/decimal"
)

// Carrinho builds one checkout against the parts as they were when each line
// was added. The stock check here is best effort; RegistrarVenda checks again
// inside its transaction.
type Carrinho struct {
	store  localstore.Querier
	linhas []linhaCarrinho
}

type linhaCarrinho struct {
	item   dto.ItemVendaRequest
	codigo string
}

func NovoCarrinho(store localstore.Querier) *Carrinho {
	return &Carrinho{store: store}
}

// Add appends a line. A zero preco uses the part's sale price. The line is
// rejected when the quantity already in the cart plus qtd exceeds stock.
func (c *Carrinho) Add(ctx context.Context, pecaID string, qtd int, preco decimal.Decimal) error {
	if qtd <= 0 {
		return ErrInvalidInput
	}
	p, err := load[model.Peca](ctx, c.store, model.CollPecas, pecaID)
	if err != nil {
		return err
	}

	noCarrinho := c.quantidade(pecaID)
	if noCarrinho+qtd > p.EstoqueAtual {
		return &InsufficientStockError{
			PecaID:     p.ID,
			Codigo:     p.Codigo,
			Solicitado: noCarrinho + qtd,
			Disponivel: p.EstoqueAtual,
		}
	}

	if preco.IsZero() {
		preco = p.PrecoVenda
	}
	c.linhas = append(c.linhas, linhaCarrinho{
		item:   dto.ItemVendaRequest{PecaID: pecaID, Quantidade: qtd, PrecoUnitario: preco},
		codigo: p.Codigo,
	})
	return nil
}

// Remove drops every line for pecaID.
func (c *Carrinho) Remove(pecaID string) {
	kept := c.linhas[:0]
	for _, l := range c.linhas {
		if l.item.PecaID != pecaID {
			kept = append(kept, l)
		}
	}
	c.linhas = kept
}

func (c *Carrinho) Itens() []dto.ItemVendaRequest {
	out := make([]dto.ItemVendaRequest, len(c.linhas))
	for i, l := range c.linhas {
		out[i] = l.item
	}
	return out
}

func (c *Carrinho) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.linhas {
		total = total.Add(l.item.PrecoUnitario.Mul(decimal.NewFromInt(int64(l.item.Quantidade))))
	}
	return total
}

func (c *Carrinho) Vazio() bool { return len(c.linhas) == 0 }

// Codigos lists the part codes in the cart, in insertion order.
func (c *Carrinho) Codigos() []string {
	out := make([]string, len(c.linhas))
	for i, l := range c.linhas {
		out[i] = l.codigo
	}
	return out
}

func (c *Carrinho) quantidade(pecaID string) int {
	n := 0
	for _, l := range c.linhas {
		if l.item.PecaID == pecaID {
			n += l.item.Quantidade
		}
	}
	return n
}
