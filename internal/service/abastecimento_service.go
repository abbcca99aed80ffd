package service

import (
	"context"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/dto"
	"github.com/Mussapinga011/PartQuip-sub000/internal/events"
	"github.com/Mussapinga011/PartQuip-sub000/internal/localstore"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
	"github.com/Mussapinga011/PartQuip-sub000/internal/queue"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type AbastecimentoService interface {
	RegistrarAbastecimento(ctx context.Context, req dto.RegistrarAbastecimentoRequest) (*dto.AbastecimentoResponse, error)
	ListarPorPeca(ctx context.Context, pecaID string) ([]model.Abastecimento, error)
}

type abastecimentoService struct {
	store *localstore.Store
	queue *queue.Queue
	bus   *events.Bus
	now   func() time.Time
}

func NewAbastecimentoService(store *localstore.Store, q *queue.Queue, bus *events.Bus) AbastecimentoService {
	return &abastecimentoService{store: store, queue: q, bus: bus, now: time.Now}
}

// RegistrarAbastecimento writes the stock entry and the part's new stock and
// average cost in one transaction: both or neither.
func (s *abastecimentoService) RegistrarAbastecimento(ctx context.Context, req dto.RegistrarAbastecimentoRequest) (*dto.AbastecimentoResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	now := s.now()
	data := now.UTC()
	if req.Data != nil {
		data = req.Data.UTC()
	}

	var resp *dto.AbastecimentoResponse
	err := s.store.Update(ctx, func(tx *localstore.Tx) error {
		p, err := load[model.Peca](ctx, tx, model.CollPecas, req.PecaID)
		if err != nil {
			return err
		}

		novoEstoque, novoCusto := CustoMedioPonderado(p.EstoqueAtual, p.PrecoCusto, req.Quantidade, req.CustoUnitario)
		resp = &dto.AbastecimentoResponse{
			PecaID:          p.ID,
			EstoqueAnterior: p.EstoqueAtual,
			EstoqueNovo:     novoEstoque,
			CustoAnterior:   p.PrecoCusto,
			CustoMedio:      novoCusto,
		}

		a := &model.Abastecimento{
			PecaID:        p.ID,
			FornecedorID:  req.FornecedorID,
			Quantidade:    req.Quantidade,
			CustoUnitario: req.CustoUnitario,
			CustoTotal:    req.CustoUnitario.Mul(decimal.NewFromInt(int64(req.Quantidade))),
			Data:          data,
			Observacoes:   req.Observacoes,
		}
		if a.FornecedorID == "" {
			a.FornecedorID = p.FornecedorID
		}
		a.Touch(now)
		if err := persist(ctx, tx, s.queue, model.OpInsert, a); err != nil {
			return err
		}
		resp.ID = a.ID

		p.EstoqueAtual = novoEstoque
		p.PrecoCusto = novoCusto
		p.Touch(now)
		return persist(ctx, tx, s.queue, model.OpUpdate, p)
	})
	if err != nil {
		return nil, err
	}

	s.bus.Emit(events.TopicDataChanged, model.CollAbastecimentos, resp.ID)
	log.Info().
		Str("peca_id", resp.PecaID).
		Int("quantidade", req.Quantidade).
		Int("estoque", resp.EstoqueNovo).
		Str("custo_medio", resp.CustoMedio.StringFixed(2)).
		Msg("abastecimento registado")
	return resp, nil
}

func (s *abastecimentoService) ListarPorPeca(ctx context.Context, pecaID string) ([]model.Abastecimento, error) {
	recs, err := s.store.FindByIndex(ctx, model.CollAbastecimentos, "peca_id", pecaID)
	if err != nil {
		return nil, err
	}
	return decodeAll[model.Abastecimento](recs)
}

// custoCasas matches the scale of the remote preco_custo column.
const custoCasas = 6

// CustoMedioPonderado returns the stock and weighted average unit cost after
// receiving qtd units at custoUnitario:
//
//	novoEstoque = estoque + qtd
//	novoCusto   = (estoque*custo + qtd*custoUnitario) / novoEstoque
//
// The cost keeps custoCasas decimal places so a chain of entries stays on
// the exact average; it is shown in cents. A non-positive novoEstoque falls
// back to custoUnitario.
func CustoMedioPonderado(estoque int, custo decimal.Decimal, qtd int, custoUnitario decimal.Decimal) (int, decimal.Decimal) {
	novoEstoque := estoque + qtd
	if novoEstoque <= 0 {
		return novoEstoque, custoUnitario
	}
	valorAnterior := custo.Mul(decimal.NewFromInt(int64(estoque)))
	valorEntrada := custoUnitario.Mul(decimal.NewFromInt(int64(qtd)))
	novoCusto := valorAnterior.Add(valorEntrada).Div(decimal.NewFromInt(int64(novoEstoque))).Round(custoCasas)
	return novoEstoque, novoCusto
}
