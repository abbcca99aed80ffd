package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/dto"
	"github.com/Mussapinga011/PartQuip-sub000/internal/events"
	"github.com/Mussapinga011/PartQuip-sub000/internal/localstore"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
	"github.com/Mussapinga011/PartQuip-sub000/internal/queue"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type VendaService interface {
	RegistrarVenda(ctx context.Context, req dto.RegistrarVendaRequest) (*dto.VendaResumo, error)
	CancelarVenda(ctx context.Context, id string) (*model.Venda, error)
	CancelarNumero(ctx context.Context, numero string) ([]model.Venda, error)
	EditarVenda(ctx context.Context, id string, req dto.EditarVendaRequest) (*model.Venda, error)
	ProximoNumero(ctx context.Context) (string, error)
	ListarPorNumero(ctx context.Context, numero string) ([]model.Venda, error)
}

type vendaService struct {
	store  *localstore.Store
	queue  *queue.Queue
	bus    *events.Bus
	prefix string
	now    func() time.Time
}

func NewVendaService(store *localstore.Store, q *queue.Queue, bus *events.Bus, prefix string) VendaService {
	if prefix == "" {
		prefix = "VD"
	}
	return &vendaService{store: store, queue: q, bus: bus, prefix: prefix, now: time.Now}
}

// ── RegistrarVenda ────────────────────────────────────────────────────────────
// One transaction for the whole checkout:
//   1. next sale number for today
//   2. per line: load part, check stock, write venda, decrement stock
//   3. write every touched part once
// Any failure rolls back every line.

func (s *vendaService) RegistrarVenda(ctx context.Context, req dto.RegistrarVendaRequest) (*dto.VendaResumo, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	now := s.now()
	resumo := &dto.VendaResumo{Total: decimal.Zero}
	var baixo []model.Peca

	err := s.store.Update(ctx, func(tx *localstore.Tx) error {
		numero, err := nextSaleNumber(ctx, tx, s.prefix, now)
		if err != nil {
			return err
		}
		resumo.NumeroVenda = numero

		pecas := make(map[string]*model.Peca)
		var ordem []string
		for _, item := range req.Itens {
			p, ok := pecas[item.PecaID]
			if !ok {
				p, err = load[model.Peca](ctx, tx, model.CollPecas, item.PecaID)
				if err != nil {
					return err
				}
				pecas[item.PecaID] = p
				ordem = append(ordem, item.PecaID)
			}
			if item.Quantidade > p.EstoqueAtual {
				return &InsufficientStockError{
					PecaID:     p.ID,
					Codigo:     p.Codigo,
					Solicitado: item.Quantidade,
					Disponivel: p.EstoqueAtual,
				}
			}
			p.EstoqueAtual -= item.Quantidade

			preco := item.PrecoUnitario
			if preco.IsZero() {
				preco = p.PrecoVenda
			}
			v := &model.Venda{
				NumeroVenda:    numero,
				PecaID:         p.ID,
				PecaCodigo:     p.Codigo,
				PecaNome:       p.Nome,
				Quantidade:     item.Quantidade,
				PrecoUnitario:  preco,
				Total:          preco.Mul(decimal.NewFromInt(int64(item.Quantidade))),
				FormaPagamento: req.FormaPagamento,
				Cliente:        req.Cliente,
				Veiculo:        req.Veiculo,
				Vendedor:       req.Vendedor,
				Status:         model.VendaConfirmada,
				Observacoes:    req.Observacoes,
			}
			v.Touch(now)
			if err := persist(ctx, tx, s.queue, model.OpInsert, v); err != nil {
				return err
			}
			resumo.IDs = append(resumo.IDs, v.ID)
			resumo.Total = resumo.Total.Add(v.Total)
		}

		for _, id := range ordem {
			p := pecas[id]
			p.Touch(now)
			if err := persist(ctx, tx, s.queue, model.OpUpdate, p); err != nil {
				return err
			}
			if p.AbaixoDoMinimo() {
				baixo = append(baixo, *p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resumo.Linhas = len(resumo.IDs)
	for i := range baixo {
		p := baixo[i]
		resumo.EstoqueBaixo = append(resumo.EstoqueBaixo, p.Codigo)
		log.Warn().
			Str("peca_id", p.ID).
			Str("codigo", p.Codigo).
			Int("estoque_atual", p.EstoqueAtual).
			Int("estoque_minimo", p.EstoqueMinimo).
			Msg("estoque abaixo do mínimo")
		s.bus.Emit(events.TopicLowStock, model.CollPecas, p)
	}
	s.bus.Emit(events.TopicDataChanged, model.CollVendas, resumo.NumeroVenda)

	log.Info().
		Str("numero_venda", resumo.NumeroVenda).
		Int("linhas", resumo.Linhas).
		Str("total", resumo.Total.StringFixed(2)).
		Msg("venda registada")
	return resumo, nil
}

// ── CancelarVenda ─────────────────────────────────────────────────────────────
// confirmada → cancelada is terminal. The original line quantity goes back
// to the part exactly once; a second cancellation is rejected.

func (s *vendaService) CancelarVenda(ctx context.Context, id string) (*model.Venda, error) {
	var out *model.Venda
	err := s.store.Update(ctx, func(tx *localstore.Tx) error {
		v, err := load[model.Venda](ctx, tx, model.CollVendas, id)
		if err != nil {
			return err
		}
		if err := s.cancelLine(ctx, tx, v, s.now(), nil); err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.bus.Emit(events.TopicDataChanged, model.CollVendas, out.ID)
	return out, nil
}

// CancelarNumero cancels every confirmed line of one checkout.
func (s *vendaService) CancelarNumero(ctx context.Context, numero string) ([]model.Venda, error) {
	var canceladas []model.Venda
	err := s.store.Update(ctx, func(tx *localstore.Tx) error {
		recs, err := tx.FindByIndex(ctx, model.CollVendas, "numero_venda", numero)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return fmt.Errorf("%w: venda %s", ErrNotFound, numero)
		}
		linhas, err := decodeAll[model.Venda](recs)
		if err != nil {
			return err
		}

		now := s.now()
		pecas := make(map[string]*model.Peca)
		for i := range linhas {
			v := &linhas[i]
			if !v.Confirmada() {
				continue
			}
			if err := s.cancelLine(ctx, tx, v, now, pecas); err != nil {
				return err
			}
			canceladas = append(canceladas, *v)
		}
		if len(canceladas) == 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateCancellation, numero)
		}
		for _, p := range pecas {
			p.Touch(now)
			if err := persist(ctx, tx, s.queue, model.OpUpdate, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.bus.Emit(events.TopicDataChanged, model.CollVendas, numero)
	return canceladas, nil
}

// cancelLine marks v cancelled and restores its quantity. When pending is
// nil the part is written immediately; otherwise it is collected so the
// caller writes each part once.
func (s *vendaService) cancelLine(ctx context.Context, tx *localstore.Tx, v *model.Venda, now time.Time, pending map[string]*model.Peca) error {
	if !v.Confirmada() {
		return fmt.Errorf("%w: %s", ErrDuplicateCancellation, v.ID)
	}

	v.Status = model.VendaCancelada
	canceladaEm := now.UTC()
	v.CanceladaEm = &canceladaEm
	v.Touch(now)
	if err := persist(ctx, tx, s.queue, model.OpUpdate, v); err != nil {
		return err
	}

	p, ok := pending[v.PecaID]
	if !ok {
		loaded, err := load[model.Peca](ctx, tx, model.CollPecas, v.PecaID)
		if errors.Is(err, ErrNotFound) {
			log.Warn().Str("venda_id", v.ID).Str("peca_id", v.PecaID).
				Msg("peça removida: cancelamento sem reposição de estoque")
			return nil
		}
		if err != nil {
			return err
		}
		p = loaded
	}
	p.EstoqueAtual += v.Quantidade

	if pending != nil {
		pending[p.ID] = p
		return nil
	}
	p.Touch(now)
	return persist(ctx, tx, s.queue, model.OpUpdate, p)
}

// ── EditarVenda ───────────────────────────────────────────────────────────────
// Quantity changes move stock by the delta (newQty - oldQty). When the total
// is edited directly it wins and the unit price is derived from it.

func (s *vendaService) EditarVenda(ctx context.Context, id string, req dto.EditarVendaRequest) (*model.Venda, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.Total != nil && req.Total.IsNegative() {
		return nil, fmt.Errorf("%w: total negativo", ErrInvalidInput)
	}
	if req.PrecoUnitario != nil && req.PrecoUnitario.IsNegative() {
		return nil, fmt.Errorf("%w: preço unitário negativo", ErrInvalidInput)
	}

	var out *model.Venda
	var baixo *model.Peca
	err := s.store.Update(ctx, func(tx *localstore.Tx) error {
		v, err := load[model.Venda](ctx, tx, model.CollVendas, id)
		if err != nil {
			return err
		}
		if !v.Confirmada() {
			return fmt.Errorf("%w: %s está %s", ErrSaleNotEditable, v.ID, v.Status)
		}
		now := s.now()

		novaQtd := v.Quantidade
		if req.Quantidade != nil {
			novaQtd = *req.Quantidade
		}
		if delta := novaQtd - v.Quantidade; delta != 0 {
			p, err := load[model.Peca](ctx, tx, model.CollPecas, v.PecaID)
			switch {
			case errors.Is(err, ErrNotFound) && delta < 0:
				log.Warn().Str("venda_id", v.ID).Str("peca_id", v.PecaID).
					Msg("peça removida: edição sem reposição de estoque")
			case err != nil:
				return err
			default:
				if delta > 0 && p.EstoqueAtual < delta {
					return &InsufficientStockError{
						PecaID:     p.ID,
						Codigo:     p.Codigo,
						Solicitado: delta,
						Disponivel: p.EstoqueAtual,
					}
				}
				p.EstoqueAtual -= delta
				p.Touch(now)
				if err := persist(ctx, tx, s.queue, model.OpUpdate, p); err != nil {
					return err
				}
				if p.AbaixoDoMinimo() {
					baixo = p
				}
			}
		}

		qtd := decimal.NewFromInt(int64(novaQtd))
		switch {
		case req.Total != nil:
			v.Total = *req.Total
			v.PrecoUnitario = req.Total.Div(qtd).Round(2)
		case req.PrecoUnitario != nil:
			v.PrecoUnitario = *req.PrecoUnitario
			v.Total = req.PrecoUnitario.Mul(qtd)
		default:
			v.Total = v.PrecoUnitario.Mul(qtd)
		}
		v.Quantidade = novaQtd

		if req.FormaPagamento != nil {
			v.FormaPagamento = *req.FormaPagamento
		}
		if req.Cliente != nil {
			v.Cliente = *req.Cliente
		}
		if req.Veiculo != nil {
			v.Veiculo = *req.Veiculo
		}
		if req.Observacoes != nil {
			v.Observacoes = *req.Observacoes
		}

		v.Touch(now)
		if err := persist(ctx, tx, s.queue, model.OpUpdate, v); err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	if baixo != nil {
		s.bus.Emit(events.TopicLowStock, model.CollPecas, *baixo)
	}
	s.bus.Emit(events.TopicDataChanged, model.CollVendas, out.ID)
	return out, nil
}

// ── Numbering ─────────────────────────────────────────────────────────────────

func (s *vendaService) ProximoNumero(ctx context.Context) (numero string, err error) {
	err = s.store.View(ctx, func(tx *localstore.Tx) error {
		numero, err = nextSaleNumber(ctx, tx, s.prefix, s.now())
		return err
	})
	return numero, err
}

func (s *vendaService) ListarPorNumero(ctx context.Context, numero string) ([]model.Venda, error) {
	recs, err := s.store.FindByIndex(ctx, model.CollVendas, "numero_venda", numero)
	if err != nil {
		return nil, err
	}
	return decodeAll[model.Venda](recs)
}

// nextSaleNumber returns PREFIX-YYYYMMDD-NNNN. The sequence counts the
// distinct sale numbers already issued for that date; if an existing number
// carries a higher sequence (numbers synced from another till) it continues
// after that one instead.
func nextSaleNumber(ctx context.Context, q localstore.Querier, prefix string, now time.Time) (string, error) {
	datePrefix := prefix + "-" + now.Format("20060102") + "-"
	recs, err := q.FindByPrefix(ctx, model.CollVendas, "numero_venda", datePrefix)
	if err != nil {
		return "", err
	}

	seen := make(map[string]struct{})
	maxSeq := 0
	for _, rec := range recs {
		var v struct {
			NumeroVenda string `json:"numero_venda"`
		}
		if err := rec.Decode(&v); err != nil {
			return "", err
		}
		seen[v.NumeroVenda] = struct{}{}
		if n, err := strconv.Atoi(strings.TrimPrefix(v.NumeroVenda, datePrefix)); err == nil && n > maxSeq {
			maxSeq = n
		}
	}
	seq := len(seen)
	if maxSeq > seq {
		seq = maxSeq
	}
	return fmt.Sprintf("%s%04d", datePrefix, seq+1), nil
}
