package service

import (
	"context"
	"sort"
	"strings"

	"github.com/Mussapinga011/PartQuip-sub000/internal/localstore"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
)

// ConsultaService answers read-only questions over the Local Store.
type ConsultaService interface {
	PecasParaVeiculo(ctx context.Context, marca, modelo string, ano *int) ([]model.Peca, error)
	EstoqueBaixo(ctx context.Context) ([]model.Peca, error)
	PecasPorCategoria(ctx context.Context, categoriaID string) ([]model.Peca, error)
}

type consultaService struct {
	store localstore.Querier
}

func NewConsultaService(store localstore.Querier) ConsultaService {
	return &consultaService{store: store}
}

// PecasParaVeiculo resolves the part codes listed by every compatibility
// entry for marca/modelo. A nil ano matches any year; an entry without a
// year matches every ano. Codes with no matching part are skipped.
func (s *consultaService) PecasParaVeiculo(ctx context.Context, marca, modelo string, ano *int) ([]model.Peca, error) {
	recs, err := s.store.FindByIndex(ctx, model.CollCompatibilidade, "marca", marca)
	if err != nil {
		return nil, err
	}
	entradas, err := decodeAll[model.CompatibilidadeVeiculo](recs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []model.Peca
	for _, c := range entradas {
		if !strings.EqualFold(c.Modelo, modelo) {
			continue
		}
		if ano != nil && c.Ano != nil && *c.Ano != *ano {
			continue
		}
		for _, codigo := range c.CodigosPecas {
			if _, dup := seen[codigo]; dup {
				continue
			}
			seen[codigo] = struct{}{}
			pecas, err := s.store.FindByIndex(ctx, model.CollPecas, "codigo", codigo)
			if err != nil {
				return nil, err
			}
			decoded, err := decodeAll[model.Peca](pecas)
			if err != nil {
				return nil, err
			}
			out = append(out, decoded...)
		}
	}
	return out, nil
}

// EstoqueBaixo lists parts strictly below their minimum, lowest stock first.
func (s *consultaService) EstoqueBaixo(ctx context.Context) ([]model.Peca, error) {
	recs, err := s.store.GetAll(ctx, model.CollPecas)
	if err != nil {
		return nil, err
	}
	pecas, err := decodeAll[model.Peca](recs)
	if err != nil {
		return nil, err
	}
	var out []model.Peca
	for i := range pecas {
		if pecas[i].AbaixoDoMinimo() {
			out = append(out, pecas[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EstoqueAtual < out[j].EstoqueAtual })
	return out, nil
}

func (s *consultaService) PecasPorCategoria(ctx context.Context, categoriaID string) ([]model.Peca, error) {
	recs, err := s.store.FindByIndex(ctx, model.CollPecas, "categoria_id", categoriaID)
	if err != nil {
		return nil, err
	}
	return decodeAll[model.Peca](recs)
}
