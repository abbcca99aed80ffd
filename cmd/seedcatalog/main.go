// cmd/seedcatalog creates or refreshes the default categories and types on
// the remote database. Re-running it is safe: ids are derived from the names.
// Usage: go run ./cmd/seedcatalog
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/config"
	"github.com/Mussapinga011/PartQuip-sub000/internal/infra"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
	"github.com/Mussapinga011/PartQuip-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var seedNamespace = uuid.MustParse("5b0c2a4e-8f61-4f0e-9d5c-3a7e1c9b2d40")

// defaultCatalog maps each category to its types.
var defaultCatalog = []struct {
	Categoria string
	Tipos     []string
}{
	{"Filtros", []string{"Filtro de óleo", "Filtro de ar", "Filtro de combustível", "Filtro de habitáculo"}},
	{"Travões", []string{"Pastilhas", "Discos", "Calços", "Cilindros"}},
	{"Suspensão", []string{"Amortecedores", "Molas", "Rótulas", "Casquilhos"}},
	{"Motor", []string{"Correias", "Velas", "Juntas", "Bombas de água"}},
	{"Eléctrico", []string{"Baterias", "Lâmpadas", "Alternadores", "Motores de arranque"}},
	{"Lubrificantes", []string{"Óleo de motor", "Óleo de caixa", "Líquido de travões", "Anticongelante"}},
}

func seedID(kind, name string) string {
	return uuid.NewSHA1(seedNamespace, []byte(kind+":"+name)).String()
}

// seed upserts every default row stamped with now and reports how many the
// database accepted (rows edited later than now are left alone).
func seed(ctx context.Context, reg *repository.Registry, now time.Time) (int, error) {
	cats, err := reg.Get(model.CollCategorias)
	if err != nil {
		return 0, err
	}
	tipos, err := reg.Get(model.CollTipos)
	if err != nil {
		return 0, err
	}

	applied := 0
	upsert := func(repo repository.CollectionRepository, e model.Entity) error {
		e.Touch(now)
		rec, err := model.NewRecord(e)
		if err != nil {
			return err
		}
		_, ok, err := repo.Upsert(ctx, rec)
		if err != nil {
			return fmt.Errorf("%s %s: %w", repo.Name(), rec.ID, err)
		}
		if ok {
			applied++
		}
		return nil
	}

	for _, c := range defaultCatalog {
		cat := &model.Categoria{Nome: c.Categoria}
		cat.ID = seedID("categoria", c.Categoria)
		if err := upsert(cats, cat); err != nil {
			return applied, err
		}
		for _, nome := range c.Tipos {
			t := &model.Tipo{Nome: nome, CategoriaID: cat.ID}
			t.ID = seedID("tipo", c.Categoria+"/"+nome)
			if err := upsert(tipos, t); err != nil {
				return applied, err
			}
		}
	}
	return applied, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	infra.SetupLogger(infra.LoggerOptions{Level: cfg.LogLevel, Pretty: true})

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := seed(ctx, repository.NewRegistry(db), time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("seed error")
	}
	log.Info().Int("applied", n).Msg("catálogo base criado/actualizado")
}
