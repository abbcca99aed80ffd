package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/backup"
	"github.com/Mussapinga011/PartQuip-sub000/internal/config"
	"github.com/Mussapinga011/PartQuip-sub000/internal/events"
	"github.com/Mussapinga011/PartQuip-sub000/internal/infra"
	"github.com/Mussapinga011/PartQuip-sub000/internal/localstore"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
	"github.com/Mussapinga011/PartQuip-sub000/internal/queue"
	"github.com/Mussapinga011/PartQuip-sub000/internal/remote"
	"github.com/Mussapinga011/PartQuip-sub000/internal/service"
	"github.com/Mussapinga011/PartQuip-sub000/internal/syncengine"
	"github.com/Mussapinga011/PartQuip-sub000/internal/worker"

	"github.com/rs/zerolog/log"
)

const pushTimeout = 20 * time.Second

// App is the client composition root shared by every subcommand.
// Dependency graph: Service ← Queue ← Store, Engines ← Remote ← Breaker
type App struct {
	Config  *config.Config
	Store   *localstore.Store
	Bus     *events.Bus
	Queue   *queue.Queue
	State   *syncengine.State
	Breaker *infra.CircuitBreaker
	Remote  remote.Backend

	Outbound *syncengine.Outbound
	Inbound  *syncengine.Reconciler
	Monitor  *worker.ConnectivityMonitor

	Vendas         service.VendaService
	Abastecimentos service.AbastecimentoService
	Consulta       service.ConsultaService
	Catalog        map[string]catalogOps
	Backup         *backup.Service

	// http is nil when the backend was injected.
	http *remote.HTTPClient

	autoPush bool
	enqueued atomic.Bool
}

// NewApp opens the Local Store and wires the client runtime. A nil backend
// selects the HTTP client for cfg.RemoteURL.
func NewApp(cfg *config.Config, backend remote.Backend) (*App, error) {
	store, err := localstore.Open(cfg.LocalDBPath)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	a := &App{
		Config:  cfg,
		Store:   store,
		Bus:     events.New(),
		State:   syncengine.NewState(),
		Breaker: infra.NewCircuitBreaker(infra.DefaultCBConfig()),
		Remote:  backend,
	}
	if a.Remote == nil {
		a.http = remote.NewHTTPClient(cfg.RemoteURL, cfg.RemoteToken, a.Breaker)
		a.Remote = a.http
	}
	a.Queue = queue.New(store, a.Bus)
	a.Bus.Subscribe(events.TopicSyncRequested, func(events.Event) { a.enqueued.Store(true) })

	// ── Engines ──────────────────────────────────────────────────────────────
	a.Outbound = syncengine.NewOutbound(a.Queue, a.Remote, a.State, a.Bus, cfg.UpsertInserts)
	a.Inbound = syncengine.NewReconciler(store, a.Queue, a.Remote, a.State, a.Bus, cfg.InboundMode)
	a.Monitor = worker.NewConnectivityMonitor(a.Remote, a.State, a.Bus, cfg.HealthCheckInterval())

	// ── Services ─────────────────────────────────────────────────────────────
	a.Vendas = service.NewVendaService(store, a.Queue, a.Bus, cfg.SaleNumberPrefix)
	a.Abastecimentos = service.NewAbastecimentoService(store, a.Queue, a.Bus)
	a.Consulta = service.NewConsultaService(store)
	a.Catalog = map[string]catalogOps{
		model.CollCategorias:      catalogAdapter[model.Categoria]{service.NewCategoriaService(store, a.Queue, a.Bus)},
		model.CollTipos:           catalogAdapter[model.Tipo]{service.NewTipoService(store, a.Queue, a.Bus)},
		model.CollFornecedores:    catalogAdapter[model.Fornecedor]{service.NewFornecedorService(store, a.Queue, a.Bus)},
		model.CollPecas:           catalogAdapter[model.Peca]{service.NewPecaService(store, a.Queue, a.Bus)},
		model.CollCompatibilidade: catalogAdapter[model.CompatibilidadeVeiculo]{service.NewCompatibilidadeService(store, a.Queue, a.Bus)},
	}
	a.Backup = backup.New(store, a.Bus)

	return a, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

// pushPending answers this process's sync requests with one outbound pass.
// Write commands exit right after, so nothing else would send their
// mutations before the next tick of a running client. Offline or failed
// sends leave the items queued.
func (a *App) pushPending(ctx context.Context) {
	if !a.autoPush || !a.enqueued.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()

	if !a.Monitor.Check(ctx) {
		log.Debug().Msg("sync: remote unreachable, writes stay queued")
		return
	}
	res, err := a.Outbound.Run(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("sync: push after write failed")
		return
	}
	log.Debug().Int("sent", res.Sent).Int("failed", res.Failed).Msg("sync: pushed after write")
}

// open loads config (unless injected), applies the global flags, sets up
// logging and builds the App.
func (o *RootOptions) open() (*App, error) {
	cfg := o.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}
	if o.Database != "" {
		cfg.LocalDBPath = o.Database
	}

	level := cfg.LogLevel
	if o.Verbose {
		level = "debug"
	}
	infra.SetupLogger(infra.LoggerOptions{
		Level:   level,
		Pretty:  cfg.Env != "production",
		LogFile: cfg.LogFile,
	})

	app, err := NewApp(cfg, o.Backend)
	if err != nil {
		return nil, err
	}
	app.autoPush = !o.Offline
	return app, nil
}

// catalogOps erases the entity type of a CatalogService so commands can
// address catalogue collections by name with JSON input.
type catalogOps interface {
	list(ctx context.Context) (any, error)
	get(ctx context.Context, id string) (any, error)
	create(ctx context.Context, raw []byte) (any, error)
	update(ctx context.Context, id string, raw []byte) (any, error)
	remove(ctx context.Context, id string) error
}

type catalogAdapter[T any] struct {
	svc service.CatalogService[T]
}

func (c catalogAdapter[T]) list(ctx context.Context) (any, error) {
	return c.svc.Listar(ctx)
}

func (c catalogAdapter[T]) get(ctx context.Context, id string) (any, error) {
	return c.svc.Obter(ctx, id)
}

func (c catalogAdapter[T]) create(ctx context.Context, raw []byte) (any, error) {
	v, err := decodeEntity[T](raw)
	if err != nil {
		return nil, err
	}
	return c.svc.Criar(ctx, v)
}

func (c catalogAdapter[T]) update(ctx context.Context, id string, raw []byte) (any, error) {
	v, err := decodeEntity[T](raw)
	if err != nil {
		return nil, err
	}
	return c.svc.Atualizar(ctx, id, v)
}

func (c catalogAdapter[T]) remove(ctx context.Context, id string) error {
	return c.svc.Remover(ctx, id)
}

func decodeEntity[T any](raw []byte) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrInvalidInput, err)
	}
	return v, nil
}
