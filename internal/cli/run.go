package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/events"
	"github.com/Mussapinga011/PartQuip-sub000/internal/live"
	"github.com/Mussapinga011/PartQuip-sub000/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	NoLive bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the sync runtime",
		Long: `Start the long-running sync runtime: the connectivity monitor, the sync
scheduler (outbound on every local change, inbound on startup, reconnect and
every SYNC_INTERVAL_MINUTES) and the live update channel.

Example:
  partquip run
  partquip run --db ./loja.db --no-live -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRuntime(ctx, app, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoLive, "no-live", false, "do not subscribe to remote change events")

	return cmd
}

// runRuntime blocks until ctx is cancelled and every background loop has
// returned.
func runRuntime(ctx context.Context, app *App, opts *RunOptions) error {
	cfg := app.Config

	unsubLow := app.Bus.Subscribe(events.TopicLowStock, func(e events.Event) {
		log.Warn().Interface("peca", e.Payload).Msg("stock below minimum")
	})
	defer unsubLow()
	unsubReload := app.Bus.Subscribe(events.TopicReloadRequired, func(events.Event) {
		log.Info().Msg("local data was restored from a backup")
	})
	defer unsubReload()
	unsubInactive := app.Bus.Subscribe(events.TopicLiveInactive, func(events.Event) {
		log.Warn().Msg("live updates disabled for this session, relying on periodic sync")
	})
	defer unsubInactive()

	var wg sync.WaitGroup

	// Probe once before the scheduler starts so the startup pass sees the
	// real connectivity state.
	app.Monitor.Check(ctx)

	sched := worker.NewScheduler(worker.SchedulerConfig{
		Outbound: app.Outbound,
		Inbound:  app.Inbound,
		Bus:      app.Bus,
		Breaker:  app.Breaker,
		Interval: cfg.SyncInterval(),
	})
	wg.Add(2)
	go func() { defer wg.Done(); app.Monitor.Run(ctx) }()
	go func() { defer wg.Done(); sched.Run(ctx) }()

	if app.http != nil && !opts.NoLive {
		ch := live.New(app.Store, app.Bus, live.Config{
			URL:         app.http.RealtimeURL(),
			Header:      app.http.AuthHeader(),
			MaxAttempts: cfg.RealtimeMaxAttempts,
			BaseDelay:   cfg.RealtimeBaseDelay(),
			MaxDelay:    cfg.RealtimeMaxDelay(),
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Msg("live channel stopped")
			}
		}()
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server error")
			}
		}()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
	}

	log.Info().
		Str("db", app.Store.Path()).
		Str("inbound_mode", app.Inbound.Mode()).
		Bool("online", app.State.Online()).
		Msg("sync runtime started")

	<-ctx.Done()
	log.Info().Msg("shutting down sync runtime…")

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	wg.Wait()
	log.Info().Msg("sync runtime exited")
	return nil
}
