package worker

// scheduler.go
// Owns every trigger of a sync pass:
//   - a mutation was enqueued           → outbound
//   - the remote became reachable again → outbound, then inbound (reconnect)
//   - the periodic safety-net ticker    → outbound, then inbound (periodic)
//   - startup                           → outbound, then inbound (startup)
//   - manual request (RunNow)           → outbound, then inbound (manual)
// Requests that arrive while a pass is queued collapse into that pass.

import (
	"context"
	"errors"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/events"
	"github.com/Mussapinga011/PartQuip-sub000/internal/infra"
	"github.com/Mussapinga011/PartQuip-sub000/internal/syncengine"

	"github.com/rs/zerolog/log"
)

// OutboundRunner is implemented by *syncengine.Outbound.
type OutboundRunner interface {
	Run(ctx context.Context) (syncengine.Result, error)
}

// InboundRunner is implemented by *syncengine.Reconciler.
type InboundRunner interface {
	Reconcile(ctx context.Context, trigger syncengine.Trigger) (syncengine.InboundResult, error)
}

// SchedulerConfig holds all dependencies for the scheduler goroutine.
type SchedulerConfig struct {
	Outbound OutboundRunner
	Inbound  InboundRunner
	Bus      *events.Bus
	// Breaker, when set, makes ticks skip while the remote circuit is open.
	Breaker  *infra.CircuitBreaker
	Interval time.Duration
}

type Scheduler struct {
	cfg       SchedulerConfig
	wake      chan struct{}
	reconnect chan struct{}
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	return &Scheduler{
		cfg:       cfg,
		wake:      make(chan struct{}, 1),
		reconnect: make(chan struct{}, 1),
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	unsubSync := s.cfg.Bus.Subscribe(events.TopicSyncRequested, func(events.Event) {
		signal(s.wake)
	})
	defer unsubSync()
	unsubNet := s.cfg.Bus.Subscribe(events.TopicConnectivity, func(e events.Event) {
		if online, _ := e.Payload.(bool); online {
			signal(s.reconnect)
		}
	})
	defer unsubNet()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.cfg.Interval).Msg("scheduler: started")
	s.pass(ctx, syncengine.TriggerStartup)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler: shutting down")
			return
		case <-s.wake:
			s.runOutbound(ctx)
		case <-s.reconnect:
			s.pass(ctx, syncengine.TriggerReconnect)
		case <-ticker.C:
			if s.cfg.Breaker != nil && s.cfg.Breaker.State() == infra.CBOpen {
				log.Debug().Msg("scheduler: circuit breaker is open, skipping tick")
				continue
			}
			s.pass(ctx, syncengine.TriggerPeriodic)
		}
	}
}

// RunNow performs a manual pass on the caller's goroutine and reports what
// happened. A pass already in flight makes it return ErrSyncInProgress.
func (s *Scheduler) RunNow(ctx context.Context) (syncengine.Result, syncengine.InboundResult, error) {
	out, err := s.cfg.Outbound.Run(ctx)
	if err != nil {
		return out, syncengine.InboundResult{}, err
	}
	in, err := s.cfg.Inbound.Reconcile(ctx, syncengine.TriggerManual)
	return out, in, err
}

// pass runs outbound first so an inbound replace never races local changes
// that are still waiting to be sent.
func (s *Scheduler) pass(ctx context.Context, trigger syncengine.Trigger) {
	s.runOutbound(ctx)
	if ctx.Err() != nil {
		return
	}
	res, err := s.cfg.Inbound.Reconcile(ctx, trigger)
	if err != nil {
		logSkip(err, "scheduler: inbound pass", string(trigger))
		return
	}
	log.Debug().Str("trigger", string(trigger)).Str("mode", res.Mode).Int("fetched", res.Fetched).
		Msg("scheduler: inbound pass done")
}

func (s *Scheduler) runOutbound(ctx context.Context) {
	if _, err := s.cfg.Outbound.Run(ctx); err != nil {
		logSkip(err, "scheduler: outbound pass", "")
	}
}

func logSkip(err error, msg, trigger string) {
	switch {
	case errors.Is(err, syncengine.ErrSyncInProgress), errors.Is(err, syncengine.ErrOffline),
		errors.Is(err, context.Canceled):
		log.Debug().Err(err).Str("trigger", trigger).Msg(msg + " skipped")
	default:
		log.Warn().Err(err).Str("trigger", trigger).Msg(msg + " failed")
	}
}

// signal does a non-blocking send on a 1-buffered channel, so any number of
// requests before the loop gets to it collapse into one.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
