package worker

import (
	"context"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/events"
	"github.com/Mussapinga011/PartQuip-sub000/internal/syncengine"

	"github.com/rs/zerolog/log"
)

const pingTimeout = 5 * time.Second

// Pinger is implemented by remote.Backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectivityMonitor probes the remote on a fixed interval, keeps
// State.Online current and publishes TopicConnectivity (payload: bool) on
// every transition.
type ConnectivityMonitor struct {
	pinger   Pinger
	state    *syncengine.State
	bus      *events.Bus
	interval time.Duration
}

func NewConnectivityMonitor(p Pinger, state *syncengine.State, bus *events.Bus, interval time.Duration) *ConnectivityMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &ConnectivityMonitor{pinger: p, state: state, bus: bus, interval: interval}
}

// Run probes once immediately, then every interval until ctx is cancelled.
func (m *ConnectivityMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check probes once and returns the resulting online flag.
func (m *ConnectivityMonitor) Check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := m.pinger.Ping(pctx)
	cancel()
	if ctx.Err() != nil {
		return m.state.Online()
	}

	online := err == nil
	if m.state.SetOnline(online) {
		ev := log.Info()
		if !online {
			ev = log.Warn().Err(err)
		}
		ev.Bool("online", online).Msg("connectivity: changed")
		m.bus.Emit(events.TopicConnectivity, "", online)
	}
	return online
}
