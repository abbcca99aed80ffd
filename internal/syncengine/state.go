// Package syncengine moves data between the Local Store and the remote
// backend: Outbound drains the Mutation Queue, Reconciler pulls remote state
// back in (full replace or last-write-wins delta).
package syncengine

import (
	"sync"
	"time"
)

// State is the shared sync status: connectivity, which passes are running and
// when each last finished. It is safe for concurrent use.
type State struct {
	mu              sync.RWMutex
	online          bool
	outboundRunning bool
	inboundRunning  bool
	lastOutbound    time.Time
	lastInbound     time.Time
	lastError       string
}

// NewState starts online; the connectivity monitor corrects it on its first
// probe.
func NewState() *State {
	return &State{online: true}
}

func (s *State) Online() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online
}

// SetOnline stores the flag and reports whether it changed.
func (s *State) SetOnline(online bool) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed = s.online != online
	s.online = online
	return changed
}

// TryBeginOutbound claims the outbound pass. It returns false while another
// outbound pass holds it.
func (s *State) TryBeginOutbound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outboundRunning {
		return false
	}
	s.outboundRunning = true
	return true
}

func (s *State) EndOutbound(at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outboundRunning = false
	s.finishLocked(&s.lastOutbound, at, err)
}

func (s *State) TryBeginInbound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inboundRunning {
		return false
	}
	s.inboundRunning = true
	return true
}

func (s *State) EndInbound(at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inboundRunning = false
	s.finishLocked(&s.lastInbound, at, err)
}

func (s *State) finishLocked(last *time.Time, at time.Time, err error) {
	if err != nil {
		s.lastError = err.Error()
		return
	}
	*last = at
	s.lastError = ""
}

// Syncing reports whether any pass is in flight.
func (s *State) Syncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outboundRunning || s.inboundRunning
}

// StateSnapshot is a point-in-time copy of State.
type StateSnapshot struct {
	Online       bool      `json:"online"`
	Syncing      bool      `json:"syncing"`
	LastOutbound time.Time `json:"last_outbound"`
	LastInbound  time.Time `json:"last_inbound"`
	LastError    string    `json:"last_error,omitempty"`
}

func (s *State) Snapshot() StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StateSnapshot{
		Online:       s.online,
		Syncing:      s.outboundRunning || s.inboundRunning,
		LastOutbound: s.lastOutbound,
		LastInbound:  s.lastInbound,
		LastError:    s.lastError,
	}
}
