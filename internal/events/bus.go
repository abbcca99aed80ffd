// Package events is the in-process publish/subscribe channel the sync
// components use to signal each other and the presentation layer.
package events

import (
	"sync"
	"time"
)

// Topic names a signal.
type Topic string

const (
	// TopicSyncRequested is published after a mutation is enqueued.
	TopicSyncRequested Topic = "sync.requested"
	// TopicDataChanged is published when a collection changed under the UI.
	TopicDataChanged Topic = "data.changed"
	// TopicLowStock is published when a sale leaves a part under its minimum.
	TopicLowStock Topic = "stock.low"
	// TopicConnectivity is published on online/offline transitions.
	TopicConnectivity Topic = "network.connectivity"
	// TopicLiveInactive is published once live updates give up for the session.
	TopicLiveInactive Topic = "live.inactive"
	// TopicSyncCompleted is published after each outbound or inbound pass.
	TopicSyncCompleted Topic = "sync.completed"
	// TopicReloadRequired is published after a backup restore.
	TopicReloadRequired Topic = "reload.required"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	Topic      Topic
	Collection string
	Payload    any
	At         time.Time
}

// Handler receives events synchronously on the publisher's goroutine and
// must not block.
type Handler func(Event)

// Bus fans events out to subscribers. The zero value is not usable; use New.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Topic]map[int]Handler
}

func New() *Bus {
	return &Bus{subs: make(map[Topic]map[int]Handler)}
}

// Subscribe registers h for topic and returns a function that removes it.
func (b *Bus) Subscribe(topic Topic, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	b.subs[topic][id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

// Publish delivers e to every subscriber of e.Topic. A nil Bus drops the event.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[e.Topic]))
	for _, h := range b.subs[e.Topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// Emit is shorthand for publishing a topic with an optional collection.
func (b *Bus) Emit(topic Topic, collection string, payload any) {
	b.Publish(Event{Topic: topic, Collection: collection, Payload: payload})
}
