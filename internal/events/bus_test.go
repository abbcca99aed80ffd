package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_PublishDeliversToTopicSubscribers(t *testing.T) {
	b := New()
	var got []Event
	b.Subscribe(TopicDataChanged, func(e Event) { got = append(got, e) })
	b.Subscribe(TopicLowStock, func(e Event) { t.Fatalf("unexpected delivery on %s", e.Topic) })

	b.Emit(TopicDataChanged, "pecas", nil)

	if assert.Len(t, got, 1) {
		assert.Equal(t, "pecas", got[0].Collection)
		assert.False(t, got[0].At.IsZero())
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New()
	calls := 0
	unsub := b.Subscribe(TopicSyncRequested, func(Event) { calls++ })

	b.Emit(TopicSyncRequested, "", nil)
	unsub()
	b.Emit(TopicSyncRequested, "", nil)

	assert.Equal(t, 1, calls)
}

func TestBus_NilIsNoop(t *testing.T) {
	var b *Bus
	assert.NotPanics(t, func() { b.Emit(TopicDataChanged, "vendas", nil) })
}
