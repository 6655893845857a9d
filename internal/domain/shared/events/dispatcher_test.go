package events

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wick-sh/wick/internal/shared/logger"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testEvent(eventType string) BaseEvent {
	return BaseEvent{AggregateID: "agg-1", EventType: eventType, OccurredAt: time.Now()}
}

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryEventDispatcher(10, logger.NewLogger())
	require.NoError(t, d.Start())
	defer func() { require.NoError(t, d.Stop()) }()

	got := make(chan DomainEvent, 1)
	require.NoError(t, d.Subscribe("pool.created", NewSimpleEventHandler("pool.created", func(e DomainEvent) error {
		got <- e
		return nil
	})))

	require.NoError(t, d.Publish(testEvent("pool.created")))

	select {
	case e := <-got:
		assert.Equal(t, "agg-1", e.GetAggregateID())
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestDispatcherLogsHandlerFailure(t *testing.T) {
	var out syncBuffer
	log := logger.NewLoggerWithSlog(slog.New(slog.NewTextHandler(&out, nil)))

	d := NewInMemoryEventDispatcher(10, log)
	require.NoError(t, d.Start())
	defer func() { require.NoError(t, d.Stop()) }()

	handled := make(chan struct{}, 1)
	require.NoError(t, d.Subscribe("pool.deleted", NewSimpleEventHandler("pool.deleted", func(DomainEvent) error {
		handled <- struct{}{}
		return errors.New("subscriber exploded")
	})))

	require.NoError(t, d.Publish(testEvent("pool.deleted")))

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}

	assert.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, "event handler failed") &&
			strings.Contains(s, "subscriber exploded")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDispatcherRejectsPublishWhenStopped(t *testing.T) {
	d := NewInMemoryEventDispatcher(10, logger.NewLogger())
	err := d.Publish(testEvent("pool.created"))
	assert.Error(t, err)
}
