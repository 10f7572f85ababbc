package messaging

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

func newSyncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false, EnableMetrics: true})
}

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var completed, generated int32
	require.NoError(t, bus.Subscribe(shared.EventActivityCompleted, func(e shared.Event) error {
		atomic.AddInt32(&completed, 1)
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventPlanGenerated, func(e shared.Event) error {
		atomic.AddInt32(&generated, 1)
		return nil
	}))

	event := shared.NewActivityCompletedEvent("rec1", "child1", "act1", time.Now(), nil)
	require.NoError(t, bus.Publish(event))

	assert.Equal(t, int32(1), atomic.LoadInt32(&completed))
	assert.Equal(t, int32(0), atomic.LoadInt32(&generated))
}

func TestInMemoryEventBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var seen int32
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		atomic.AddInt32(&seen, 1)
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewActivityCompletedEvent("rec1", "child1", "act1", time.Now(), nil)))
	require.NoError(t, bus.Publish(shared.NewPlanGeneratedEvent("plan1", "child1", "2026-03-02", 5, "weekly_batch")))

	assert.Equal(t, int32(2), atomic.LoadInt32(&seen))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
}

func TestInMemoryEventBus_ClosedBusRejectsPublish(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewPlanGeneratedEvent("plan1", "child1", "2026-03-02", 5, "weekly_batch"))
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestDispatcher_RetriesThenDeadLetters(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	d := NewDispatcher(DispatcherConfig{
		EventBus:              bus,
		WorkerPoolSize:        2,
		RetryConfig:           RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffMultiplier: 2.0},
		EnableDeadLetterQueue: true,
		DeadLetterQueueSize:   10,
	})
	defer d.Stop()

	var attempts int32
	require.NoError(t, d.RegisterSync(shared.EventActivityCompleted, "always_fails", func(e shared.Event) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("boom")
	}))

	err := d.Dispatch(shared.NewActivityCompletedEvent("rec1", "child1", "act1", time.Now(), nil))
	assert.Error(t, err)

	// Initial attempt plus two retries.
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	require.Equal(t, 1, d.DeadLetterQueue().Size())
	entry, ok := d.DeadLetterQueue().Pop()
	require.True(t, ok)
	assert.Equal(t, "always_fails", entry.HandlerName)
	assert.Equal(t, 3, entry.Attempts)
}

func TestDispatcher_RecoveryMiddlewareTurnsPanicIntoError(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	d := NewDispatcher(DispatcherConfig{
		EventBus:    bus,
		RetryConfig: RetryConfig{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1.0},
	})
	defer d.Stop()
	d.Use(RecoveryMiddleware(slog.Default()))

	require.NoError(t, d.RegisterSync(shared.EventPlanGenerated, "panics", func(e shared.Event) error {
		panic("bad handler")
	}))

	err := d.Dispatch(shared.NewPlanGeneratedEvent("plan1", "child1", "2026-03-02", 5, "weekly_batch"))
	assert.Error(t, err)
}
