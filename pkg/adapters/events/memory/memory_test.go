package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackd-io/stackd/internal/ports"
)

func countingHandler(count *atomic.Int64) ports.EventHandler {
	return func(ctx context.Context, event ports.Event) error {
		count.Add(1)
		return nil
	}
}

func awaitCount(t *testing.T, count *atomic.Int64, want int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return count.Load() == want
	}, time.Second, 5*time.Millisecond)
}

func awaitSubscriberCount(t *testing.T, bus *InMemoryEventBus, topic string, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.subscribers[topic]) == want
	}, time.Second, 5*time.Millisecond)
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	bus := NewInMemoryEventBus()
	var first, second atomic.Int64

	require.NoError(t, bus.Subscribe(context.Background(), "lifecycle", countingHandler(&first)))
	require.NoError(t, bus.Subscribe(context.Background(), "lifecycle", countingHandler(&second)))

	require.NoError(t, bus.Publish(context.Background(), "lifecycle", ports.Event{ID: "e1"}))

	awaitCount(t, &first, 1)
	awaitCount(t, &second, 1)
}

func TestCancelledSubscriptionStopsReceiving(t *testing.T) {
	bus := NewInMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	var count atomic.Int64

	require.NoError(t, bus.Subscribe(ctx, "lifecycle", countingHandler(&count)))
	require.NoError(t, bus.Publish(context.Background(), "lifecycle", ports.Event{ID: "e1"}))
	awaitCount(t, &count, 1)

	cancel()
	awaitSubscriberCount(t, bus, "lifecycle", 0)

	require.NoError(t, bus.Publish(context.Background(), "lifecycle", ports.Event{ID: "e2"}))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), count.Load())
}

func TestCancelRemovesOnlyTheCancelledSubscription(t *testing.T) {
	bus := NewInMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	var cancelled, surviving atomic.Int64

	require.NoError(t, bus.Subscribe(ctx, "lifecycle", countingHandler(&cancelled)))
	require.NoError(t, bus.Subscribe(context.Background(), "lifecycle", countingHandler(&surviving)))

	cancel()
	awaitSubscriberCount(t, bus, "lifecycle", 1)

	require.NoError(t, bus.Publish(context.Background(), "lifecycle", ports.Event{ID: "e1"}))
	awaitCount(t, &surviving, 1)
	assert.Zero(t, cancelled.Load())
}

func TestUnsubscribeClearsTopic(t *testing.T) {
	bus := NewInMemoryEventBus()
	var count atomic.Int64

	require.NoError(t, bus.Subscribe(context.Background(), "lifecycle", countingHandler(&count)))
	require.NoError(t, bus.Unsubscribe(context.Background(), "lifecycle"))

	require.NoError(t, bus.Publish(context.Background(), "lifecycle", ports.Event{ID: "e1"}))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, count.Load())
}

func TestSubscriptionsAreTopicScoped(t *testing.T) {
	bus := NewInMemoryEventBus()
	var count atomic.Int64

	require.NoError(t, bus.Subscribe(context.Background(), "lifecycle", countingHandler(&count)))
	require.NoError(t, bus.Publish(context.Background(), "other", ports.Event{ID: "e1"}))

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, count.Load())
}
