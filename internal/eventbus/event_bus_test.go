package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaincore/chaincore/libs/log"
)

func startBus(ctx context.Context, t *testing.T) *EventBus {
	t.Helper()
	bus := NewDefault(log.TestingLogger())
	require.NoError(t, bus.Start(ctx))
	t.Cleanup(func() {
		if bus.IsRunning() {
			require.NoError(t, bus.Stop())
		}
	})
	return bus
}

func TestEventBusPublishSubscribe(t *testing.T) {
	defer leaktest.Check(t)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := startBus(ctx, t)

	sub, err := bus.Subscribe("test", "processor:sync", 1)
	require.NoError(t, err)
	other, err := bus.Subscribe("test", "processor:broadcast", 1)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "processor:sync", "payload"))

	msg, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "processor:sync", msg.Topic)
	assert.Equal(t, "payload", msg.Data)

	select {
	case m := <-other.Out():
		t.Fatalf("unexpected message on other topic: %v", m)
	default:
	}
	assert.Equal(t, 2, bus.NumClientSubscriptions("test"))
}

func TestEventBusDuplicateAndUnsubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := startBus(ctx, t)

	sub, err := bus.Subscribe("c", "t", 0)
	require.NoError(t, err)
	_, err = bus.Subscribe("c", "t", 0)
	require.ErrorIs(t, err, ErrAlreadySubscribed)

	require.NoError(t, bus.Unsubscribe("c", "t"))
	require.ErrorIs(t, bus.Unsubscribe("c", "t"), ErrSubscriptionNotFound)

	_, err = sub.Next(ctx)
	require.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestEventBusFullSubscriberDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := startBus(ctx, t)

	sub, err := bus.Subscribe("slow", "t", 1)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			_ = bus.Publish(ctx, "t", i)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	msg := <-sub.Out()
	assert.Equal(t, 0, msg.Data)
}

func TestEventBusStopCancelsSubscriptions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := startBus(ctx, t)

	sub, err := bus.Subscribe("c", "t", 1)
	require.NoError(t, err)
	require.NoError(t, bus.Stop())

	<-sub.Canceled()
	require.ErrorIs(t, bus.Publish(ctx, "t", nil), ErrServerStopped)
	_, err = bus.Subscribe("c", "t", 1)
	require.ErrorIs(t, err, ErrServerStopped)
}
