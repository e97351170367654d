package blocksync

import (
	"context"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chaincore/chaincore/internal/eventbus"
	"github.com/chaincore/chaincore/internal/processor"
	"github.com/chaincore/chaincore/libs/log"
)

func farBehind(t *testing.T, h *syncHarness) {
	t.Helper()
	epoch, err := h.cfg.EpochTime()
	require.NoError(t, err)
	h.sync.WithClock(func() time.Time { return epoch.Add(24 * time.Hour) })
}

func TestReactorSynchronizesOnDifferentChain(t *testing.T) {
	defer leaktest.Check(t)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.NewDefault(log.TestingLogger())
	require.NoError(t, bus.Start(ctx))

	h := buildSyncHarness(t, bus)
	farBehind(t, h)
	h.expectHealthyPeer(t)
	h.network.On("GetBlocksFromID", mock.Anything, mock.Anything, h.genesis.ID).Return(h.serialize(t, h.remote...), nil)

	reactor := NewReactor(h.cfg, log.TestingLogger(), bus, h.sync)
	require.NoError(t, reactor.Start(ctx))
	require.Equal(t, 1, bus.NumClientSubscriptions(subscriberID))

	// the received block belongs to a heavier chain, so the processor asks
	// for a synchronization
	require.NoError(t, h.proc.Process(ctx, h.received, "127.0.0.1:5001"))

	require.Eventually(t, func() bool {
		return h.store.LastBlock().ID == h.received.ID
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	reactor.Wait()
	bus.Wait()
}

func TestReactorDisabled(t *testing.T) {
	defer leaktest.Check(t)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.NewDefault(log.TestingLogger())
	require.NoError(t, bus.Start(ctx))

	h := newSyncHarness(t)
	h.cfg.Enable = false
	reactor := NewReactor(h.cfg, log.TestingLogger(), bus, h.sync)
	require.NoError(t, reactor.Start(ctx))
	assert.Zero(t, bus.NumClientSubscriptions(subscriberID))

	cancel()
	reactor.Wait()
	bus.Wait()
}

func TestReactorHandleSyncRequest(t *testing.T) {
	ctx := context.Background()
	h := newSyncHarness(t)
	reactor := NewReactor(h.cfg, log.TestingLogger(), eventbus.NewDefault(log.NewNopLogger()), h.sync)

	t.Run("unexpected payload", func(t *testing.T) {
		err := reactor.handleSyncRequest(ctx, eventbus.Message{Topic: processor.TopicSync, Data: "junk"})
		assert.Error(t, err)
	})

	t.Run("undecodable block", func(t *testing.T) {
		bad := h.serialize(t, h.received)[0]
		bad.Data = []byte("{")
		err := reactor.handleSyncRequest(ctx, eventbus.Message{
			Topic: processor.TopicSync,
			Data:  processor.SyncEvent{Block: bad},
		})
		assert.Error(t, err)
	})

	t.Run("not far enough behind", func(t *testing.T) {
		epoch, err := h.cfg.EpochTime()
		require.NoError(t, err)
		h.sync.WithClock(func() time.Time { return epoch })

		err = reactor.handleSyncRequest(ctx, eventbus.Message{
			Topic: processor.TopicSync,
			Data:  processor.SyncEvent{Block: h.serialize(t, h.received)[0]},
		})
		require.NoError(t, err)
		h.network.AssertNotCalled(t, "GetPeers", mock.Anything)
	})
}
