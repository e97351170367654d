package node

import (
	"context"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/chaincore/chaincore/config"
	"github.com/chaincore/chaincore/internal/blocksync/mocks"
	"github.com/chaincore/chaincore/internal/processor"
	"github.com/chaincore/chaincore/internal/processor/processortest"
	"github.com/chaincore/chaincore/libs/log"
)

type fixedFinality int64

func (f fixedFinality) FinalizedHeight() int64 { return int64(f) }

func TestNodeStartStop(t *testing.T) {
	defer leaktest.Check(t)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	genesis := processortest.Genesis(0)
	n, err := New(config.TestConfig(), log.TestingLogger(), dbm.NewMemDB(), genesis,
		mocks.NewNetwork(t), fixedFinality(1), Registration{Rules: processortest.New(0)})
	require.NoError(t, err)

	require.NoError(t, n.Start(ctx))
	assert.True(t, n.IsRunning())
	assert.Equal(t, genesis, n.Store().LastBlock())

	sub, err := n.EventBus().Subscribe("test", processor.TopicBroadcast, 1)
	require.NoError(t, err)

	block := processortest.Chain(genesis, 1, "a")[0]
	require.NoError(t, n.Processor().Process(ctx, block, ""))

	msgCtx, msgCancel := context.WithTimeout(ctx, 5*time.Second)
	defer msgCancel()
	msg, err := sub.Next(msgCtx)
	require.NoError(t, err)
	assert.Equal(t, block.ID, msg.Data.(processor.BroadcastEvent).Block.ID)
	assert.Equal(t, block, n.Store().LastBlock())
	assert.False(t, n.Synchronizer().IsActive())

	cancel()
	n.Wait()
	assert.False(t, n.IsRunning())
}

func TestNodeRestartKeepsChain(t *testing.T) {
	db := dbm.NewMemDB()
	genesis := processortest.Genesis(0)
	block := processortest.Chain(genesis, 1, "a")[0]

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		n, err := New(config.TestConfig(), log.NewNopLogger(), db, genesis,
			mocks.NewNetwork(t), fixedFinality(1), Registration{Rules: processortest.New(0)})
		require.NoError(t, err)
		require.NoError(t, n.Start(ctx))

		if i == 0 {
			require.NoError(t, n.Processor().Process(ctx, block, ""))
		}
		assert.Equal(t, block, n.Store().LastBlock())

		require.NoError(t, n.Stop())
		cancel()
	}
}

func TestNewNodeValidation(t *testing.T) {
	genesis := processortest.Genesis(0)

	_, err := New(config.TestConfig(), log.NewNopLogger(), dbm.NewMemDB(), genesis, nil, fixedFinality(1))
	assert.ErrorIs(t, err, processor.ErrNoRuleSets)

	cfg := config.TestConfig()
	cfg.Sync.ActiveDelegates = 0
	_, err = New(cfg, log.NewNopLogger(), dbm.NewMemDB(), genesis, nil, fixedFinality(1),
		Registration{Rules: processortest.New(0)})
	assert.Error(t, err)

	bad := genesis.Copy()
	bad.ID = ""
	_, err = New(config.TestConfig(), log.NewNopLogger(), dbm.NewMemDB(), bad, nil, fixedFinality(1),
		Registration{Rules: processortest.New(0)})
	assert.Error(t, err)
}
