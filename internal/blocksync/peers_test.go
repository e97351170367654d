package blocksync

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/chaincore/chaincore/types"
)

func makePeer(port int, tip string, height, prevoted int64) types.PeerInfo {
	version := 0
	return types.PeerInfo{
		IP:                          "127.0.0.1",
		Port:                        port,
		State:                       types.PeerStateConnected,
		LastBlockID:                 tip,
		Height:                      &height,
		PrevotedConfirmedUptoHeight: &prevoted,
		BlockVersion:                &version,
	}
}

func alwaysDifferentChain(context.Context, *types.Block) (types.ForkStatus, error) {
	return types.DifferentChain, nil
}

func TestSelectBestPeerRestrictsToHighest(t *testing.T) {
	peers := []types.PeerInfo{
		makePeer(1, "x", 10, 8),
		makePeer(2, "x", 10, 8),
		makePeer(3, "y", 9, 8),
	}

	for seed := int64(0); seed < 20; seed++ {
		var probed *types.Block
		peer, err := SelectBestPeer(context.Background(), peers, rand.New(rand.NewSource(seed)),
			func(_ context.Context, b *types.Block) (types.ForkStatus, error) {
				probed = b
				return types.DifferentChain, nil
			})
		require.NoError(t, err)
		assert.Contains(t, []int{1, 2}, peer.Port)
		assert.Equal(t, "x", probed.ID)
		assert.EqualValues(t, 10, probed.Height)
	}
}

func TestSelectBestPeerPrefersPrevotedOverHeight(t *testing.T) {
	peers := []types.PeerInfo{
		makePeer(1, "tall", 20, 5),
		makePeer(2, "heavy", 12, 11),
	}
	peer, err := SelectBestPeer(context.Background(), peers, rand.New(rand.NewSource(1)), alwaysDifferentChain)
	require.NoError(t, err)
	assert.Equal(t, 2, peer.Port)
}

func TestSelectBestPeerGroupTieBreak(t *testing.T) {
	peers := []types.PeerInfo{
		makePeer(1, "b", 10, 8),
		makePeer(2, "b", 10, 8),
		makePeer(3, "a", 10, 8),
		makePeer(4, "a", 10, 8),
	}
	for seed := int64(0); seed < 20; seed++ {
		peer, err := SelectBestPeer(context.Background(), peers, rand.New(rand.NewSource(seed)), alwaysDifferentChain)
		require.NoError(t, err)
		assert.Equal(t, "a", peer.LastBlockID)
	}
}

func TestSelectBestPeerLargestGroupWins(t *testing.T) {
	peers := []types.PeerInfo{
		makePeer(1, "a", 10, 8),
		makePeer(2, "b", 10, 8),
		makePeer(3, "b", 10, 8),
	}
	peer, err := SelectBestPeer(context.Background(), peers, rand.New(rand.NewSource(3)), alwaysDifferentChain)
	require.NoError(t, err)
	assert.Equal(t, "b", peer.LastBlockID)
}

func TestSelectBestPeerErrors(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))

	legacy := types.PeerInfo{IP: "127.0.0.1", Port: 1, LastBlockID: "x"}
	_, err := SelectBestPeer(ctx, []types.PeerInfo{legacy}, rng, alwaysDifferentChain)
	assert.ErrorIs(t, err, ErrNoCompatiblePeers)

	_, err = SelectBestPeer(ctx, nil, rng, alwaysDifferentChain)
	assert.ErrorIs(t, err, ErrNoCompatiblePeers)

	peers := []types.PeerInfo{makePeer(1, "x", 10, 8)}
	_, err = SelectBestPeer(ctx, peers, rng, func(context.Context, *types.Block) (types.ForkStatus, error) {
		return types.Discard, nil
	})
	assert.ErrorIs(t, err, ErrForkChoiceViolation)

	boom := errors.New("boom")
	_, err = SelectBestPeer(ctx, peers, rng, func(context.Context, *types.Block) (types.ForkStatus, error) {
		return types.ForkStatusUnknown, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestSelectBestPeerIsDeterministicPerSeed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(t, "n").(int)
		peers := make([]types.PeerInfo, 0, n)
		for i := 0; i < n; i++ {
			tip := rapid.SampledFrom([]string{"a", "b", "c"}).Draw(t, "tip").(string)
			height := rapid.Int64Range(5, 7).Draw(t, "height").(int64)
			prevoted := rapid.Int64Range(1, 2).Draw(t, "prevoted").(int64)
			peers = append(peers, makePeer(i+1, tip, height, prevoted))
		}
		seed := rapid.Int64().Draw(t, "seed").(int64)
		otherSeed := rapid.Int64().Draw(t, "otherSeed").(int64)

		first, err := SelectBestPeer(context.Background(), peers, rand.New(rand.NewSource(seed)), alwaysDifferentChain)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		again, err := SelectBestPeer(context.Background(), peers, rand.New(rand.NewSource(seed)), alwaysDifferentChain)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if first.ID() != again.ID() {
			t.Fatalf("same seed selected %s then %s", first.ID(), again.ID())
		}

		other, err := SelectBestPeer(context.Background(), peers, rand.New(rand.NewSource(otherSeed)), alwaysDifferentChain)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if other.LastBlockID != first.LastBlockID ||
			*other.Height != *first.Height ||
			*other.PrevotedConfirmedUptoHeight != *first.PrevotedConfirmedUptoHeight {
			t.Fatalf("seed changed the selected group: %+v vs %+v", first, other)
		}
	})
}
