package blocksync

import (
	"context"

	"github.com/chaincore/chaincore/types"
)

// Network is the peer-to-peer layer the synchronizer talks through.
type Network interface {
	// GetPeers returns the connected peers.
	GetPeers(ctx context.Context) ([]types.PeerInfo, error)
	// GetLastBlock requests the tip of peerID.
	GetLastBlock(ctx context.Context, peerID string) (types.SerializedBlock, error)
	// GetHighestCommonBlock asks peerID for the highest of ids it has. A nil
	// block means none of them is known to the peer.
	GetHighestCommonBlock(ctx context.Context, peerID string, ids []string) (*types.SerializedBlock, error)
	// GetBlocksFromID requests the blocks following id, in ascending order.
	GetBlocksFromID(ctx context.Context, peerID, id string) ([]types.SerializedBlock, error)
	// ApplyPenalty reports misbehavior of peerID.
	ApplyPenalty(ctx context.Context, peerID string, score int) error
}

// BlockProcessor is the subset of processor.Processor the synchronizer drives.
type BlockProcessor interface {
	Process(ctx context.Context, block *types.Block, peerID string) error
	ForkStatus(ctx context.Context, block, lastBlock *types.Block) (types.ForkStatus, error)
	ValidateDetached(ctx context.Context, block *types.Block) error
	Deserialize(ctx context.Context, block types.SerializedBlock) (*types.Block, error)
	DeleteLastBlock(ctx context.Context, saveTempBlock bool) (*types.Block, error)
}

// ChainReader gives read access to the local chain.
type ChainReader interface {
	LastBlock() *types.Block
	BlockAtHeight(ctx context.Context, height int64) (*types.Block, error)
	BlockIDsAtHeights(ctx context.Context, heights []int64) ([]string, error)
}

// FinalityTracker reports the height of the last finalized block.
type FinalityTracker interface {
	FinalizedHeight() int64
}
