package processor

import (
	"context"

	"github.com/chaincore/chaincore/types"
)

// Event channel topics the processor publishes on.
const (
	// TopicBroadcast carries a BroadcastEvent for every block accepted from the
	// network or forged locally.
	TopicBroadcast = "processor:broadcast"
	// TopicSync carries a SyncEvent when a block belonging to a different chain
	// is received.
	TopicSync = "processor:sync"
)

// BroadcastEvent is published on TopicBroadcast.
type BroadcastEvent struct {
	Block types.SerializedBlock
}

// SyncEvent is published on TopicSync.
type SyncEvent struct {
	Block  types.SerializedBlock
	PeerID string
}

// Publisher is the event channel the processor reports to.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// StateStore is a scope of uncommitted state mutations. Everything written to
// it becomes visible to other readers only when the scope is handed to
// ChainState.Save or ChainState.Remove.
type StateStore interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
}

// SaveOptions control ChainState.Save.
type SaveOptions struct {
	// SaveOnlyState persists the state mutations without the block itself.
	SaveOnlyState bool
	// RemoveFromTempTable drops the block from the temp table once saved.
	RemoveFromTempTable bool
}

// RemoveOptions control ChainState.Remove.
type RemoveOptions struct {
	// SaveTempBlock keeps a backup of the removed block in the temp table.
	SaveTempBlock bool
}

// ChainState is the persistent chain: its tip, blocks and state.
//
// LastBlock returns a point-in-time snapshot; callers must fetch it again after
// any suspension point rather than cache it.
type ChainState interface {
	Init(ctx context.Context) error
	LastBlock() *types.Block
	NewStateStore() StateStore
	Exists(ctx context.Context, block *types.Block) (bool, error)
	Save(ctx context.Context, block *types.Block, stateStore StateStore, opts SaveOptions) error
	Remove(ctx context.Context, block *types.Block, stateStore StateStore, opts RemoveOptions) error
}

// ApplyArgs are the arguments shared by RuleSet.Verify and RuleSet.Apply.
type ApplyArgs struct {
	Block             *types.Block
	LastBlock         *types.Block
	StateStore        StateStore
	SkipExistingCheck bool
}

// RuleSet implements the validation, state transition and encoding rules of
// one protocol version. Any error returned is fatal for the call it was
// returned from.
type RuleSet interface {
	// Version is the protocol version the rule set is registered under.
	Version() int

	ForkStatus(ctx context.Context, block, lastBlock *types.Block) (types.ForkStatus, error)
	Validate(ctx context.Context, block, lastBlock *types.Block) error
	ValidateDetached(ctx context.Context, block *types.Block) error
	Verify(ctx context.Context, args ApplyArgs) error
	Apply(ctx context.Context, args ApplyArgs) error
	ApplyGenesis(ctx context.Context, block *types.Block, stateStore StateStore) error
	Undo(ctx context.Context, block *types.Block, stateStore StateStore) error
	Serialize(ctx context.Context, block *types.Block) (types.SerializedBlock, error)
	Deserialize(ctx context.Context, block types.SerializedBlock) (*types.Block, error)
	Create(ctx context.Context, params types.BlockParams) (*types.Block, error)
	Init(ctx context.Context, stateStore StateStore) error
}

// Matcher decides whether a rule set handles block.
type Matcher func(block *types.Block) bool

// MatchAll is the default Matcher.
func MatchAll(*types.Block) bool { return true }
