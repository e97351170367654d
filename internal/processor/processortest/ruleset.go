// Package processortest provides an in-memory rule set for exercising the
// processor and the synchronizer.
package processortest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/chaincore/chaincore/internal/processor"
	"github.com/chaincore/chaincore/types"
)

// State keys written by RuleSet.
var (
	KeyTip   = []byte("tip")
	KeyCount = []byte("count")
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("injected failure")

var _ processor.RuleSet = (*RuleSet)(nil)

// RuleSet is a processor.RuleSet with a chain-weight fork choice:
//
//   - the tip itself is IdenticalBlock
//   - a child of the tip is ValidBlock
//   - a sibling of the tip by the same generator is DoubleForging
//   - an earlier sibling of the tip is TieBreak
//   - a block with more prevotes, or equal prevotes and greater height, is
//     DifferentChain
//   - anything else is Discard
//
// Applying a block records its id under KeyTip and bumps KeyCount, so the
// state after an undo equals the state before the apply.
type RuleSet struct {
	version int

	mtx          sync.Mutex
	forkStatuses map[string]types.ForkStatus
	failApply    map[string]bool
	failVerify   map[string]bool
	failValidate map[string]bool
	failDetached map[string]bool
	initialized  int
}

// New returns a RuleSet for version.
func New(version int) *RuleSet {
	return &RuleSet{
		version:      version,
		forkStatuses: make(map[string]types.ForkStatus),
		failApply:    make(map[string]bool),
		failVerify:   make(map[string]bool),
		failValidate: make(map[string]bool),
		failDetached: make(map[string]bool),
	}
}

// SetForkStatus forces the fork status reported for block id.
func (rs *RuleSet) SetForkStatus(id string, status types.ForkStatus) {
	rs.mtx.Lock()
	defer rs.mtx.Unlock()
	rs.forkStatuses[id] = status
}

// FailApply makes Apply fail for block id.
func (rs *RuleSet) FailApply(id string) { rs.set(rs.failApply, id) }

// FailVerify makes Verify fail for block id.
func (rs *RuleSet) FailVerify(id string) { rs.set(rs.failVerify, id) }

// FailValidate makes Validate fail for block id.
func (rs *RuleSet) FailValidate(id string) { rs.set(rs.failValidate, id) }

// FailValidateDetached makes ValidateDetached fail for block id.
func (rs *RuleSet) FailValidateDetached(id string) { rs.set(rs.failDetached, id) }

// Initialized returns how many times Init was called.
func (rs *RuleSet) Initialized() int {
	rs.mtx.Lock()
	defer rs.mtx.Unlock()
	return rs.initialized
}

func (rs *RuleSet) set(m map[string]bool, id string) {
	rs.mtx.Lock()
	defer rs.mtx.Unlock()
	m[id] = true
}

func (rs *RuleSet) fails(m map[string]bool, id string) error {
	rs.mtx.Lock()
	defer rs.mtx.Unlock()
	if m[id] {
		return fmt.Errorf("block %s: %w", id, ErrInjected)
	}
	return nil
}

func (rs *RuleSet) Version() int { return rs.version }

func (rs *RuleSet) ForkStatus(ctx context.Context, block, lastBlock *types.Block) (types.ForkStatus, error) {
	rs.mtx.Lock()
	forced, ok := rs.forkStatuses[block.ID]
	rs.mtx.Unlock()
	if ok {
		return forced, nil
	}
	return ForkChoice(block, lastBlock), nil
}

// ForkChoice classifies block against lastBlock.
func ForkChoice(block, lastBlock *types.Block) types.ForkStatus {
	switch {
	case block.ID == lastBlock.ID:
		return types.IdenticalBlock

	case block.PreviousBlockID == lastBlock.ID && block.Height == lastBlock.Height+1:
		return types.ValidBlock

	case isDuplicate(block, lastBlock) && block.GeneratorPublicKey == lastBlock.GeneratorPublicKey:
		return types.DoubleForging

	case isDuplicate(block, lastBlock) && block.Timestamp < lastBlock.Timestamp:
		return types.TieBreak

	case lastBlock.PrevotedConfirmedUptoHeight < block.PrevotedConfirmedUptoHeight,
		lastBlock.PrevotedConfirmedUptoHeight == block.PrevotedConfirmedUptoHeight && lastBlock.Height < block.Height:
		return types.DifferentChain
	}
	return types.Discard
}

func isDuplicate(block, lastBlock *types.Block) bool {
	return block.Height == lastBlock.Height &&
		block.PrevotedConfirmedUptoHeight == lastBlock.PrevotedConfirmedUptoHeight &&
		block.PreviousBlockID == lastBlock.PreviousBlockID
}

func (rs *RuleSet) Validate(ctx context.Context, block, lastBlock *types.Block) error {
	if err := block.ValidateBasic(); err != nil {
		return err
	}
	return rs.fails(rs.failValidate, block.ID)
}

func (rs *RuleSet) ValidateDetached(ctx context.Context, block *types.Block) error {
	if err := block.ValidateBasic(); err != nil {
		return err
	}
	return rs.fails(rs.failDetached, block.ID)
}

func (rs *RuleSet) Verify(ctx context.Context, args processor.ApplyArgs) error {
	if err := rs.fails(rs.failVerify, args.Block.ID); err != nil {
		return err
	}
	if args.SkipExistingCheck || args.LastBlock == nil {
		return nil
	}
	if args.Block.PreviousBlockID != args.LastBlock.ID {
		return fmt.Errorf("block %s does not extend %s", args.Block.ID, args.LastBlock.ID)
	}
	return nil
}

func (rs *RuleSet) Apply(ctx context.Context, args processor.ApplyArgs) error {
	if err := rs.fails(rs.failApply, args.Block.ID); err != nil {
		return err
	}
	return bump(args.StateStore, args.Block.ID, 1)
}

func (rs *RuleSet) ApplyGenesis(ctx context.Context, block *types.Block, stateStore processor.StateStore) error {
	if err := stateStore.Set(KeyCount, []byte("0")); err != nil {
		return err
	}
	return bump(stateStore, block.ID, 1)
}

func (rs *RuleSet) Undo(ctx context.Context, block *types.Block, stateStore processor.StateStore) error {
	return bump(stateStore, block.PreviousBlockID, -1)
}

func (rs *RuleSet) Serialize(ctx context.Context, block *types.Block) (types.SerializedBlock, error) {
	bz, err := json.Marshal(block)
	if err != nil {
		return types.SerializedBlock{}, err
	}
	return types.SerializedBlock{ID: block.ID, Height: block.Height, Version: block.Version, Data: bz}, nil
}

func (rs *RuleSet) Deserialize(ctx context.Context, block types.SerializedBlock) (*types.Block, error) {
	b := new(types.Block)
	if err := json.Unmarshal(block.Data, b); err != nil {
		return nil, err
	}
	if b.ID != block.ID || b.Height != block.Height || b.Version != block.Version {
		return nil, fmt.Errorf("header of %s does not match payload", block.ID)
	}
	return b, nil
}

func (rs *RuleSet) Create(ctx context.Context, params types.BlockParams) (*types.Block, error) {
	block := &types.Block{
		Height:                      params.PreviousBlock.Height + 1,
		Version:                     rs.version,
		PreviousBlockID:             params.PreviousBlock.ID,
		GeneratorPublicKey:          params.GeneratorPublicKey,
		Timestamp:                   params.Timestamp,
		Transactions:                params.Transactions,
		PrevotedConfirmedUptoHeight: params.PrevotedConfirmedUptoHeight,
		MaxHeightPreviouslyForged:   params.MaxHeightPreviouslyForged,
	}
	bz, err := json.Marshal(block)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(bz)
	block.ID = hex.EncodeToString(sum[:8])
	return block, nil
}

func (rs *RuleSet) Init(ctx context.Context, stateStore processor.StateStore) error {
	rs.mtx.Lock()
	defer rs.mtx.Unlock()
	rs.initialized++
	return nil
}

func bump(stateStore processor.StateStore, tip string, delta int) error {
	bz, err := stateStore.Get(KeyCount)
	if err != nil {
		return err
	}
	count := 0
	if len(bz) > 0 {
		if count, err = strconv.Atoi(string(bz)); err != nil {
			return err
		}
	}
	if err := stateStore.Set(KeyCount, []byte(strconv.Itoa(count+delta))); err != nil {
		return err
	}
	return stateStore.Set(KeyTip, []byte(tip))
}
