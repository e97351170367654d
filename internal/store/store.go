package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/google/orderedcode"
	dbm "github.com/tendermint/tm-db"

	"github.com/chaincore/chaincore/internal/processor"
	"github.com/chaincore/chaincore/types"
)

var (
	// ErrBlockNotFound is returned when a requested block is not stored.
	ErrBlockNotFound = errors.New("block not found")
	// ErrNotTip is returned when removing a block other than the tip.
	ErrNotTip = errors.New("only the last block can be removed")
	// ErrGenesisRemoval is returned when removing the genesis block.
	ErrGenesisRemoval = errors.New("cannot delete genesis block")
)

var _ processor.ChainState = (*ChainStore)(nil)

/*
ChainStore is the persistent chain on top of a tm-db database.

Four kinds of records are stored:
  - Block:      the encoded block, keyed by height
  - Block id:   the height of a block, keyed by id
  - Temp block: blocks removed with a backup, keyed by height
  - State:      the key/value state produced by applying blocks

The store contains every block between genesis and the tip. Saving or
removing a block and its state mutations happens in one batch.
*/
type ChainStore struct {
	db dbm.DB

	mtx sync.RWMutex
	tip *types.Block
}

// NewChainStore returns a ChainStore over db. Init must be called before the
// tip is read.
func NewChainStore(db dbm.DB) *ChainStore {
	return &ChainStore{db: db}
}

// Init loads the tip from the database.
func (cs *ChainStore) Init(ctx context.Context) error {
	tip, err := cs.loadTip()
	if err != nil {
		return err
	}

	cs.mtx.Lock()
	cs.tip = tip
	cs.mtx.Unlock()
	return nil
}

// LastBlock returns a copy of the tip, or nil on an empty store.
func (cs *ChainStore) LastBlock() *types.Block {
	cs.mtx.RLock()
	defer cs.mtx.RUnlock()
	return cs.tip.Copy()
}

// Height returns the height of the tip, or 0 on an empty store.
func (cs *ChainStore) Height() int64 {
	cs.mtx.RLock()
	defer cs.mtx.RUnlock()
	if cs.tip == nil {
		return 0
	}
	return cs.tip.Height
}

// NewStateStore opens a new scope of uncommitted state mutations.
func (cs *ChainStore) NewStateStore() processor.StateStore {
	return newStateStore(cs.db)
}

// Exists reports whether block is persisted.
func (cs *ChainStore) Exists(ctx context.Context, block *types.Block) (bool, error) {
	return cs.db.Has(blockIDKey(block.ID))
}

// Save commits stateStore and, unless opts.SaveOnlyState is set, block itself.
// block becomes the tip.
func (cs *ChainStore) Save(
	ctx context.Context,
	block *types.Block,
	stateStore processor.StateStore,
	opts processor.SaveOptions,
) error {
	ss, err := asStateStore(stateStore)
	if err != nil {
		return err
	}

	batch := cs.db.NewBatch()
	defer batch.Close()

	if !opts.SaveOnlyState {
		tip := cs.LastBlock()
		if tip != nil && block.Height != tip.Height+1 {
			return fmt.Errorf("cannot save block %s at height %d on top of height %d", block.ID, block.Height, tip.Height)
		}

		bz, err := json.Marshal(block)
		if err != nil {
			return fmt.Errorf("encoding block %s: %w", block.ID, err)
		}
		if err := batch.Set(blockKey(block.Height), bz); err != nil {
			return err
		}
		if err := batch.Set(blockIDKey(block.ID), []byte(strconv.FormatInt(block.Height, 10))); err != nil {
			return err
		}
	}
	if opts.RemoveFromTempTable {
		if err := batch.Delete(tempBlockKey(block.Height)); err != nil {
			return err
		}
	}
	if err := ss.writeTo(batch); err != nil {
		return err
	}
	if err := batch.WriteSync(); err != nil {
		return err
	}

	cs.mtx.Lock()
	cs.tip = block.Copy()
	cs.mtx.Unlock()
	return nil
}

// Remove deletes the tip and commits stateStore. The block below it becomes the
// new tip. With opts.SaveTempBlock the removed block is kept in the temp table.
func (cs *ChainStore) Remove(
	ctx context.Context,
	block *types.Block,
	stateStore processor.StateStore,
	opts processor.RemoveOptions,
) error {
	ss, err := asStateStore(stateStore)
	if err != nil {
		return err
	}

	tip := cs.LastBlock()
	if tip == nil || tip.ID != block.ID {
		return fmt.Errorf("%w: got %s", ErrNotTip, block.ID)
	}
	if block.Height <= 1 {
		return ErrGenesisRemoval
	}
	newTip, err := cs.BlockAtHeight(ctx, block.Height-1)
	if err != nil {
		return err
	}

	batch := cs.db.NewBatch()
	defer batch.Close()

	if err := batch.Delete(blockKey(block.Height)); err != nil {
		return err
	}
	if err := batch.Delete(blockIDKey(block.ID)); err != nil {
		return err
	}
	if opts.SaveTempBlock {
		bz, err := json.Marshal(block)
		if err != nil {
			return fmt.Errorf("encoding block %s: %w", block.ID, err)
		}
		if err := batch.Set(tempBlockKey(block.Height), bz); err != nil {
			return err
		}
	}
	if err := ss.writeTo(batch); err != nil {
		return err
	}
	if err := batch.WriteSync(); err != nil {
		return err
	}

	cs.mtx.Lock()
	cs.tip = newTip
	cs.mtx.Unlock()
	return nil
}

// BlockAtHeight returns the block at height.
func (cs *ChainStore) BlockAtHeight(ctx context.Context, height int64) (*types.Block, error) {
	bz, err := cs.db.Get(blockKey(height))
	if err != nil {
		return nil, err
	}
	if len(bz) == 0 {
		return nil, fmt.Errorf("%w: height %d", ErrBlockNotFound, height)
	}
	return decodeBlock(bz)
}

// BlockByID returns the block with the given id.
func (cs *ChainStore) BlockByID(ctx context.Context, id string) (*types.Block, error) {
	bz, err := cs.db.Get(blockIDKey(id))
	if err != nil {
		return nil, err
	}
	if len(bz) == 0 {
		return nil, fmt.Errorf("%w: id %s", ErrBlockNotFound, id)
	}
	height, err := strconv.ParseInt(string(bz), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to extract height from %s: %w", bz, err)
	}
	return cs.BlockAtHeight(ctx, height)
}

// BlockIDsAtHeights returns the ids of the stored blocks at heights, in
// ascending height order. Heights with no block are skipped.
func (cs *ChainStore) BlockIDsAtHeights(ctx context.Context, heights []int64) ([]string, error) {
	sorted := append([]int64(nil), heights...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	ids := make([]string, 0, len(sorted))
	for i, height := range sorted {
		if i > 0 && sorted[i-1] == height {
			continue
		}
		block, err := cs.BlockAtHeight(ctx, height)
		if errors.Is(err, ErrBlockNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, block.ID)
	}
	return ids, nil
}

// BlocksByHeightRange returns the stored blocks in [from, to], ascending.
func (cs *ChainStore) BlocksByHeightRange(ctx context.Context, from, to int64) ([]*types.Block, error) {
	if from > to {
		return nil, nil
	}
	return cs.iterateBlocks(blockKey(from), blockKey(to+1))
}

// TempBlocks returns the blocks backed up in the temp table, ascending.
func (cs *ChainStore) TempBlocks(ctx context.Context) ([]*types.Block, error) {
	return cs.iterateBlocks(tempBlockKey(1), tempBlockKey(1<<63-1))
}

// State returns the committed value of a state key, or nil.
func (cs *ChainStore) State(key []byte) ([]byte, error) {
	return cs.db.Get(stateKey(key))
}

func (cs *ChainStore) iterateBlocks(start, end []byte) ([]*types.Block, error) {
	iter, err := cs.db.Iterator(start, end)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var blocks []*types.Block
	for ; iter.Valid(); iter.Next() {
		block, err := decodeBlock(iter.Value())
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, iter.Error()
}

func (cs *ChainStore) loadTip() (*types.Block, error) {
	iter, err := cs.db.ReverseIterator(blockKey(1), blockKey(1<<63-1))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	if iter.Valid() {
		return decodeBlock(iter.Value())
	}
	return nil, iter.Error()
}

func decodeBlock(bz []byte) (*types.Block, error) {
	block := new(types.Block)
	if err := json.Unmarshal(bz, block); err != nil {
		return nil, fmt.Errorf("decoding block: %w", err)
	}
	return block, nil
}

func asStateStore(stateStore processor.StateStore) (*StateStore, error) {
	ss, ok := stateStore.(*StateStore)
	if !ok {
		return nil, fmt.Errorf("state store %T was not opened by this chain store", stateStore)
	}
	return ss, nil
}

//---------------------------------- KEY ENCODING -----------------------------------------

// key prefixes
const (
	prefixBlock     = int64(0)
	prefixBlockID   = int64(1)
	prefixTempBlock = int64(2)
	prefixState     = int64(3)
)

func blockKey(height int64) []byte {
	key, err := orderedcode.Append(nil, prefixBlock, height)
	if err != nil {
		panic(err)
	}
	return key
}

func blockIDKey(id string) []byte {
	key, err := orderedcode.Append(nil, prefixBlockID, id)
	if err != nil {
		panic(err)
	}
	return key
}

func tempBlockKey(height int64) []byte {
	key, err := orderedcode.Append(nil, prefixTempBlock, height)
	if err != nil {
		panic(err)
	}
	return key
}

func stateKey(key []byte) []byte {
	k, err := orderedcode.Append(nil, prefixState, string(key))
	if err != nil {
		panic(err)
	}
	return k
}
