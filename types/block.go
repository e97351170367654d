package types

import (
	"errors"
	"fmt"
)

// Tx is an opaque, already-encoded transaction carried by a block.
type Tx []byte

// Block defines the atomic unit of the chain.
//
// A Block is created by a rule set (Create or Deserialize) and is never mutated
// once it has been accepted.
type Block struct {
	ID                 string `json:"id"`
	Height             int64  `json:"height"`
	Version            int    `json:"version"`
	PreviousBlockID    string `json:"previous_block_id"`
	GeneratorPublicKey string `json:"generator_public_key"`
	// Timestamp is expressed in seconds since the Unix epoch.
	Timestamp    int64 `json:"timestamp"`
	Transactions []Tx  `json:"transactions"`

	// Chain-weight fields, consulted when comparing chains.
	PrevotedConfirmedUptoHeight int64 `json:"prevoted_confirmed_upto_height"`
	MaxHeightPreviouslyForged   int64 `json:"max_height_previously_forged"`
}

// ValidateBasic performs basic validation that doesn't involve chain state.
func (b *Block) ValidateBasic() error {
	if b == nil {
		return errors.New("nil block")
	}
	if b.ID == "" {
		return errors.New("empty block id")
	}
	if b.Height < 1 {
		return fmt.Errorf("block height must be positive, got %d", b.Height)
	}
	if b.Version < 0 {
		return fmt.Errorf("negative block version %d", b.Version)
	}
	if b.PrevotedConfirmedUptoHeight < 0 || b.PrevotedConfirmedUptoHeight >= b.Height {
		return fmt.Errorf("prevoted confirmed height %d must be in [0, %d)",
			b.PrevotedConfirmedUptoHeight, b.Height)
	}
	return nil
}

// Copy returns a deep copy of the block, so callers can retain a snapshot of a
// tip across suspension points.
func (b *Block) Copy() *Block {
	if b == nil {
		return nil
	}
	cp := *b
	if b.Transactions != nil {
		cp.Transactions = make([]Tx, len(b.Transactions))
		for i, tx := range b.Transactions {
			cp.Transactions[i] = append(Tx(nil), tx...)
		}
	}
	return &cp
}

// String returns a short human readable representation of the block.
func (b *Block) String() string {
	if b == nil {
		return "nil-Block"
	}
	return fmt.Sprintf("Block{%s #%d v%d}", b.ID, b.Height, b.Version)
}

// SerializedBlock is a block encoded by its rule set. The header fields are kept
// in the clear so a rule set can be resolved before the payload is decoded.
type SerializedBlock struct {
	ID      string `json:"id"`
	Height  int64  `json:"height"`
	Version int    `json:"version"`
	Data    []byte `json:"data"`
}

// Header returns a payload-less block carrying only the resolvable fields.
func (sb SerializedBlock) Header() *Block {
	return &Block{ID: sb.ID, Height: sb.Height, Version: sb.Version}
}

// BlockParams are the inputs used by a rule set to forge a new block on top of
// PreviousBlock.
type BlockParams struct {
	PreviousBlock               *Block
	Timestamp                   int64
	GeneratorPublicKey          string
	Transactions                []Tx
	PrevotedConfirmedUptoHeight int64
	MaxHeightPreviouslyForged   int64
}
