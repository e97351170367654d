package processortest

import (
	"fmt"

	"github.com/chaincore/chaincore/types"
)

// Genesis returns a genesis block of version.
func Genesis(version int) *types.Block {
	return &types.Block{
		ID:                 "genesis",
		Height:             1,
		Version:            version,
		GeneratorPublicKey: "genesis",
	}
}

// Chain builds n blocks on top of parent. Blocks are tagged with tag so two
// chains built on the same parent do not share ids. Every block prevotes up
// to its parent.
func Chain(parent *types.Block, n int, tag string) []*types.Block {
	blocks := make([]*types.Block, 0, n)
	prev := parent
	for i := 0; i < n; i++ {
		b := &types.Block{
			ID:                          fmt.Sprintf("%s-%d", tag, prev.Height+1),
			Height:                      prev.Height + 1,
			Version:                     prev.Version,
			PreviousBlockID:             prev.ID,
			GeneratorPublicKey:          fmt.Sprintf("%s-generator-%d", tag, i),
			Timestamp:                   (prev.Height + 1) * 10,
			PrevotedConfirmedUptoHeight: prev.Height,
		}
		blocks = append(blocks, b)
		prev = b
	}
	return blocks
}
