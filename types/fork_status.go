package types

import "fmt"

// ForkStatus classifies a received block relative to the current chain tip.
type ForkStatus int

const (
	// ForkStatusUnknown is the zero value and never a valid classification.
	ForkStatusUnknown ForkStatus = iota
	// IdenticalBlock is the current tip received again.
	IdenticalBlock
	// ValidBlock directly extends the tip.
	ValidBlock
	// DoubleForging is a second block by the same generator in the same slot.
	DoubleForging
	// TieBreak is a competing block at the tip height that takes priority.
	TieBreak
	// DifferentChain belongs to a heavier chain and requires synchronization.
	DifferentChain
	// Discard is an inferior block.
	Discard
)

var forkStatusNames = map[ForkStatus]string{
	IdenticalBlock: "identical_block",
	ValidBlock:     "valid_block",
	DoubleForging:  "double_forging",
	TieBreak:       "tie_break",
	DifferentChain: "different_chain",
	Discard:        "discard",
}

// IsValid reports whether fs is one of the enumerated fork statuses.
func (fs ForkStatus) IsValid() bool {
	_, ok := forkStatusNames[fs]
	return ok
}

func (fs ForkStatus) String() string {
	if name, ok := forkStatusNames[fs]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(fs))
}
