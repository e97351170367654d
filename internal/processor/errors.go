package processor

import "errors"

var (
	// ErrInvalidVersion is a configuration error: a rule set must expose a
	// non-negative version.
	ErrInvalidVersion = errors.New("version property must exist for processor")
	// ErrUnregisteredVersion is returned when no rule set is registered for a
	// block's version.
	ErrUnregisteredVersion = errors.New("block processing version is not registered")
	// ErrNoMatchingProcessor is returned when no registered matcher accepts a
	// block.
	ErrNoMatchingProcessor = errors.New("no matching block processor found")
	// ErrUnknownForkStatus is returned when a rule set classifies a block
	// outside the ForkStatus enumeration.
	ErrUnknownForkStatus = errors.New("unknown fork status")
	// ErrGenesisNotPersisted is returned when rebuilding state from a genesis
	// block that was never saved.
	ErrGenesisNotPersisted = errors.New("genesis block is not persisted but skipping to save")
	// ErrNoRuleSets is returned by Create when nothing is registered.
	ErrNoRuleSets = errors.New("no block processor registered")
)
