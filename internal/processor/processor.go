package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/chaincore/chaincore/config"
	"github.com/chaincore/chaincore/internal/libs/sequence"
	"github.com/chaincore/chaincore/libs/log"
	"github.com/chaincore/chaincore/types"
)

// Processor resolves the rule set of every block it is given, runs the fork
// choice rule against the current tip and applies or reverts blocks.
//
// Every operation that mutates the chain runs through a single sequence, so at
// most one block is applied or reverted at a time.
type Processor struct {
	logger    log.Logger
	chain     ChainState
	publisher Publisher
	metrics   *Metrics

	retainReverted bool

	sequence *sequence.Sequence
	registry *registry
}

// ProcessorOption sets an optional parameter on the Processor.
type ProcessorOption func(*Processor)

// WithMetrics sets the metrics.
func WithMetrics(metrics *Metrics) ProcessorOption {
	return func(p *Processor) { p.metrics = metrics }
}

// NewProcessor returns a Processor with no rule set registered.
func NewProcessor(
	cfg *config.ProcessorConfig,
	logger log.Logger,
	chain ChainState,
	publisher Publisher,
	options ...ProcessorOption,
) *Processor {
	p := &Processor{
		logger:         logger,
		chain:          chain,
		publisher:      publisher,
		metrics:        NopMetrics(),
		retainReverted: cfg.RetainRevertedBlocks,
		sequence:       sequence.New(),
		registry:       newRegistry(),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Register adds rules under rules.Version(). A nil matcher accepts every block.
// Registering the same version twice replaces the earlier entry.
func (p *Processor) Register(rules RuleSet, matcher Matcher) error {
	return p.registry.register(rules, matcher)
}

// Init brings the chain up from genesis and initializes every rule set.
func (p *Processor) Init(ctx context.Context, genesis *types.Block) error {
	p.logger.Debug("initializing processor", "id", genesis.ID, "height", genesis.Height)

	rules, err := p.registry.resolve(genesis)
	if err != nil {
		return err
	}
	if err := p.processGenesis(ctx, genesis, rules, false); err != nil {
		return err
	}
	if err := p.chain.Init(ctx); err != nil {
		return fmt.Errorf("initializing chain: %w", err)
	}

	stateStore := p.chain.NewStateStore()
	for _, rules := range p.registry.all() {
		if err := rules.Init(ctx, stateStore); err != nil {
			return fmt.Errorf("initializing rule set v%d: %w", rules.Version(), err)
		}
	}

	p.logger.Info("blockchain ready", "height", p.chain.LastBlock().Height)
	return nil
}

// Serialize encodes block with its rule set.
func (p *Processor) Serialize(ctx context.Context, block *types.Block) (types.SerializedBlock, error) {
	rules, err := p.registry.resolve(block)
	if err != nil {
		return types.SerializedBlock{}, err
	}
	return rules.Serialize(ctx, block)
}

// Deserialize decodes block with the rule set its header resolves to.
func (p *Processor) Deserialize(ctx context.Context, block types.SerializedBlock) (*types.Block, error) {
	rules, err := p.registry.resolve(block.Header())
	if err != nil {
		return nil, err
	}
	return rules.Deserialize(ctx, block)
}

// Process runs the fork choice rule for a block received from peerID (empty
// when the block did not come from the network) and acts on the result.
//
// Discarded, identical and double-forged blocks are dropped without error.
// Blocks of a different chain are handed to the synchronizer through
// TopicSync.
func (p *Processor) Process(ctx context.Context, block *types.Block, peerID string) error {
	return p.sequence.Run(ctx, func(ctx context.Context) error {
		start := time.Now()
		defer func() { p.metrics.ProcessingTime.Observe(time.Since(start).Seconds()) }()

		return p.process(ctx, block, peerID)
	})
}

func (p *Processor) process(ctx context.Context, block *types.Block, peerID string) error {
	logger := p.logger.With("id", block.ID, "height", block.Height)
	logger.Debug("starting to process block")

	rules, err := p.registry.resolve(block)
	if err != nil {
		return err
	}
	lastBlock := p.chain.LastBlock()

	forkStatus, err := rules.ForkStatus(ctx, block, lastBlock)
	if err != nil {
		return err
	}
	if !forkStatus.IsValid() {
		logger.Debug("unknown fork status", "status", forkStatus)
		return fmt.Errorf("%w: %s", ErrUnknownForkStatus, forkStatus)
	}
	p.metrics.BlocksProcessed.With("fork_status", forkStatus.String()).Add(1)

	switch forkStatus {
	case types.Discard:
		logger.Debug("discarding block")
		return nil

	case types.IdenticalBlock:
		logger.Debug("block already processed")
		return nil

	case types.DoubleForging:
		logger.Error("discarding block due to double forging", "generator", block.GeneratorPublicKey)
		return nil

	case types.DifferentChain:
		logger.Debug("detected different chain to sync", "peer", peerID)
		serialized, err := p.Serialize(ctx, block)
		if err != nil {
			return err
		}
		return p.publisher.Publish(ctx, TopicSync, SyncEvent{Block: serialized, PeerID: peerID})

	case types.TieBreak:
		return p.tieBreak(ctx, block, lastBlock, rules)
	}

	logger.Debug("processing valid block")
	if err := rules.Validate(ctx, block, lastBlock); err != nil {
		return err
	}
	return p.processValidated(ctx, block, lastBlock, rules, validatedOptions{})
}

// tieBreak replaces lastBlock with block. If block cannot be applied on the
// reverted chain, lastBlock is applied again so the chain ends where it began.
func (p *Processor) tieBreak(ctx context.Context, block, lastBlock *types.Block, rules RuleSet) error {
	p.logger.Info("received tie breaking block",
		"id", block.ID,
		"previous_id", lastBlock.ID,
		"height", lastBlock.Height,
	)

	if err := rules.Validate(ctx, block, lastBlock); err != nil {
		return err
	}

	previousLastBlock := lastBlock.Copy()
	previousRules, err := p.registry.resolve(previousLastBlock)
	if err != nil {
		return err
	}
	if err := p.deleteBlock(ctx, lastBlock, previousRules, p.retainReverted); err != nil {
		return err
	}

	newLastBlock := p.chain.LastBlock()
	applyErr := p.processValidated(ctx, block, newLastBlock, rules, validatedOptions{})
	if applyErr == nil {
		return nil
	}

	p.logger.Error("failed to apply newly received block; restoring previous block",
		"id", block.ID,
		"previous_id", previousLastBlock.ID,
		"err", applyErr,
	)
	p.metrics.TieBreakCompensations.Add(1)

	if err := p.processValidated(ctx, previousLastBlock, newLastBlock, previousRules, validatedOptions{
		skipBroadcast:       true,
		removeFromTempTable: p.retainReverted,
	}); err != nil {
		return fmt.Errorf("restoring block %s after failed tie break (%v): %w", previousLastBlock.ID, applyErr, err)
	}
	return nil
}

// ForkStatus classifies block against lastBlock, or against the current tip
// when lastBlock is nil. It does not run in the sequence.
func (p *Processor) ForkStatus(ctx context.Context, block, lastBlock *types.Block) (types.ForkStatus, error) {
	rules, err := p.registry.resolve(block)
	if err != nil {
		return types.ForkStatusUnknown, err
	}
	if lastBlock == nil {
		lastBlock = p.chain.LastBlock()
	}
	return rules.ForkStatus(ctx, block, lastBlock)
}

// Create forges a block with the highest registered rule set, whatever the
// height of the chain it is meant for.
func (p *Processor) Create(ctx context.Context, params types.BlockParams) (*types.Block, error) {
	p.logger.Debug("creating block", "timestamp", params.Timestamp, "txs", len(params.Transactions))

	rules, ok := p.registry.highest()
	if !ok {
		return nil, ErrNoRuleSets
	}
	return rules.Create(ctx, params)
}

// Validate checks block statically against lastBlock, or against the current
// tip when lastBlock is nil.
func (p *Processor) Validate(ctx context.Context, block, lastBlock *types.Block) error {
	p.logger.Debug("validating block", "id", block.ID, "height", block.Height)

	rules, err := p.registry.resolve(block)
	if err != nil {
		return err
	}
	if lastBlock == nil {
		lastBlock = p.chain.LastBlock()
	}
	return rules.Validate(ctx, block, lastBlock)
}

// ValidateDetached checks block without reference to any other block.
func (p *Processor) ValidateDetached(ctx context.Context, block *types.Block) error {
	p.logger.Debug("validating detached block", "id", block.ID, "height", block.Height)

	rules, err := p.registry.resolve(block)
	if err != nil {
		return err
	}
	return rules.ValidateDetached(ctx, block)
}

// ProcessValidated applies a block that is already known to be valid, without
// broadcasting it.
func (p *Processor) ProcessValidated(ctx context.Context, block *types.Block, removeFromTempTable bool) error {
	return p.sequence.Run(ctx, func(ctx context.Context) error {
		p.logger.Debug("processing validated block", "id", block.ID, "height", block.Height)

		rules, err := p.registry.resolve(block)
		if err != nil {
			return err
		}
		return p.processValidated(ctx, block, p.chain.LastBlock(), rules, validatedOptions{
			skipBroadcast:       true,
			removeFromTempTable: removeFromTempTable,
		})
	})
}

// Apply applies a block that is already persisted, saving only the resulting
// state. It is used to rebuild state from stored blocks.
func (p *Processor) Apply(ctx context.Context, block *types.Block) error {
	return p.sequence.Run(ctx, func(ctx context.Context) error {
		p.logger.Debug("applying block", "id", block.ID, "height", block.Height)

		rules, err := p.registry.resolve(block)
		if err != nil {
			return err
		}
		return p.processValidated(ctx, block, p.chain.LastBlock(), rules, validatedOptions{
			saveOnlyState: true,
			skipBroadcast: true,
		})
	})
}

// DeleteLastBlock reverts the tip and returns the new one. With saveTempBlock
// the reverted block is kept in the temp table.
func (p *Processor) DeleteLastBlock(ctx context.Context, saveTempBlock bool) (*types.Block, error) {
	var newTip *types.Block
	err := p.sequence.Run(ctx, func(ctx context.Context) error {
		lastBlock := p.chain.LastBlock()
		p.logger.Debug("deleting last block", "id", lastBlock.ID, "height", lastBlock.Height)

		rules, err := p.registry.resolve(lastBlock)
		if err != nil {
			return err
		}
		if err := p.deleteBlock(ctx, lastBlock, rules, saveTempBlock); err != nil {
			return err
		}
		newTip = p.chain.LastBlock()
		return nil
	})
	return newTip, err
}

// ApplyGenesisBlock rebuilds the state of an already persisted genesis block.
func (p *Processor) ApplyGenesisBlock(ctx context.Context, block *types.Block) error {
	p.logger.Info("applying genesis block", "id", block.ID)

	rules, err := p.registry.resolve(block)
	if err != nil {
		return err
	}
	return p.processGenesis(ctx, block, rules, true)
}

type validatedOptions struct {
	saveOnlyState       bool
	skipBroadcast       bool
	removeFromTempTable bool
}

// processValidated verifies, broadcasts, applies and saves block. All steps
// share one state store, so nothing becomes visible unless Save succeeds.
func (p *Processor) processValidated(
	ctx context.Context,
	block, lastBlock *types.Block,
	rules RuleSet,
	opts validatedOptions,
) error {
	stateStore := p.chain.NewStateStore()
	args := ApplyArgs{
		Block:             block,
		LastBlock:         lastBlock,
		StateStore:        stateStore,
		SkipExistingCheck: opts.saveOnlyState,
	}

	if err := rules.Verify(ctx, args); err != nil {
		return err
	}

	serialized, err := rules.Serialize(ctx, block)
	if err != nil {
		return err
	}
	if !opts.skipBroadcast {
		if err := p.publisher.Publish(ctx, TopicBroadcast, BroadcastEvent{Block: serialized}); err != nil {
			return err
		}
	}

	// Apply reads what Verify recorded in the state store, so it must come after.
	if err := rules.Apply(ctx, args); err != nil {
		return err
	}

	if err := p.chain.Save(ctx, block, stateStore, SaveOptions{
		SaveOnlyState:       opts.saveOnlyState,
		RemoveFromTempTable: opts.removeFromTempTable,
	}); err != nil {
		return err
	}

	p.metrics.Height.Set(float64(block.Height))
	return nil
}

func (p *Processor) processGenesis(ctx context.Context, block *types.Block, rules RuleSet, saveOnlyState bool) error {
	stateStore := p.chain.NewStateStore()

	persisted, err := p.chain.Exists(ctx, block)
	if err != nil {
		return err
	}
	if saveOnlyState && !persisted {
		return ErrGenesisNotPersisted
	}
	// Already saved and not rebuilding: nothing to do.
	if persisted && !saveOnlyState {
		return nil
	}

	if err := rules.ApplyGenesis(ctx, block, stateStore); err != nil {
		return err
	}
	return p.chain.Save(ctx, block, stateStore, SaveOptions{SaveOnlyState: saveOnlyState})
}

func (p *Processor) deleteBlock(ctx context.Context, block *types.Block, rules RuleSet, saveTempBlock bool) error {
	stateStore := p.chain.NewStateStore()
	if err := rules.Undo(ctx, block, stateStore); err != nil {
		return err
	}
	if err := p.chain.Remove(ctx, block, stateStore, RemoveOptions{SaveTempBlock: saveTempBlock}); err != nil {
		return err
	}

	p.metrics.Height.Set(float64(block.Height - 1))
	return nil
}
