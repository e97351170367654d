package blocksync

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chaincore/chaincore/config"
	"github.com/chaincore/chaincore/internal/slots"
	"github.com/chaincore/chaincore/libs/log"
	"github.com/chaincore/chaincore/types"
)

// Session describes the active synchronization run.
type Session struct {
	ID        string
	BlockID   string
	Height    int64
	PeerID    string
	StartedAt time.Time
}

// DetachedStatus is the outcome of validating a block on its own.
type DetachedStatus struct {
	Valid bool
	Err   error
}

// Synchronizer brings the local chain onto a heavier chain announced by the
// network. See the package documentation for the protocol.
type Synchronizer struct {
	logger  log.Logger
	cfg     *config.SyncConfig
	metrics *Metrics

	chain     ChainReader
	finality  FinalityTracker
	processor BlockProcessor
	network   Network
	slots     *slots.Slots

	rngMtx sync.Mutex
	rng    *rand.Rand

	// active holds a token while a run is in progress.
	active chan struct{}

	mtx     sync.RWMutex
	session *Session
}

// SynchronizerOption sets an optional parameter on the Synchronizer.
type SynchronizerOption func(*Synchronizer)

// WithSyncMetrics sets the metrics.
func WithSyncMetrics(metrics *Metrics) SynchronizerOption {
	return func(s *Synchronizer) { s.metrics = metrics }
}

// WithRand sets the source of randomness used to select peers.
func WithRand(rng *rand.Rand) SynchronizerOption {
	return func(s *Synchronizer) { s.rng = rng }
}

// NewSynchronizer returns a Synchronizer configured by cfg.
func NewSynchronizer(
	cfg *config.SyncConfig,
	logger log.Logger,
	chain ChainReader,
	finality FinalityTracker,
	processor BlockProcessor,
	network Network,
	options ...SynchronizerOption,
) (*Synchronizer, error) {
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid sync config: %w", err)
	}
	epoch, err := cfg.EpochTime()
	if err != nil {
		return nil, err
	}
	sl, err := slots.New(epoch, cfg.BlockTime, cfg.ActiveDelegates)
	if err != nil {
		return nil, err
	}

	s := &Synchronizer{
		logger:    logger,
		cfg:       cfg,
		metrics:   NopMetrics(),
		chain:     chain,
		finality:  finality,
		processor: processor,
		network:   network,
		slots:     sl,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())), // nolint:gosec
		active:    make(chan struct{}, 1),
	}
	for _, option := range options {
		option(s)
	}
	return s, nil
}

// WithClock replaces the clock used to compute the current slot.
func (s *Synchronizer) WithClock(now func() time.Time) {
	s.slots = s.slots.WithClock(now)
}

// IsActive reports whether a run is in progress.
func (s *Synchronizer) IsActive() bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.session != nil
}

// Session returns a copy of the active session, if any.
func (s *Synchronizer) Session() (Session, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

// IsValidFor reports whether the node is far enough behind for this mechanism
// to handle received: the current slot must be more than SyncTriggerRounds
// rounds past the slot of the last finalized block.
func (s *Synchronizer) IsValidFor(ctx context.Context, received *types.Block) (bool, error) {
	finalizedHeight := s.finality.FinalizedHeight()
	finalized, err := s.chain.BlockAtHeight(ctx, finalizedHeight)
	if err != nil {
		return false, fmt.Errorf("loading finalized block at height %d: %w", finalizedHeight, err)
	}

	gap := s.slots.CurrentSlot() - s.slots.SlotNumber(finalized.Timestamp)
	threshold := s.slots.ActiveDelegates() * int64(s.cfg.SyncTriggerRounds)

	s.logger.Debug("checking block synchronization applies",
		"id", received.ID,
		"finalized_height", finalizedHeight,
		"slot_gap", gap,
		"threshold", threshold,
	)
	return gap > threshold, nil
}

// Run synchronizes the local chain towards received. It returns
// ErrSyncInProgress if another run is active.
//
// PenalizeAndRestart and Restart outcomes are handled here: the peer is
// penalized where due and received is processed again. The returned error is
// non-nil only for fatal outcomes or when that handling fails.
func (s *Synchronizer) Run(ctx context.Context, received *types.Block) (Outcome, error) {
	select {
	case s.active <- struct{}{}:
	default:
		return OutcomeFatal, ErrSyncInProgress
	}

	session := &Session{
		ID:        uuid.NewString(),
		BlockID:   received.ID,
		Height:    received.Height,
		StartedAt: time.Now(),
	}
	s.mtx.Lock()
	s.session = session
	s.mtx.Unlock()

	s.metrics.Syncing.Set(1)
	defer func() {
		s.metrics.Syncing.Set(0)
		s.metrics.SyncDuration.Observe(time.Since(session.StartedAt).Seconds())

		s.mtx.Lock()
		s.session = nil
		s.mtx.Unlock()
		<-s.active
	}()

	logger := s.logger.With("session", session.ID, "id", received.ID, "height", received.Height)
	logger.Info("starting block synchronization")

	runErr := s.run(ctx, logger, received)
	outcome := classify(runErr)
	s.metrics.Runs.With("outcome", outcome.String()).Add(1)

	switch outcome {
	case OutcomeCompleted:
		logger.Info("block synchronization completed")
		return outcome, nil

	case OutcomePenalizeAndRestart:
		var penalize PenalizeAndRestartError
		errors.As(runErr, &penalize)
		logger.Info("applying penalty to peer and restarting synchronization",
			"peer", penalize.PeerID,
			"reason", penalize.Reason,
		)
		if err := s.network.ApplyPenalty(ctx, penalize.PeerID, s.cfg.PenaltyScore); err != nil {
			return outcome, fmt.Errorf("applying penalty to peer %s: %w", penalize.PeerID, err)
		}
		s.metrics.Penalties.Add(1)
		return outcome, s.restart(ctx, logger, received)

	case OutcomeRestart:
		var restart RestartError
		errors.As(runErr, &restart)
		logger.Info("restarting synchronization", "reason", restart.Reason)
		return outcome, s.restart(ctx, logger, received)
	}

	logger.Error("block synchronization failed", "err", runErr)
	return outcome, runErr
}

// restart submits received for ordinary processing, which triggers a new run
// if it still belongs to a different chain.
func (s *Synchronizer) restart(ctx context.Context, logger log.Logger, received *types.Block) error {
	if err := s.processor.Process(ctx, received, ""); err != nil {
		logger.Error("failed to process received block after synchronization", "err", err)
		return fmt.Errorf("processing block %s: %w", received.ID, err)
	}
	return nil
}

func (s *Synchronizer) run(ctx context.Context, logger log.Logger, received *types.Block) error {
	tipBefore := s.chain.LastBlock()

	peerID, err := s.selectBestPeer(ctx)
	if err != nil {
		return err
	}
	s.mtx.Lock()
	s.session.PeerID = peerID
	s.mtx.Unlock()
	logger = logger.With("peer", peerID)
	logger.Debug("selected peer to synchronize from")

	if err := s.requestAndValidateLastBlock(ctx, peerID); err != nil {
		return err
	}

	common, err := s.requestLastCommonBlock(ctx, peerID)
	if err != nil {
		return err
	}
	if common == nil {
		return PenalizeAndRestartError{
			PeerID: peerID,
			Reason: "no common block has been found between the chain and the targeted peer",
		}
	}
	if common.Height < s.finality.FinalizedHeight() {
		return PenalizeAndRestartError{
			PeerID: peerID,
			Reason: "the last common block height is less than the finalized height of the current chain",
		}
	}
	logger.Debug("found common block", "common_id", common.ID, "common_height", common.Height)

	logger.Info("reverting chain to common block", "common_height", common.Height, "tip_height", tipBefore.Height)
	if err := DeleteBlocksAfterHeight(ctx, s.processor, s.chain.LastBlock(), common.Height, true); err != nil {
		return fmt.Errorf("reverting to common block %s: %w", common.ID, err)
	}

	blocks, err := s.requestBlocksWithinIDs(ctx, peerID, common.ID, received.ID)
	if err != nil {
		return err
	}
	logger.Debug("fetched blocks from peer", "count", len(blocks))

	s.applyBlocks(ctx, logger, peerID, blocks)

	newTip := s.chain.LastBlock()
	if newTip.ID == received.ID {
		return nil
	}

	status, err := s.processor.ForkStatus(ctx, newTip, tipBefore)
	if err != nil {
		return err
	}
	if status == types.DifferentChain || newTip.ID == tipBefore.ID {
		return RestartError{
			Reason: fmt.Sprintf("tip %s at height %d is not the received block but is not worse than before", newTip.ID, newTip.Height),
		}
	}
	return PenalizeAndRestartError{
		PeerID: peerID,
		Reason: fmt.Sprintf("new tip %s has no priority over the previous tip %s", newTip.ID, tipBefore.ID),
	}
}

// applyBlocks processes blocks from peerID in order, through the same fork
// choice and validation as any received block. The first block that fails
// ends the loop, since no later block can extend the chain; the resulting tip
// is judged by the caller.
func (s *Synchronizer) applyBlocks(ctx context.Context, logger log.Logger, peerID string, blocks []types.SerializedBlock) {
	for _, serialized := range blocks {
		block, err := s.processor.Deserialize(ctx, serialized)
		if err != nil {
			logger.Error("failed to decode block from peer", "block_id", serialized.ID, "err", err)
			return
		}
		if err := s.processor.Process(ctx, block, peerID); err != nil {
			logger.Error("failed to apply block from peer",
				"block_id", block.ID,
				"block_height", block.Height,
				"err", err,
			)
			return
		}
		s.metrics.BlocksApplied.Add(1)
	}
}

func (s *Synchronizer) selectBestPeer(ctx context.Context) (string, error) {
	peers, err := s.network.GetPeers(ctx)
	if err != nil {
		return "", fmt.Errorf("listing peers: %w", err)
	}

	s.rngMtx.Lock()
	defer s.rngMtx.Unlock()

	peer, err := SelectBestPeer(ctx, peers, s.rng, func(ctx context.Context, block *types.Block) (types.ForkStatus, error) {
		return s.processor.ForkStatus(ctx, block, nil)
	})
	if err != nil {
		return "", err
	}
	return peer.ID(), nil
}

// requestAndValidateLastBlock checks the tip announced by peerID is valid and
// either heavier than ours or ours.
func (s *Synchronizer) requestAndValidateLastBlock(ctx context.Context, peerID string) error {
	serialized, err := s.network.GetLastBlock(ctx, peerID)
	if err != nil {
		return PenalizeAndRestartError{PeerID: peerID, Reason: fmt.Sprintf("peer did not provide its last block: %v", err)}
	}
	block, err := s.processor.Deserialize(ctx, serialized)
	if err != nil {
		return PenalizeAndRestartError{PeerID: peerID, Reason: fmt.Sprintf("invalid last block: %v", err)}
	}

	detached := s.detachedStatus(ctx, block)
	status, err := s.processor.ForkStatus(ctx, block, nil)
	if err != nil {
		return err
	}
	differentChain := status == types.DifferentChain || block.ID == s.chain.LastBlock().ID

	if !detached.Valid || !differentChain {
		s.logger.Debug("peer tip rejected",
			"peer", peerID,
			"block_id", block.ID,
			"status", status,
			"err", detached.Err,
		)
		return PenalizeAndRestartError{
			PeerID: peerID,
			Reason: "the tip of the chain of the peer is not valid or is not in a different chain",
		}
	}
	return nil
}

func (s *Synchronizer) detachedStatus(ctx context.Context, block *types.Block) DetachedStatus {
	if err := s.processor.ValidateDetached(ctx, block); err != nil {
		return DetachedStatus{Valid: false, Err: err}
	}
	return DetachedStatus{Valid: true}
}
