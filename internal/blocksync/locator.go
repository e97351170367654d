package blocksync

import (
	"context"

	"github.com/chaincore/chaincore/types"
)

// ComputeBlockHeightsList returns the heights probed for a common block in
// currentRound: up to listSizeLimit heights one round apart, starting at the
// last height of the previous round and going down. Heights at or below
// finalizedHeight are dropped; if any was, finalizedHeight itself closes the
// list.
func ComputeBlockHeightsList(finalizedHeight, activeDelegates, listSizeLimit, currentRound int64) []int64 {
	startingHeight := (currentRound - 1) * activeDelegates
	if startingHeight < 1 {
		startingHeight = 1
	}

	heights := make([]int64, 0, listSizeLimit)
	truncated := false
	for i := int64(0); i < listSizeLimit; i++ {
		height := startingHeight - i*activeDelegates
		if height <= 0 {
			break
		}
		if height <= finalizedHeight {
			truncated = true
			continue
		}
		heights = append(heights, height)
	}
	if truncated {
		heights = append(heights, finalizedHeight)
	}
	return heights
}

// requestLastCommonBlock probes peerID for the highest block both chains
// share, one batch of round heights per request, moving back
// BlocksPerRequestLimit rounds after every miss. It gives up after
// CommonBlockRequestLimit requests or once the probe reaches the finalized
// height, returning nil.
func (s *Synchronizer) requestLastCommonBlock(ctx context.Context, peerID string) (*types.SerializedBlock, error) {
	var (
		activeDelegates = int64(s.cfg.ActiveDelegates)
		finalizedHeight = s.finality.FinalizedHeight()
		batch           = int64(s.cfg.BlocksPerRequestLimit)

		currentRound  = s.slots.CalcRound(s.chain.LastBlock().Height)
		currentHeight = currentRound * activeDelegates
	)

	for requests := 0; requests < s.cfg.CommonBlockRequestLimit && currentHeight > finalizedHeight; requests++ {
		heights := ComputeBlockHeightsList(finalizedHeight, activeDelegates, batch, currentRound)
		ids, err := s.chain.BlockIDsAtHeights(ctx, heights)
		if err != nil {
			return nil, err
		}

		common, err := s.network.GetHighestCommonBlock(ctx, peerID, ids)
		if err != nil {
			s.logger.Debug("failed to request common block", "peer", peerID, "err", err)
			continue
		}
		if common != nil {
			return common, nil
		}

		currentRound -= batch
		currentHeight = currentRound * activeDelegates
	}
	return nil, nil
}

// requestBlocksWithinIDs fetches the blocks after fromID up to and including
// toID from peerID. A failed request or an empty response is a failed attempt.
// Fetching stops after MaxFailedAttempts of them or MaxBlockRequests requests
// in total, and whatever was collected is returned; the peer is penalized only
// when nothing was.
func (s *Synchronizer) requestBlocksWithinIDs(
	ctx context.Context,
	peerID, fromID, toID string,
) ([]types.SerializedBlock, error) {
	var (
		blocks         []types.SerializedBlock
		lastFetchedID  = fromID
		failedAttempts = 0
	)

	for requests := 0; failedAttempts < s.cfg.MaxFailedAttempts && requests < s.cfg.MaxBlockRequests; requests++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fetched, err := s.network.GetBlocksFromID(ctx, peerID, lastFetchedID)
		if err != nil || len(fetched) == 0 {
			failedAttempts++
			s.logger.Debug("failed to fetch blocks",
				"peer", peerID,
				"from", lastFetchedID,
				"attempt", failedAttempts,
				"err", err,
			)
			continue
		}

		for i, block := range fetched {
			if block.ID == toID {
				return append(blocks, fetched[:i+1]...), nil
			}
		}
		blocks = append(blocks, fetched...)
		lastFetchedID = fetched[len(fetched)-1].ID
	}

	if len(blocks) == 0 {
		return nil, PenalizeAndRestartError{
			PeerID: peerID,
			Reason: "peer did not return any block after requesting blocks",
		}
	}
	s.logger.Debug("fetched partial block range",
		"peer", peerID,
		"to", toID,
		"last_fetched", lastFetchedID,
		"count", len(blocks),
	)
	return blocks, nil
}

// BlockDeleter reverts the chain tip.
type BlockDeleter interface {
	DeleteLastBlock(ctx context.Context, saveTempBlock bool) (*types.Block, error)
}

// DeleteBlocksAfterHeight reverts blocks until the tip is at height. With
// backup every reverted block is kept in the temp table.
func DeleteBlocksAfterHeight(ctx context.Context, deleter BlockDeleter, tip *types.Block, height int64, backup bool) error {
	for tip.Height > height {
		newTip, err := deleter.DeleteLastBlock(ctx, backup)
		if err != nil {
			return err
		}
		tip = newTip
	}
	return nil
}
