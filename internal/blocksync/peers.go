package blocksync

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/chaincore/chaincore/types"
)

// ForkStatusFunc classifies block against the local tip.
type ForkStatusFunc func(ctx context.Context, block *types.Block) (types.ForkStatus, error)

// SelectBestPeer picks the peer to synchronize from.
//
// Only peers announcing their chain weight are considered. Among them, the
// peers with the highest prevoted height, then the highest height, are grouped
// by tip; the largest group wins and ties go to the lexicographically smallest
// tip id. A random peer of the group must announce a chain that forkStatus
// classifies as DifferentChain, otherwise ErrForkChoiceViolation is returned.
// The returned peer is drawn from the group independently of that probe.
//
// For a given peer list the result only depends on rng.
func SelectBestPeer(
	ctx context.Context,
	peers []types.PeerInfo,
	rng *rand.Rand,
	forkStatus ForkStatusFunc,
) (types.PeerInfo, error) {
	compatible := make([]types.PeerInfo, 0, len(peers))
	for _, peer := range peers {
		if peer.HasChainWeight() {
			compatible = append(compatible, peer)
		}
	}
	if len(compatible) == 0 {
		return types.PeerInfo{}, ErrNoCompatiblePeers
	}

	heaviest := maxBy(compatible, func(p types.PeerInfo) int64 { return *p.PrevotedConfirmedUptoHeight })
	highest := maxBy(heaviest, func(p types.PeerInfo) int64 { return *p.Height })
	group := largestTipGroup(highest)

	probe := group[rng.Intn(len(group))]
	status, err := forkStatus(ctx, probe.Tip())
	if err != nil {
		return types.PeerInfo{}, fmt.Errorf("computing fork status of peer %s: %w", probe.ID(), err)
	}
	if status != types.DifferentChain {
		return types.PeerInfo{}, fmt.Errorf("%w: peer %s announces %s with status %s",
			ErrForkChoiceViolation, probe.ID(), probe.LastBlockID, status)
	}

	return group[rng.Intn(len(group))], nil
}

// maxBy returns the peers for which key is maximal, in their original order.
func maxBy(peers []types.PeerInfo, key func(types.PeerInfo) int64) []types.PeerInfo {
	var (
		best int64
		out  []types.PeerInfo
	)
	for i, peer := range peers {
		k := key(peer)
		switch {
		case i == 0 || k > best:
			best = k
			out = append(out[:0:0], peer)
		case k == best:
			out = append(out, peer)
		}
	}
	return out
}

// largestTipGroup groups peers by LastBlockID and returns the largest group.
// Equal sizes are broken by the smallest LastBlockID.
func largestTipGroup(peers []types.PeerInfo) []types.PeerInfo {
	groups := make(map[string][]types.PeerInfo)
	for _, peer := range peers {
		groups[peer.LastBlockID] = append(groups[peer.LastBlockID], peer)
	}

	var (
		bestID string
		found  bool
	)
	for id, group := range groups {
		size, bestSize := len(group), len(groups[bestID])
		if !found || size > bestSize || (size == bestSize && id < bestID) {
			bestID, found = id, true
		}
	}
	return groups[bestID]
}
