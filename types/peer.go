package types

import "fmt"

// PeerState is the connection state reported by the peer-management layer.
type PeerState int

const (
	PeerStateDisconnected PeerState = iota
	PeerStateBanned
	PeerStateConnected
)

// PeerInfo is a read-only snapshot of a peer as reported by the network layer.
//
// The chain-weight fields are optional: peers running an older protocol do not
// announce them and are not eligible as synchronization targets.
type PeerInfo struct {
	IP          string    `json:"ip"`
	Port        int       `json:"port"`
	State       PeerState `json:"state"`
	LastBlockID string    `json:"last_block_id"`

	Height                      *int64 `json:"height,omitempty"`
	PrevotedConfirmedUptoHeight *int64 `json:"prevoted_confirmed_upto_height,omitempty"`
	BlockVersion                *int   `json:"block_version,omitempty"`
}

// ID returns the peer identifier in the "ip:port" form used by the network layer.
func (p PeerInfo) ID() string {
	return fmt.Sprintf("%s:%d", p.IP, p.Port)
}

// HasChainWeight reports whether the peer exposes every field needed to compare
// its chain against ours.
func (p PeerInfo) HasChainWeight() bool {
	return p.Height != nil && p.PrevotedConfirmedUptoHeight != nil && p.BlockVersion != nil
}

// Tip builds the synthetic block used to weigh the peer's chain against the
// local tip. It must only be called when HasChainWeight is true.
func (p PeerInfo) Tip() *Block {
	return &Block{
		ID:                          p.LastBlockID,
		Height:                      *p.Height,
		Version:                     *p.BlockVersion,
		PrevotedConfirmedUptoHeight: *p.PrevotedConfirmedUptoHeight,
	}
}
