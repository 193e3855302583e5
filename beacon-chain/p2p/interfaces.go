// Package p2p defines the narrow networking surface the consensus control
// plane consumes. The node injects concrete implementations; the control
// plane never imports a networking stack directly.
package p2p

import (
	"context"

	types "github.com/zephyrlabs/zephyr/consensus/types"
)

// Broadcaster publishes a consensus message to the network.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg interface{}) error
}

// PeerCounter reports the number of connected peers.
type PeerCounter interface {
	PeerCount() int
}

// BlockByRootRequester fetches a single block by its root from a peer.
type BlockByRootRequester interface {
	RequestBlockByRoot(ctx context.Context, root [32]byte) (*types.SignedBeaconBlock, error)
}

// BlockByRangeRequester fetches a contiguous range of blocks from a peer.
type BlockByRangeRequester interface {
	RequestBlocksByRange(ctx context.Context, startSlot types.Slot, count uint64) ([]*types.SignedBeaconBlock, error)
}

// SyncChecker reports whether initial sync is still in progress.
type SyncChecker interface {
	Syncing() bool
}
