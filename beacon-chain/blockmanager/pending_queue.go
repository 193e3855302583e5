package blockmanager

import (
	"context"
	"time"

	"go.opencensus.io/trace"

	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/bytesutil"
	"github.com/zephyrlabs/zephyr/shared/slotutil"
)

const maxFetchAttempts = 5

// processPendingBlocksQueue drains the pending bucket on every third of a
// slot: parents that are missing get fetched, parents that arrived in the
// meantime get their children re-imported.
func (s *Service) processPendingBlocksQueue() {
	ticker := time.NewTicker(slotutil.DivideSlotBy(3))
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.processPendingBlocks(s.ctx)
		case <-s.ctx.Done():
			log.Debug("Context closed, exiting pending-queue routine")
			return
		}
	}
}

func (s *Service) processPendingBlocks(ctx context.Context) {
	ctx, span := trace.StartSpan(ctx, "blockmanager.processPendingBlocks")
	defer span.End()

	store, err := s.cfg.ChainData.CurrentStore()
	if err != nil {
		return
	}
	finalized := store.Finalized

	s.bucketMu.Lock()
	parents := make([][32]byte, 0, len(s.pendingBlocks))
	for parent := range s.pendingBlocks {
		parents = append(parents, parent)
	}
	s.bucketMu.Unlock()

	for _, parent := range parents {
		if store.HasBlock(parent) {
			s.flushPendingChildren(ctx, parent)
			continue
		}
		if finalized != nil && s.allChildrenBehindFinality(parent, finalized.Epoch) {
			s.dropPending(parent)
			continue
		}
		s.fetchParent(ctx, parent)
	}
}

// allChildrenBehindFinality reports whether every parked child of the parent
// sits at or below the finalized epoch start, in which case the fetch is
// abandoned.
func (s *Service) allChildrenBehindFinality(parent [32]byte, finalizedEpoch types.Epoch) bool {
	cutoff := slotutil.EpochStart(finalizedEpoch)
	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	for _, child := range s.pendingBlocks[parent] {
		if child.Block.Slot > cutoff {
			return false
		}
	}
	return len(s.pendingBlocks[parent]) > 0
}

func (s *Service) dropPending(parent [32]byte) {
	s.bucketMu.Lock()
	dropped := len(s.pendingBlocks[parent])
	delete(s.pendingBlocks, parent)
	s.bucketMu.Unlock()
	s.abandonFetch(parent)
	if dropped > 0 {
		log.WithFields(map[string]interface{}{
			"parent": bytesutil.Trunc(parent[:]),
			"count":  dropped,
		}).Debug("Abandoned pending blocks behind finality")
	}
}

// fetchParent requests the missing parent from a peer. At most one request
// per root is in flight; failed attempts back off by waiting for the next
// queue drain, and the root is given up after maxFetchAttempts.
func (s *Service) fetchParent(ctx context.Context, parent [32]byte) {
	if s.cfg.Fetcher == nil {
		return
	}
	s.fetchMu.Lock()
	state, ok := s.inFlight[parent]
	if !ok {
		state = &fetchState{}
		s.inFlight[parent] = state
	}
	if state.active || state.attempts >= maxFetchAttempts {
		s.fetchMu.Unlock()
		return
	}
	state.active = true
	state.attempts++
	s.fetchMu.Unlock()

	go func() {
		defer func() {
			s.fetchMu.Lock()
			if st, ok := s.inFlight[parent]; ok {
				st.active = false
			}
			s.fetchMu.Unlock()
		}()

		signed, err := s.cfg.Fetcher.RequestBlockByRoot(ctx, parent)
		if err != nil {
			fetchFailureCount.Inc()
			log.WithError(err).WithField("root", bytesutil.Trunc(parent[:])).Debug("Parent fetch failed")
			return
		}
		if signed == nil {
			return
		}
		if err := s.Receive(ctx, signed); err != nil {
			log.WithError(err).WithField("root", bytesutil.Trunc(parent[:])).Warn("Could not import fetched parent")
		}
	}()
}

func (s *Service) abandonFetch(root [32]byte) {
	s.fetchMu.Lock()
	delete(s.inFlight, root)
	s.fetchMu.Unlock()
}
