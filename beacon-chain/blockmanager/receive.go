package blockmanager

import (
	"context"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/zephyrlabs/zephyr/beacon-chain/forkchoice"
	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/bytesutil"
)

// Receive imports a signed block: it runs the fork-choice block handler in a
// store transaction, commits, and fans the verified block out. Blocks with an
// unknown parent or a future slot are parked in their buckets.
func (s *Service) Receive(ctx context.Context, signed *types.SignedBeaconBlock) error {
	ctx, span := trace.StartSpan(ctx, "blockmanager.Receive")
	defer span.End()

	if signed == nil || signed.Block == nil {
		return errors.New("nil block")
	}

	tx := s.cfg.ChainData.StartTransaction()
	root, err := forkchoice.OnBlock(ctx, tx, signed, s.cfg.Transition)
	switch {
	case err == nil:
	case errors.Cause(err) == forkchoice.ErrParentUnknown:
		s.deferPending(signed)
		return nil
	case errors.Cause(err) == forkchoice.ErrFutureSlot:
		s.deferFuture(signed)
		return nil
	default:
		log.WithError(err).WithField("slot", signed.Block.Slot).Warn("Rejected block")
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "could not commit block import")
	}
	importedBlockCount.Inc()
	log.WithFields(map[string]interface{}{
		"slot": signed.Block.Slot,
		"root": bytesutil.Trunc(root[:]),
	}).Debug("Imported block")

	s.abandonFetch(root)
	s.verifiedFeed.Send(&VerifiedBlockData{Root: root, Block: signed})
	if s.cfg.Attestations != nil && signed.Block.Body != nil {
		s.cfg.Attestations.OnBlockImported(ctx, root, signed.Block.Body.Attestations)
	}
	s.flushPendingChildren(ctx, root)
	return nil
}

func (s *Service) deferPending(signed *types.SignedBeaconBlock) {
	parent := bytesutil.ToBytes32(signed.Block.ParentRoot)
	s.bucketMu.Lock()
	s.pendingBlocks[parent] = append(s.pendingBlocks[parent], signed)
	s.bucketMu.Unlock()
	pendingBlockCount.Inc()
	log.WithFields(map[string]interface{}{
		"slot":   signed.Block.Slot,
		"parent": bytesutil.Trunc(signed.Block.ParentRoot),
	}).Debug("Parked block awaiting parent")
}

func (s *Service) deferFuture(signed *types.SignedBeaconBlock) {
	s.bucketMu.Lock()
	s.futureBlocks[signed.Block.Slot] = append(s.futureBlocks[signed.Block.Slot], signed)
	s.bucketMu.Unlock()
	log.WithField("slot", signed.Block.Slot).Debug("Parked block from future slot")
}

// flushPendingChildren re-imports blocks that were waiting on the just
// imported root.
func (s *Service) flushPendingChildren(ctx context.Context, root [32]byte) {
	s.bucketMu.Lock()
	children := s.pendingBlocks[root]
	delete(s.pendingBlocks, root)
	s.bucketMu.Unlock()

	for _, child := range children {
		if err := s.Receive(ctx, child); err != nil {
			log.WithError(err).WithField("slot", child.Block.Slot).Warn("Could not import parked block")
		}
	}
}

// OnSlot re-imports future blocks whose slot arrived.
func (s *Service) OnSlot(ctx context.Context, slot types.Slot) {
	s.bucketMu.Lock()
	var due []*types.SignedBeaconBlock
	for blockSlot, blocks := range s.futureBlocks {
		if blockSlot <= slot {
			due = append(due, blocks...)
			delete(s.futureBlocks, blockSlot)
		}
	}
	s.bucketMu.Unlock()

	for _, signed := range due {
		if err := s.Receive(ctx, signed); err != nil {
			log.WithError(err).WithField("slot", signed.Block.Slot).Warn("Could not import future block")
		}
	}
}
