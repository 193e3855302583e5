package blockchain

import (
	"context"

	"github.com/zephyrlabs/zephyr/beacon-chain/blockmanager"
	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/bytesutil"
)

// opsCleanupLoop consumes the verified-block fan-out and retires every
// operation carried by an imported block from the pending pools, so that
// attestations, slashings and exits are not proposed twice.
func (s *Service) opsCleanupLoop() {
	ch := make(chan *blockmanager.VerifiedBlockData, 16)
	sub := s.cfg.BlockManager.SubscribeVerifiedBlocks(ch)
	defer sub.Unsubscribe()
	for {
		select {
		case data := <-ch:
			s.retireIncludedOperations(data)
		case err := <-sub.Err():
			if err != nil {
				log.WithError(err).Error("Verified-block subscription failed")
			}
			return
		case <-s.ctx.Done():
			return
		}
	}
}

// retireIncludedOperations removes the operations in an imported block's body
// from the attestation pool, the slashing pool and the exit pool.
func (s *Service) retireIncludedOperations(data *blockmanager.VerifiedBlockData) {
	if data == nil || data.Block == nil || data.Block.Block == nil || data.Block.Block.Body == nil {
		return
	}
	body := data.Block.Block.Body
	if s.cfg.AttPool != nil && len(body.Attestations) > 0 {
		if err := s.cfg.AttPool.RemoveIncluded(s.ctx, body.Attestations); err != nil {
			log.WithError(err).WithField("blockRoot", bytesutil.Trunc(data.Root[:])).Error("Could not retire included attestations")
		}
	}
	if s.cfg.SlashingsPool != nil {
		for _, slashing := range body.AttesterSlashings {
			s.cfg.SlashingsPool.MarkIncludedAttesterSlashing(slashing)
		}
		for _, slashing := range body.ProposerSlashings {
			s.cfg.SlashingsPool.MarkIncludedProposerSlashing(slashing)
		}
	}
	if s.cfg.ExitPool != nil {
		for _, exit := range body.VoluntaryExits {
			s.cfg.ExitPool.MarkIncluded(exit)
		}
	}
	opsRetiredCount.Add(float64(len(body.Attestations) + len(body.AttesterSlashings) + len(body.ProposerSlashings) + len(body.VoluntaryExits)))
}

// BlockOperations is the inclusion view served to block production: the
// pending operations eligible for the block being built on the given state.
type BlockOperations struct {
	Attestations      []*types.Attestation
	AttesterSlashings []*types.AttesterSlashing
	ProposerSlashings []*types.ProposerSlashing
	VoluntaryExits    []*types.SignedVoluntaryExit
}

// OperationsForBlock assembles the pending operations a proposer may include
// in a block built on top of the given state at the given slot.
func (s *Service) OperationsForBlock(ctx context.Context, state *types.BeaconState, slot types.Slot) (*BlockOperations, error) {
	ops := &BlockOperations{}
	if s.cfg.AttPool != nil {
		atts, err := s.cfg.AttPool.AttestationsForBlock(ctx, state)
		if err != nil {
			return nil, err
		}
		ops.Attestations = atts
	}
	if s.cfg.SlashingsPool != nil {
		ops.AttesterSlashings = s.cfg.SlashingsPool.PendingAttesterSlashings(ctx, state)
		ops.ProposerSlashings = s.cfg.SlashingsPool.PendingProposerSlashings(ctx, state)
	}
	if s.cfg.ExitPool != nil {
		ops.VoluntaryExits = s.cfg.ExitPool.PendingExits(state, slot)
	}
	return ops, nil
}
