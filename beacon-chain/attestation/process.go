package attestation

import (
	"context"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/zephyrlabs/zephyr/beacon-chain/forkchoice"
	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/bytesutil"
)

// Outcome classifies what happened to a processed attestation.
type Outcome int

const (
	// Accepted means the attestation was applied to fork choice.
	Accepted Outcome = iota
	// DeferredPending means the attested block is unknown; the attestation
	// waits for that block's import.
	DeferredPending
	// DeferredFuture means the attestation cannot influence fork choice
	// yet; it waits for its earliest processing slot.
	DeferredFuture
	// Rejected is a permanent refusal.
	Rejected
)

// Decision is the outcome of processing one attestation.
type Decision struct {
	Outcome Outcome
	Reason  error
}

// Process routes one attestation into fork choice. Benign failures defer the
// attestation into the pending or future bucket; permanent failures reject.
// On acceptance the attestation is fanned out to subscribers and added to the
// aggregating pool.
func (s *Service) Process(ctx context.Context, att *types.Attestation) Decision {
	ctx, span := trace.StartSpan(ctx, "attestation.Process")
	defer span.End()

	if att == nil || att.Data == nil {
		return Decision{Outcome: Rejected, Reason: errors.New("nil attestation")}
	}

	tx := s.cfg.ChainData.StartTransaction()
	err := forkchoice.OnAttestation(ctx, tx, att, s.cfg.Resolver)
	switch {
	case err == nil:
		if err := tx.Commit(ctx); err != nil {
			return Decision{Outcome: Rejected, Reason: err}
		}
	case errors.Cause(err) == forkchoice.ErrUnknownBlock:
		s.deferPending(att)
		return Decision{Outcome: DeferredPending, Reason: err}
	case errors.Cause(err) == forkchoice.ErrFutureSlot:
		s.deferFuture(att)
		return Decision{Outcome: DeferredFuture, Reason: err}
	default:
		log.WithError(err).WithField("slot", att.Data.Slot).Debug("Rejected attestation")
		return Decision{Outcome: Rejected, Reason: err}
	}

	s.processedFeed.Send(&ProcessedAttestationData{Attestation: att})
	s.saveToPool(att)
	return Decision{Outcome: Accepted}
}

func (s *Service) saveToPool(att *types.Attestation) {
	var err error
	if att.AggregationBits.Count() > 1 {
		err = s.cfg.Pool.SaveAggregatedAttestation(att)
	} else {
		err = s.cfg.Pool.SaveUnaggregatedAttestation(att)
	}
	if err != nil {
		log.WithError(err).Debug("Could not save attestation to pool")
	}
}

func (s *Service) deferPending(att *types.Attestation) {
	key := string(att.Data.BeaconBlockRoot)
	if existing, ok := s.pendingAtts.Get(key); ok {
		if atts, ok := existing.([]*types.Attestation); ok {
			s.pendingAtts.SetDefault(key, append(atts, att))
			return
		}
	}
	s.pendingAtts.SetDefault(key, []*types.Attestation{att})
}

func (s *Service) deferFuture(att *types.Attestation) {
	// Attestations join fork choice one slot after the slot they attest to.
	requiredSlot := att.Data.Slot.Add(1)
	s.futureMu.Lock()
	defer s.futureMu.Unlock()
	s.futureAtts[requiredSlot] = append(s.futureAtts[requiredSlot], att)
}

// OnBlockImported flushes every pending attestation parked on the imported
// block root, then processes the attestations carried in the block body. The
// pending bucket for the root is fully drained before this returns.
func (s *Service) OnBlockImported(ctx context.Context, root [32]byte, blockAtts []*types.Attestation) {
	ctx, span := trace.StartSpan(ctx, "attestation.OnBlockImported")
	defer span.End()

	key := string(root[:])
	if existing, ok := s.pendingAtts.Get(key); ok {
		s.pendingAtts.Delete(key)
		if atts, ok := existing.([]*types.Attestation); ok {
			for _, att := range atts {
				s.Process(ctx, att)
			}
			log.WithFields(map[string]interface{}{
				"root":  bytesutil.Trunc(root[:]),
				"count": len(atts),
			}).Debug("Flushed pending attestations for imported block")
		}
	}

	for _, att := range blockAtts {
		s.Process(ctx, att)
	}
}

// OnSlot flushes future attestations whose earliest processing slot arrived.
func (s *Service) OnSlot(ctx context.Context, slot types.Slot) {
	s.futureMu.Lock()
	var due []*types.Attestation
	for requiredSlot, atts := range s.futureAtts {
		if requiredSlot <= slot {
			due = append(due, atts...)
			delete(s.futureAtts, requiredSlot)
		}
	}
	s.futureMu.Unlock()

	for _, att := range due {
		s.Process(ctx, att)
	}
}
