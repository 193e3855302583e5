// Package slashings implements the pending slashing pool: proposer and
// attester slashings observed on gossip, deduplicated by validator index,
// served to block production and retired on inclusion.
package slashings

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/params"
)

// PoolManager maintains pending slashings and serves them for inclusion.
type PoolManager interface {
	PendingAttesterSlashings(ctx context.Context, state *types.BeaconState) []*types.AttesterSlashing
	PendingProposerSlashings(ctx context.Context, state *types.BeaconState) []*types.ProposerSlashing
	InsertAttesterSlashing(ctx context.Context, state *types.BeaconState, slashing *types.AttesterSlashing) error
	InsertProposerSlashing(ctx context.Context, state *types.BeaconState, slashing *types.ProposerSlashing) error
	MarkIncludedAttesterSlashing(slashing *types.AttesterSlashing)
	MarkIncludedProposerSlashing(slashing *types.ProposerSlashing)
}

// Pool is the in-memory slashing pool. Pending entries are kept sorted by
// validator index; included indices are remembered so re-gossiped slashings
// are dropped.
type Pool struct {
	lock                    sync.RWMutex
	pendingProposerSlashing []*types.ProposerSlashing
	pendingAttesterSlashing []*pendingAttesterSlashing
	included                map[types.ValidatorIndex]bool
}

type pendingAttesterSlashing struct {
	attesterSlashing *types.AttesterSlashing
	validatorToSlash types.ValidatorIndex
}

// NewPool returns an initialized slashing pool.
func NewPool() *Pool {
	return &Pool{
		pendingProposerSlashing: make([]*types.ProposerSlashing, 0),
		pendingAttesterSlashing: make([]*pendingAttesterSlashing, 0),
		included:                make(map[types.ValidatorIndex]bool),
	}
}

// slashableIndices returns the validator indices attested by both halves of
// the slashing.
func slashableIndices(slashing *types.AttesterSlashing) []types.ValidatorIndex {
	if slashing == nil || slashing.Attestation1 == nil || slashing.Attestation2 == nil {
		return nil
	}
	in2 := make(map[uint64]bool, len(slashing.Attestation2.AttestingIndices))
	for _, idx := range slashing.Attestation2.AttestingIndices {
		in2[idx] = true
	}
	var out []types.ValidatorIndex
	for _, idx := range slashing.Attestation1.AttestingIndices {
		if in2[idx] {
			out = append(out, types.ValidatorIndex(idx))
		}
	}
	return out
}

// validatorSlashable reports whether the validator is present in the state
// and not already slashed.
func validatorSlashable(state *types.BeaconState, idx types.ValidatorIndex) bool {
	if state == nil || uint64(idx) >= uint64(len(state.Validators)) {
		return false
	}
	return !state.Validators[idx].Slashed
}

// PendingAttesterSlashings returns attester slashings that are still
// slashable against the given state, up to the per-block maximum.
func (p *Pool) PendingAttesterSlashings(ctx context.Context, state *types.BeaconState) []*types.AttesterSlashing {
	_, span := trace.StartSpan(ctx, "operations.slashings.PendingAttesterSlashings")
	defer span.End()

	p.lock.RLock()
	defer p.lock.RUnlock()
	pending := make([]*types.AttesterSlashing, 0, params.BeaconConfig().MaxAttesterSlashings)
	for _, slashing := range p.pendingAttesterSlashing {
		if uint64(len(pending)) >= params.BeaconConfig().MaxAttesterSlashings {
			break
		}
		if !validatorSlashable(state, slashing.validatorToSlash) {
			continue
		}
		pending = append(pending, slashing.attesterSlashing)
	}
	return pending
}

// PendingProposerSlashings returns proposer slashings that are still
// slashable against the given state, up to the per-block maximum.
func (p *Pool) PendingProposerSlashings(ctx context.Context, state *types.BeaconState) []*types.ProposerSlashing {
	_, span := trace.StartSpan(ctx, "operations.slashings.PendingProposerSlashings")
	defer span.End()

	p.lock.RLock()
	defer p.lock.RUnlock()
	pending := make([]*types.ProposerSlashing, 0, params.BeaconConfig().MaxProposerSlashings)
	for _, slashing := range p.pendingProposerSlashing {
		if uint64(len(pending)) >= params.BeaconConfig().MaxProposerSlashings {
			break
		}
		if slashing.Header1 == nil || slashing.Header1.Header == nil {
			continue
		}
		if !validatorSlashable(state, slashing.Header1.Header.ProposerIndex) {
			continue
		}
		pending = append(pending, slashing)
	}
	return pending
}

// InsertAttesterSlashing inserts an attester slashing into the pending pool,
// one entry per not-yet-slashed validator it covers.
func (p *Pool) InsertAttesterSlashing(ctx context.Context, state *types.BeaconState, slashing *types.AttesterSlashing) error {
	_, span := trace.StartSpan(ctx, "operations.slashings.InsertAttesterSlashing")
	defer span.End()

	indices := slashableIndices(slashing)
	if len(indices) == 0 {
		return errors.New("no slashable validator indices")
	}

	p.lock.Lock()
	defer p.lock.Unlock()
	inserted := false
	for _, idx := range indices {
		if p.included[idx] || !validatorSlashable(state, idx) {
			attesterSlashingReattempts.Inc()
			continue
		}
		pos := sort.Search(len(p.pendingAttesterSlashing), func(i int) bool {
			return p.pendingAttesterSlashing[i].validatorToSlash >= idx
		})
		if pos < len(p.pendingAttesterSlashing) && p.pendingAttesterSlashing[pos].validatorToSlash == idx {
			continue
		}
		entry := &pendingAttesterSlashing{attesterSlashing: slashing, validatorToSlash: idx}
		p.pendingAttesterSlashing = append(p.pendingAttesterSlashing, nil)
		copy(p.pendingAttesterSlashing[pos+1:], p.pendingAttesterSlashing[pos:])
		p.pendingAttesterSlashing[pos] = entry
		inserted = true
	}
	if !inserted {
		return errors.New("all covered validators are already slashed or pending")
	}
	numPendingAttesterSlashings.Set(float64(len(p.pendingAttesterSlashing)))
	return nil
}

// InsertProposerSlashing inserts a proposer slashing into the pending pool,
// deduplicated by proposer index.
func (p *Pool) InsertProposerSlashing(ctx context.Context, state *types.BeaconState, slashing *types.ProposerSlashing) error {
	_, span := trace.StartSpan(ctx, "operations.slashings.InsertProposerSlashing")
	defer span.End()

	if slashing == nil || slashing.Header1 == nil || slashing.Header1.Header == nil {
		return errors.New("nil proposer slashing")
	}
	idx := slashing.Header1.Header.ProposerIndex

	p.lock.Lock()
	defer p.lock.Unlock()
	if p.included[idx] || !validatorSlashable(state, idx) {
		proposerSlashingReattempts.Inc()
		return errors.New("validator is already slashed")
	}
	pos := sort.Search(len(p.pendingProposerSlashing), func(i int) bool {
		return p.pendingProposerSlashing[i].Header1.Header.ProposerIndex >= idx
	})
	if pos < len(p.pendingProposerSlashing) && p.pendingProposerSlashing[pos].Header1.Header.ProposerIndex == idx {
		return errors.New("slashing for the proposer already pending")
	}
	p.pendingProposerSlashing = append(p.pendingProposerSlashing, nil)
	copy(p.pendingProposerSlashing[pos+1:], p.pendingProposerSlashing[pos:])
	p.pendingProposerSlashing[pos] = slashing
	numPendingProposerSlashings.Set(float64(len(p.pendingProposerSlashing)))
	return nil
}

// MarkIncludedAttesterSlashing retires a slashing that made it into a block.
func (p *Pool) MarkIncludedAttesterSlashing(slashing *types.AttesterSlashing) {
	p.lock.Lock()
	defer p.lock.Unlock()
	for _, idx := range slashableIndices(slashing) {
		pos := sort.Search(len(p.pendingAttesterSlashing), func(i int) bool {
			return p.pendingAttesterSlashing[i].validatorToSlash >= idx
		})
		if pos < len(p.pendingAttesterSlashing) && p.pendingAttesterSlashing[pos].validatorToSlash == idx {
			p.pendingAttesterSlashing = append(p.pendingAttesterSlashing[:pos], p.pendingAttesterSlashing[pos+1:]...)
		}
		p.included[idx] = true
		numAttesterSlashingsIncluded.Inc()
	}
	numPendingAttesterSlashings.Set(float64(len(p.pendingAttesterSlashing)))
}

// MarkIncludedProposerSlashing retires a slashing that made it into a block.
func (p *Pool) MarkIncludedProposerSlashing(slashing *types.ProposerSlashing) {
	if slashing == nil || slashing.Header1 == nil || slashing.Header1.Header == nil {
		return
	}
	idx := slashing.Header1.Header.ProposerIndex

	p.lock.Lock()
	defer p.lock.Unlock()
	pos := sort.Search(len(p.pendingProposerSlashing), func(i int) bool {
		return p.pendingProposerSlashing[i].Header1.Header.ProposerIndex >= idx
	})
	if pos < len(p.pendingProposerSlashing) && p.pendingProposerSlashing[pos].Header1.Header.ProposerIndex == idx {
		p.pendingProposerSlashing = append(p.pendingProposerSlashing[:pos], p.pendingProposerSlashing[pos+1:]...)
	}
	p.included[idx] = true
	numProposerSlashingsIncluded.Inc()
	numPendingProposerSlashings.Set(float64(len(p.pendingProposerSlashing)))
}
