// Package voluntaryexits implements the pending voluntary-exit pool: exits
// observed on gossip, deduplicated by validator index, served to block
// production and retired on inclusion or once the validator's exit epoch is
// set in the state.
package voluntaryexits

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/params"
	"github.com/zephyrlabs/zephyr/shared/slotutil"
)

var log = logrus.WithField("prefix", "exitpool")

// PoolManager maintains pending voluntary exits and serves them for
// inclusion.
type PoolManager interface {
	PendingExits(state *types.BeaconState, slot types.Slot) []*types.SignedVoluntaryExit
	InsertVoluntaryExit(ctx context.Context, state *types.BeaconState, exit *types.SignedVoluntaryExit)
	MarkIncluded(exit *types.SignedVoluntaryExit)
}

// Pool is the in-memory voluntary-exit pool, kept sorted by validator index.
type Pool struct {
	lock    sync.RWMutex
	pending []*types.SignedVoluntaryExit
}

// NewPool returns an initialized exit pool.
func NewPool() *Pool {
	return &Pool{pending: make([]*types.SignedVoluntaryExit, 0)}
}

// PendingExits returns exits eligible for inclusion at the given slot, up to
// the per-block maximum. Exits for validators whose exit epoch is already set
// in the state are skipped.
func (p *Pool) PendingExits(state *types.BeaconState, slot types.Slot) []*types.SignedVoluntaryExit {
	p.lock.RLock()
	defer p.lock.RUnlock()

	pending := make([]*types.SignedVoluntaryExit, 0, params.BeaconConfig().MaxVoluntaryExits)
	for _, exit := range p.pending {
		if uint64(len(pending)) >= params.BeaconConfig().MaxVoluntaryExits {
			break
		}
		if exit.Exit == nil {
			continue
		}
		if exitProcessed(state, exit.Exit.ValidatorIndex) {
			continue
		}
		if slotutil.EpochStart(exit.Exit.Epoch) > slot {
			continue
		}
		pending = append(pending, exit)
	}
	return pending
}

// InsertVoluntaryExit adds an exit to the pool, deduplicated by validator
// index. Exits for validators already exiting are dropped.
func (p *Pool) InsertVoluntaryExit(ctx context.Context, state *types.BeaconState, exit *types.SignedVoluntaryExit) {
	_, span := trace.StartSpan(ctx, "operations.voluntaryexits.InsertVoluntaryExit")
	defer span.End()

	if exit == nil || exit.Exit == nil {
		return
	}
	if exitProcessed(state, exit.Exit.ValidatorIndex) {
		log.WithField("validatorIndex", exit.Exit.ValidatorIndex).Debug("Dropping exit for already exiting validator")
		return
	}

	p.lock.Lock()
	defer p.lock.Unlock()
	pos := sort.Search(len(p.pending), func(i int) bool {
		return p.pending[i].Exit.ValidatorIndex >= exit.Exit.ValidatorIndex
	})
	if pos < len(p.pending) && p.pending[pos].Exit.ValidatorIndex == exit.Exit.ValidatorIndex {
		return
	}
	p.pending = append(p.pending, nil)
	copy(p.pending[pos+1:], p.pending[pos:])
	p.pending[pos] = types.CopySignedVoluntaryExit(exit)
}

// MarkIncluded removes an exit that made it into a block from the pool.
func (p *Pool) MarkIncluded(exit *types.SignedVoluntaryExit) {
	if exit == nil || exit.Exit == nil {
		return
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	pos := sort.Search(len(p.pending), func(i int) bool {
		return p.pending[i].Exit.ValidatorIndex >= exit.Exit.ValidatorIndex
	})
	if pos < len(p.pending) && p.pending[pos].Exit.ValidatorIndex == exit.Exit.ValidatorIndex {
		p.pending = append(p.pending[:pos], p.pending[pos+1:]...)
	}
}

// exitProcessed reports whether the state already carries an exit epoch for
// the validator.
func exitProcessed(state *types.BeaconState, idx types.ValidatorIndex) bool {
	if state == nil || uint64(idx) >= uint64(len(state.Validators)) {
		return false
	}
	return state.Validators[idx].ExitEpoch != params.BeaconConfig().FarFutureEpoch
}
