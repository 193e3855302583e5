package eth1data

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/params"
)

// depositCache holds pending deposit containers sorted by merkle index.
// Proofs are carried opaque; verification happens in the state transition.
type depositCache struct {
	mu       sync.RWMutex
	byIndex  map[uint64]*types.Deposit
	maxIndex uint64
	hasAny   bool
}

func newDepositCache() *depositCache {
	return &depositCache{byIndex: make(map[uint64]*types.Deposit)}
}

// insert records the deposits of one follower message. Re-delivery of a
// window is idempotent.
func (c *depositCache) insert(record *types.DepositsFromBlock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, dep := range record.Deposits {
		idx := record.FirstIndex + uint64(i)
		if _, ok := c.byIndex[idx]; ok {
			continue
		}
		c.byIndex[idx] = dep
		if !c.hasAny || idx > c.maxIndex {
			c.maxIndex = idx
			c.hasAny = true
		}
	}
}

func (c *depositCache) count() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return uint64(len(c.byIndex))
}

// consecutiveFrom returns up to max deposits with contiguous indices starting
// at the given index.
func (c *depositCache) consecutiveFrom(start, max uint64) []*types.Deposit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	deposits := make([]*types.Deposit, 0, max)
	for idx := start; uint64(len(deposits)) < max; idx++ {
		dep, ok := c.byIndex[idx]
		if !ok {
			break
		}
		deposits = append(deposits, dep)
	}
	return deposits
}

// OnDepositsFromBlock persists and caches one follower deposit message.
func (s *Service) OnDepositsFromBlock(ctx context.Context, record *types.DepositsFromBlock) error {
	ctx, span := trace.StartSpan(ctx, "eth1data.OnDepositsFromBlock")
	defer span.End()

	if record == nil {
		return errors.New("nil deposit record")
	}
	if err := s.cfg.DB.SaveDepositsFromBlock(ctx, record); err != nil {
		return errors.Wrap(err, "could not persist deposit record")
	}
	s.cache.insert(record)
	log.WithFields(map[string]interface{}{
		"firstIndex":  record.FirstIndex,
		"count":       record.Count,
		"blockNumber": record.BlockNumber,
	}).Debug("Cached deposits from Eth1 block")
	s.maybeTriggerGenesis(ctx)
	return nil
}

// DepositsForBlock returns up to MaxDeposits deposits consecutive from the
// state's deposit index, the inclusion view for block production.
func (s *Service) DepositsForBlock(ctx context.Context, state *types.BeaconState) ([]*types.Deposit, error) {
	_, span := trace.StartSpan(ctx, "eth1data.DepositsForBlock")
	defer span.End()

	if state == nil {
		return nil, errors.New("nil state")
	}
	return s.cache.consecutiveFrom(state.Eth1DepositIndex, params.BeaconConfig().MaxDeposits), nil
}

// MajorityVote tallies the state's eth1-data votes and returns the winning
// vote when one holds a strict majority of the voting period, falling back to
// the state's current eth1 data.
func MajorityVote(state *types.BeaconState) *types.Eth1Data {
	if state == nil {
		return nil
	}
	votingPeriodSlots := uint64(params.BeaconConfig().SlotsPerEpoch.Mul(uint64(params.BeaconConfig().EpochsPerEth1VotingPeriod)))

	type tally struct {
		vote  *types.Eth1Data
		count uint64
	}
	counts := make(map[string]*tally, len(state.Eth1DataVotes))
	for _, vote := range state.Eth1DataVotes {
		if vote == nil {
			continue
		}
		key := string(vote.BlockHash) + string(vote.DepositRoot)
		if t, ok := counts[key]; ok {
			t.count++
		} else {
			counts[key] = &tally{vote: vote, count: 1}
		}
	}

	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	// Deterministic winner on equal counts.
	sort.Strings(keys)
	for _, key := range keys {
		if t := counts[key]; t.count*2 > votingPeriodSlots {
			return types.CopyEth1Data(t.vote)
		}
	}
	return types.CopyEth1Data(state.Eth1Data)
}
