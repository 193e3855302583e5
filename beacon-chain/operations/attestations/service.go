package attestations

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/zephyrlabs/zephyr/shared/async"
	"github.com/zephyrlabs/zephyr/shared/slotutil"
)

var log = logrus.WithField("prefix", "attpool")

// Roots tracked for the fork-choice staging dedupe window.
const forkchoiceProcessedRootsSize = 1 << 16

// Service of attestation pool operations: it runs the background aggregation
// and fork-choice staging routines over the pool.
type Service struct {
	ctx                      context.Context
	cancel                   context.CancelFunc
	cfg                      *Config
	err                      error
	forkchoiceProcessedRoots *lru.Cache
}

// Config options for the attestation pool service.
type Config struct {
	Pool Pool
}

// NewService instantiates a new attestation pool service instance that will
// be registered into a running beacon node.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	cache, err := lru.New(forkchoiceProcessedRootsSize)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		ctx:                      ctx,
		cancel:                   cancel,
		cfg:                      cfg,
		forkchoiceProcessedRoots: cache,
	}, nil
}

// Start the attestation pool service's main event loops.
func (s *Service) Start() {
	interval := slotutil.DivideSlotBy(3)
	async.RunEvery(s.ctx, "forkchoice staging", interval, s.stageForkchoiceAtts)
	async.RunEvery(s.ctx, "attestation aggregation", interval, s.aggregatePending)
}

// Stop the attestation pool service's main event loops and associated
// goroutines.
func (s *Service) Stop() error {
	defer s.cancel()
	return nil
}

// Status returns the current service error if there is any.
func (s *Service) Status() error {
	return s.err
}

// Pool returns the underlying attestation pool.
func (s *Service) Pool() Pool {
	return s.cfg.Pool
}
