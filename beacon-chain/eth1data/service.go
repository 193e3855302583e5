// Package eth1data caches the deposit stream delivered by the Eth1 follower
// and serves the eth1-data voting and deposit-inclusion views. It also turns
// the follower's min-genesis-time block into the genesis trigger the chain
// store waits on.
package eth1data

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/zephyrlabs/zephyr/beacon-chain/db/iface"
	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/params"
)

var log = logrus.WithField("prefix", "eth1data")

// Config carries the eth1 data service dependencies.
type Config struct {
	DB iface.Database
	// GenesisValidatorCount is how many deposits must be seen before the
	// min-genesis-time block triggers genesis.
	GenesisValidatorCount uint64
}

// Service is the eth1 data cache and deposit provider.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *Config
	err    error

	cache       *depositCache
	genesisCh   chan *types.BeaconState
	genesisSent bool
	minGenesis  *types.MinGenesisTimeBlock
}

// NewService instantiates the eth1 data service.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	ctx, cancel := context.WithCancel(ctx)
	if cfg.GenesisValidatorCount == 0 {
		cfg.GenesisValidatorCount = params.BeaconConfig().MinGenesisActiveValidatorCount
	}
	return &Service{
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		cache:     newDepositCache(),
		genesisCh: make(chan *types.BeaconState, 1),
	}, nil
}

// Start reloads the persisted deposit stream into the cache.
func (s *Service) Start() {
	go s.reloadFromStorage()
}

// Stop halts the service.
func (s *Service) Stop() error {
	defer s.cancel()
	return nil
}

// Status returns the current service error if there is any.
func (s *Service) Status() error {
	return s.err
}

// GenesisTrigger returns the channel on which a synthesized genesis state is
// delivered once the min-genesis conditions are met.
func (s *Service) GenesisTrigger() <-chan *types.BeaconState {
	return s.genesisCh
}

// DepositCount returns the number of cached deposits.
func (s *Service) DepositCount() uint64 {
	return s.cache.count()
}

func (s *Service) reloadFromStorage() {
	records, err := s.cfg.DB.DepositsFromBlockStream(s.ctx)
	if err != nil {
		log.WithError(err).Error("Could not reload deposit stream from storage")
		return
	}
	for _, record := range records {
		s.cache.insert(record)
	}
	if len(records) > 0 {
		log.WithField("deposits", s.cache.count()).Info("Reloaded deposit stream from storage")
	}
	minGenesis, err := s.cfg.DB.MinGenesisTimeBlock(s.ctx)
	if err != nil {
		log.WithError(err).Error("Could not reload min-genesis-time block from storage")
		return
	}
	if minGenesis != nil {
		s.minGenesis = minGenesis
		s.maybeTriggerGenesis(s.ctx)
	}
}
