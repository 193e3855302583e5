// Package params defines important constants that are essential to beacon
// chain services.
package params

import (
	types "github.com/prysmaticlabs/eth2-types"
)

// BeaconChainConfig contains constant configs for the node to participate in
// the beacon chain.
type BeaconChainConfig struct {
	// Constants (non-configurable).
	GenesisSlot    types.Slot  `yaml:"GENESIS_SLOT"`
	GenesisEpoch   types.Epoch `yaml:"GENESIS_EPOCH"`
	FarFutureEpoch types.Epoch `yaml:"FAR_FUTURE_EPOCH"`
	ZeroHash       [32]byte

	// Time parameters.
	SecondsPerSlot               uint64      `yaml:"SECONDS_PER_SLOT" spec:"true"`
	SlotsPerEpoch                types.Slot  `yaml:"SLOTS_PER_EPOCH" spec:"true"`
	MinAttestationInclusionDelay types.Slot  `yaml:"MIN_ATTESTATION_INCLUSION_DELAY" spec:"true"`
	SlotsPerHistoricalRoot       types.Slot  `yaml:"SLOTS_PER_HISTORICAL_ROOT" spec:"true"`
	ShardCommitteePeriod         types.Epoch `yaml:"SHARD_COMMITTEE_PERIOD" spec:"true"`
	MinGenesisTime               uint64      `yaml:"MIN_GENESIS_TIME" spec:"true"`
	GenesisDelay                 uint64      `yaml:"GENESIS_DELAY" spec:"true"`

	// Eth1 parameters.
	EpochsPerEth1VotingPeriod types.Epoch `yaml:"EPOCHS_PER_ETH1_VOTING_PERIOD" spec:"true"`
	Eth1FollowDistance        uint64      `yaml:"ETH1_FOLLOW_DISTANCE" spec:"true"`
	SecondsPerETH1Block       uint64      `yaml:"SECONDS_PER_ETH1_BLOCK" spec:"true"`
	DepositContractTreeDepth  uint64      `yaml:"DEPOSIT_CONTRACT_TREE_DEPTH"`

	// Validator parameters.
	MinGenesisActiveValidatorCount uint64 `yaml:"MIN_GENESIS_ACTIVE_VALIDATOR_COUNT" spec:"true"`
	MaxEffectiveBalance            uint64 `yaml:"MAX_EFFECTIVE_BALANCE" spec:"true"`

	// Committee parameters.
	MaxCommitteesPerSlot uint64 `yaml:"MAX_COMMITTEES_PER_SLOT" spec:"true"`
	TargetCommitteeSize  uint64 `yaml:"TARGET_COMMITTEE_SIZE" spec:"true"`

	// Max operations per block.
	MaxProposerSlashings uint64 `yaml:"MAX_PROPOSER_SLASHINGS" spec:"true"`
	MaxAttesterSlashings uint64 `yaml:"MAX_ATTESTER_SLASHINGS" spec:"true"`
	MaxAttestations      uint64 `yaml:"MAX_ATTESTATIONS" spec:"true"`
	MaxDeposits          uint64 `yaml:"MAX_DEPOSITS" spec:"true"`
	MaxVoluntaryExits    uint64 `yaml:"MAX_VOLUNTARY_EXITS" spec:"true"`

	// Fork choice parameters.
	SafeSlotsToUpdateJustified types.Slot `yaml:"SAFE_SLOTS_TO_UPDATE_JUSTIFIED" spec:"true"`
	IntervalsPerSlot           uint64     `yaml:"INTERVALS_PER_SLOT" spec:"true"`
}

// MainnetConfig returns the configuration to be used in the main network.
func MainnetConfig() *BeaconChainConfig {
	return mainnetBeaconConfig
}

var mainnetBeaconConfig = &BeaconChainConfig{
	GenesisSlot:    0,
	GenesisEpoch:   0,
	FarFutureEpoch: 1<<64 - 1,
	ZeroHash:       [32]byte{},

	SecondsPerSlot:               12,
	SlotsPerEpoch:                32,
	MinAttestationInclusionDelay: 1,
	SlotsPerHistoricalRoot:       8192,
	ShardCommitteePeriod:         256,
	MinGenesisTime:               1606824000,
	GenesisDelay:                 604800,

	EpochsPerEth1VotingPeriod: 64,
	Eth1FollowDistance:        2048,
	SecondsPerETH1Block:       14,
	DepositContractTreeDepth:  32,

	MinGenesisActiveValidatorCount: 16384,
	MaxEffectiveBalance:            32 * 1e9,

	MaxCommitteesPerSlot: 64,
	TargetCommitteeSize:  128,

	MaxProposerSlashings: 16,
	MaxAttesterSlashings: 2,
	MaxAttestations:      128,
	MaxDeposits:          16,
	MaxVoluntaryExits:    16,

	SafeSlotsToUpdateJustified: 8,
	IntervalsPerSlot:           3,
}

// MinimalSpecConfig retrieves the minimal config used in spec tests.
func MinimalSpecConfig() *BeaconChainConfig {
	minimalConfig := *mainnetBeaconConfig
	minimalConfig.SecondsPerSlot = 6
	minimalConfig.SlotsPerEpoch = 8
	minimalConfig.SlotsPerHistoricalRoot = 64
	minimalConfig.ShardCommitteePeriod = 64
	minimalConfig.MinGenesisTime = 0
	minimalConfig.GenesisDelay = 300
	minimalConfig.EpochsPerEth1VotingPeriod = 4
	minimalConfig.Eth1FollowDistance = 16
	minimalConfig.MinGenesisActiveValidatorCount = 64
	minimalConfig.MaxCommitteesPerSlot = 4
	minimalConfig.TargetCommitteeSize = 4
	minimalConfig.SafeSlotsToUpdateJustified = 2
	return &minimalConfig
}

// Copy returns a copy of the config object.
func (b *BeaconChainConfig) Copy() *BeaconChainConfig {
	config := *b
	return &config
}
