package types

// Validator is the registry view of a single staker.
type Validator struct {
	Pubkey                     []byte `ssz-size:"48"`
	WithdrawalCredentials      []byte `ssz-size:"32"`
	EffectiveBalance           uint64
	Slashed                    bool
	ActivationEligibilityEpoch Epoch
	ActivationEpoch            Epoch
	ExitEpoch                  Epoch
	WithdrawableEpoch          Epoch
}

// BeaconState is the post-state of applying a block. Only the fields the
// control plane consults are modeled; the full registry bookkeeping lives in
// the state-transition function consumed as a collaborator.
type BeaconState struct {
	GenesisTime           uint64
	GenesisValidatorsRoot []byte `ssz-size:"32"`
	Slot                  Slot
	LatestBlockHeader     *BeaconBlockHeader
	Eth1Data              *Eth1Data
	Eth1DataVotes         []*Eth1Data `ssz-max:"2048"`
	Eth1DepositIndex      uint64
	Validators            []*Validator `ssz-max:"1099511627776"`
	Balances              []uint64     `ssz-max:"1099511627776"`
	CurrentJustified      *Checkpoint
	Finalized             *Checkpoint
}

// BlockAndState ships a block together with its post-state to avoid
// recomputing the transition.
type BlockAndState struct {
	Block *SignedBeaconBlock
	State *BeaconState
}
