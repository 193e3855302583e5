package types

// DepositsFromBlock carries the deposits the Eth1 follower observed in a
// single execution-layer block, together with the log window they came from.
// Records are idempotent on re-delivery, keyed by FirstIndex.
type DepositsFromBlock struct {
	FirstIndex  uint64
	Count       uint64
	BlockHash   []byte `ssz-size:"32"`
	BlockNumber uint64
	Deposits    []*Deposit `ssz-max:"2048"`
}

// MinGenesisTimeBlock marks the first execution-layer block whose timestamp
// reaches the minimum genesis time, the trigger for genesis synthesis.
type MinGenesisTimeBlock struct {
	Timestamp   uint64
	BlockHash   []byte `ssz-size:"32"`
	BlockNumber uint64
}
