package kv

// The schema defines how the store is laid out across bolt buckets. Hot data
// lives in per-kind buckets keyed by root, the finalized keyspace keeps an
// additional slot index for range reads, and chain-wide singletons share one
// metadata bucket.
var (
	// Hot keyspace.
	hotBlocksBucket        = []byte("hot-blocks")
	hotStatesBucket        = []byte("hot-states")
	checkpointStatesBucket = []byte("checkpoint-states")

	// Finalized keyspace.
	finalizedBlocksBucket         = []byte("finalized-blocks")
	finalizedBlockSlotIndexBucket = []byte("finalized-block-slot-indices")
	finalizedStatesBucket         = []byte("finalized-states")

	// Singletons.
	chainMetadataBucket = []byte("chain-metadata")

	// Append-only stream of deposits observed by the Eth1 follower.
	depositsFromBlockBucket = []byte("deposits-from-block")

	// Metadata keys.
	genesisTimeKey             = []byte("genesis-time")
	storeTimeKey               = []byte("store-time")
	justifiedCheckpointKey     = []byte("justified-checkpoint")
	bestJustifiedCheckpointKey = []byte("best-justified-checkpoint")
	finalizedCheckpointKey     = []byte("finalized-checkpoint")
	minGenesisTimeBlockKey     = []byte("min-genesis-time-block")
)
