package types

// Checkpoint is a pair of epoch and the root of the first block of that epoch,
// or of an earlier block when the epoch boundary slot is empty. Checkpoints
// anchor the justified and finalized views of the chain.
type Checkpoint struct {
	Epoch Epoch
	Root  []byte `ssz-size:"32"`
}

// CheckpointKey is the comparable form of a checkpoint used as a map key.
type CheckpointKey struct {
	Epoch Epoch
	Root  [32]byte
}

// Key returns the comparable form of c.
func (c *Checkpoint) Key() CheckpointKey {
	var r [32]byte
	copy(r[:], c.Root)
	return CheckpointKey{Epoch: c.Epoch, Root: r}
}

// CopyCheckpoint returns a deep copy of the checkpoint.
func CopyCheckpoint(c *Checkpoint) *Checkpoint {
	if c == nil {
		return nil
	}
	root := make([]byte, len(c.Root))
	copy(root, c.Root)
	return &Checkpoint{Epoch: c.Epoch, Root: root}
}
