package kv

import (
	"context"

	"go.opencensus.io/trace"
	bolt "go.etcd.io/bbolt"

	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared/bytesutil"
)

// SaveDepositsFromBlock appends a follower record to the deposit stream.
// Records are keyed by their first deposit index, so a re-delivered record
// overwrites its identical predecessor and the stream stays idempotent.
func (s *Store) SaveDepositsFromBlock(ctx context.Context, record *types.DepositsFromBlock) error {
	_, span := trace.StartSpan(ctx, "db.SaveDepositsFromBlock")
	defer span.End()
	enc, err := encode(record)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		key := bytesutil.Uint64ToBytesBigEndian(record.FirstIndex)
		return tx.Bucket(depositsFromBlockBucket).Put(key, enc)
	})
}

// DepositsFromBlockStream reads the whole deposit stream in index order.
func (s *Store) DepositsFromBlockStream(ctx context.Context) ([]*types.DepositsFromBlock, error) {
	_, span := trace.StartSpan(ctx, "db.DepositsFromBlockStream")
	defer span.End()
	var records []*types.DepositsFromBlock
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(depositsFromBlockBucket).ForEach(func(_, v []byte) error {
			record := &types.DepositsFromBlock{}
			if err := decode(v, record); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	return records, err
}

// SaveMinGenesisTimeBlock persists the genesis trigger block singleton.
func (s *Store) SaveMinGenesisTimeBlock(ctx context.Context, block *types.MinGenesisTimeBlock) error {
	_, span := trace.StartSpan(ctx, "db.SaveMinGenesisTimeBlock")
	defer span.End()
	enc, err := encode(block)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(chainMetadataBucket).Put(minGenesisTimeBlockKey, enc)
	})
}

// MinGenesisTimeBlock retrieves the genesis trigger block singleton, nil when
// the follower has not reported one yet.
func (s *Store) MinGenesisTimeBlock(ctx context.Context) (*types.MinGenesisTimeBlock, error) {
	_, span := trace.StartSpan(ctx, "db.MinGenesisTimeBlock")
	defer span.End()
	var block *types.MinGenesisTimeBlock
	err := s.db.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(chainMetadataBucket).Get(minGenesisTimeBlockKey)
		if enc == nil {
			return nil
		}
		block = &types.MinGenesisTimeBlock{}
		return decode(enc, block)
	})
	return block, err
}
