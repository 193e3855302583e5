// Package kv implements the beacon node database on top of BoltDB, split
// into a hot keyspace for non-finalized data and a finalized keyspace that
// grows only at checkpoint advancement.
package kv

import (
	"os"
	"path"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prysmaticlabs/prombbolt"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/zephyrlabs/zephyr/beacon-chain/db/iface"
)

var log = logrus.WithField("prefix", "db")

const databaseFileName = "beaconchain.db"

// Config for the bolt store.
type Config struct {
	Mode iface.StorageMode
}

// Store defines an implementation of the beacon node Database interface
// using BoltDB as the underlying persistent kv-store.
type Store struct {
	db           *bolt.DB
	databasePath string
	mode         iface.StorageMode
}

// NewKVStore initializes a new boltDB key-value store at the directory
// path specified, creates the kv-buckets based on the schema, and stores
// an open connection db object as a property of the Store struct.
func NewKVStore(dirPath string, config *Config) (*Store, error) {
	if err := os.MkdirAll(dirPath, 0700); err != nil {
		return nil, err
	}
	datafile := path.Join(dirPath, databaseFileName)
	boltDB, err := bolt.Open(datafile, 0600, &bolt.Options{Timeout: 1 * time.Second, InitialMmapSize: 10e6})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, errors.New("cannot obtain database lock, database may be in use by another process")
		}
		return nil, err
	}

	kv := &Store{
		db:           boltDB,
		databasePath: dirPath,
		mode:         config.Mode,
	}

	if err := kv.db.Update(func(tx *bolt.Tx) error {
		return createBuckets(
			tx,
			hotBlocksBucket,
			hotStatesBucket,
			checkpointStatesBucket,
			finalizedBlocksBucket,
			finalizedBlockSlotIndexBucket,
			finalizedStatesBucket,
			chainMetadataBucket,
			depositsFromBlockBucket,
		)
	}); err != nil {
		return nil, err
	}

	if info, err := os.Stat(datafile); err == nil {
		log.WithField("path", datafile).WithField("size", humanize.Bytes(uint64(info.Size()))).Info("Opened beacon chain database")
	}

	if err := prometheus.Register(prombolt.New("boltDB", boltDB)); err != nil {
		log.WithError(err).Debug("Could not register prometheus collector for bolt")
	}

	return kv, nil
}

func createBuckets(tx *bolt.Tx, buckets ...[]byte) error {
	for _, bucket := range buckets {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DatabasePath at which this database writes files.
func (s *Store) DatabasePath() string {
	return s.databasePath
}

// ClearDB removes the database file from the filesystem.
func (s *Store) ClearDB() error {
	datafile := path.Join(s.databasePath, databaseFileName)
	if _, err := os.Stat(datafile); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(datafile)
}
