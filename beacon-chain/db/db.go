// Package db defines the ability to create a new database
// for the beacon node.
package db

import (
	"github.com/zephyrlabs/zephyr/beacon-chain/db/iface"
	"github.com/zephyrlabs/zephyr/beacon-chain/db/kv"
)

// Database defines the persistence contract of the beacon node.
type Database = iface.Database

// NewDB initializes a new database at the directory path specified.
func NewDB(dirPath string, config *kv.Config) (Database, error) {
	return kv.NewKVStore(dirPath, config)
}
