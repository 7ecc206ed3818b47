package storage

import (
	"errors"
	"fmt"

	"github.com/maexx393/mintgate/pkg/core/storage/dbconfig"
)

// KeyPrefix constants.
const (
	// STBalance is used for native account balances keyed by account id.
	STBalance KeyPrefix = 0x40
	// STContractID maps a contract account id to its int32 storage id.
	STContractID KeyPrefix = 0x51
	// STStorage is used for contract storage items, prefixed by the
	// little-endian int32 id of the owning contract.
	STStorage KeyPrefix = 0x70
	// SYSContractSeq holds the id allocation counter for STContractID.
	SYSContractSeq KeyPrefix = 0xc0
	// SYSVersion holds the storage scheme version.
	SYSVersion KeyPrefix = 0xf0
)

// ErrKeyNotFound is an error returned by Store implementations
// when a certain key is not found.
var ErrKeyNotFound = errors.New("key not found")

type (
	// Store is the underlying KV backend for the shard state. It is not
	// intended to be used directly, most of the time it is wrapped into a
	// MemCachedStore layer providing transactional semantics.
	Store interface {
		Get([]byte) ([]byte, error)
		Put(k, v []byte) error
		Delete(k []byte) error
		// PutChangeSet applies a prepared changeset in one batch. A nil
		// value marks the key for deletion.
		PutChangeSet(puts map[string][]byte) error
		// Seek visits all key-value pairs with the given key prefix in
		// ascending key order until f returns false. Key and value slices
		// are only valid until the next call to f.
		Seek(prefix []byte, f func(k, v []byte) bool)
		Close() error
	}

	// KeyPrefix is a constant byte added as a prefix for each key
	// stored.
	KeyPrefix uint8
)

// Bytes returns the bytes representation of KeyPrefix.
func (k KeyPrefix) Bytes() []byte {
	return []byte{byte(k)}
}

// AppendPrefix appends byteslice b to the given KeyPrefix.
func AppendPrefix(k KeyPrefix, b []byte) []byte {
	dest := make([]byte, len(b)+1)
	dest[0] = byte(k)
	copy(dest[1:], b)
	return dest
}

// NewStore creates a storage of the preselected in the configuration
// database type.
func NewStore(cfg dbconfig.DBConfiguration) (Store, error) {
	var store Store
	var err error
	switch cfg.Type {
	case dbconfig.LevelDB:
		store, err = NewLevelDBStore(cfg.LevelDBOptions)
	case dbconfig.InMemoryDB:
		store = NewMemoryStore()
	case dbconfig.BoltDB:
		store, err = NewBoltDBStore(cfg.BoltDBOptions)
	case dbconfig.BadgerDB:
		store, err = NewBadgerDBStore(cfg.BadgerDBOptions)
	default:
		return nil, fmt.Errorf("unknown storage: %s", cfg.Type)
	}
	return store, err
}
