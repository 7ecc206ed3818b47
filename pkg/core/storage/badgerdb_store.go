package storage

import (
	"errors"
	"os"

	"github.com/dgraph-io/badger/v3"
	"github.com/maexx393/mintgate/pkg/core/storage/dbconfig"
)

// BadgerDBStore is the BadgerDB storage implementation for storing and
// retrieving shard state.
type BadgerDBStore struct {
	db *badger.DB
}

// NewBadgerDBStore returns a new BadgerDBStore object that will
// initialize the database found at the given path.
func NewBadgerDBStore(cfg dbconfig.BadgerDBOptions) (*BadgerDBStore, error) {
	// BadgerDB isn't able to make nested directories.
	err := os.MkdirAll(cfg.Dir, os.ModePerm)
	if err != nil {
		return nil, err
	}
	opts := badger.DefaultOptions(cfg.Dir)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerDBStore{db: db}, nil
}

// Get implements the Store interface.
func (b *BadgerDBStore) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	return val, err
}

// Put implements the Store interface.
func (b *BadgerDBStore) Put(key, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete implements the Store interface.
func (b *BadgerDBStore) Delete(key []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// PutChangeSet implements the Store interface.
func (b *BadgerDBStore) PutChangeSet(puts map[string][]byte) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for k := range puts {
		var err error
		if puts[k] != nil {
			err = wb.Set([]byte(k), puts[k])
		} else {
			err = wb.Delete([]byte(k))
		}
		if err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Seek implements the Store interface.
func (b *BadgerDBStore) Seek(prefix []byte, f func(k, v []byte) bool) {
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   badger.DefaultIteratorOptions.PrefetchSize,
			Prefix:         prefix,
		})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !f(item.Key(), v) {
				break
			}
		}
		return nil
	})
	if err != nil {
		panic(err)
	}
}

// Close releases all db resources.
func (b *BadgerDBStore) Close() error {
	return b.db.Close()
}
