package storage

import (
	"bytes"
	"sort"
	"strings"
	"sync"
)

// MemCachedStore is a wrapper around a persistent store that caches all
// changes made through it, to be flushed into the lower store in one batch
// with Persist. It is the transactionality primitive of the shard: every
// receipt executes on its own layer, which is either persisted (success) or
// dropped (fault).
type MemCachedStore struct {
	mut sync.RWMutex
	// mem holds the overlay changeset; a nil value marks a key deleted in
	// this layer.
	mem map[string][]byte
	// Persistent Store.
	ps Store
}

// NewMemCachedStore creates a new MemCachedStore object on top of the lower
// store.
func NewMemCachedStore(lower Store) *MemCachedStore {
	return &MemCachedStore{
		mem: make(map[string][]byte),
		ps:  lower,
	}
}

// Get implements the Store interface.
func (s *MemCachedStore) Get(key []byte) ([]byte, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()
	if val, ok := s.mem[string(key)]; ok {
		if val == nil {
			return nil, ErrKeyNotFound
		}
		return val, nil
	}
	return s.ps.Get(key)
}

// Put implements the Store interface. Value must not be nil (use Delete).
// Never returns an error.
func (s *MemCachedStore) Put(key, value []byte) error {
	s.mut.Lock()
	s.mem[string(key)] = value
	s.mut.Unlock()
	return nil
}

// Delete implements the Store interface. Never returns an error.
func (s *MemCachedStore) Delete(key []byte) error {
	s.mut.Lock()
	s.mem[string(key)] = nil
	s.mut.Unlock()
	return nil
}

// PutChangeSet implements the Store interface. Never returns an error.
func (s *MemCachedStore) PutChangeSet(puts map[string][]byte) error {
	s.mut.Lock()
	for k, v := range puts {
		s.mem[k] = v
	}
	s.mut.Unlock()
	return nil
}

// Seek implements the Store interface. Layer changes shadow the lower store:
// pairs deleted in this layer are not visited, pairs put in this layer are
// visited with their new values.
func (s *MemCachedStore) Seek(prefix []byte, f func(k, v []byte) bool) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	sp := string(prefix)
	overlay := make(map[string]bool)
	var list []KeyValue
	for k, v := range s.mem {
		if !strings.HasPrefix(k, sp) {
			continue
		}
		overlay[k] = true
		if v != nil {
			list = append(list, KeyValue{Key: []byte(k), Value: v})
		}
	}
	s.ps.Seek(prefix, func(k, v []byte) bool {
		if !overlay[string(k)] {
			list = append(list, KeyValue{Key: bytes.Clone(k), Value: bytes.Clone(v)})
		}
		return true
	})
	sort.Slice(list, func(i, j int) bool {
		return bytes.Compare(list[i].Key, list[j].Key) < 0
	})
	for _, kv := range list {
		if !f(kv.Key, kv.Value) {
			break
		}
	}
}

// Persist flushes the accumulated changeset into the lower store and resets
// it. It returns the number of keys flushed.
func (s *MemCachedStore) Persist() (int, error) {
	s.mut.Lock()
	defer s.mut.Unlock()

	n := len(s.mem)
	if n == 0 {
		return 0, nil
	}
	if err := s.ps.PutChangeSet(s.mem); err != nil {
		return 0, err
	}
	s.mem = make(map[string][]byte)
	return n, nil
}

// Close implements the Store interface: it drops the accumulated changeset
// and leaves the lower store open, layers do not own their backing store.
// Never returns an error.
func (s *MemCachedStore) Close() error {
	s.mut.Lock()
	s.mem = nil
	s.mut.Unlock()
	return nil
}
