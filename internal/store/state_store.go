package store

import (
	"sort"
	"sync"

	dbm "github.com/tendermint/tm-db"

	"github.com/chaincore/chaincore/internal/processor"
)

var _ processor.StateStore = (*StateStore)(nil)

// StateStore buffers state mutations over the committed state. Reads see the
// buffered writes first. Nothing reaches the database until the scope is
// passed to ChainStore.Save or ChainStore.Remove.
type StateStore struct {
	db dbm.DB

	mtx sync.RWMutex
	// a nil value marks a deletion
	writes map[string][]byte
}

func newStateStore(db dbm.DB) *StateStore {
	return &StateStore{
		db:     db,
		writes: make(map[string][]byte),
	}
}

// Get returns the value of key, or nil if it is unset.
func (ss *StateStore) Get(key []byte) ([]byte, error) {
	ss.mtx.RLock()
	value, ok := ss.writes[string(key)]
	ss.mtx.RUnlock()
	if ok {
		if value == nil {
			return nil, nil
		}
		cp := make([]byte, len(value))
		copy(cp, value)
		return cp, nil
	}
	return ss.db.Get(stateKey(key))
}

// Set buffers key = value.
func (ss *StateStore) Set(key, value []byte) error {
	ss.mtx.Lock()
	defer ss.mtx.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	ss.writes[string(key)] = cp
	return nil
}

// Delete buffers the removal of key.
func (ss *StateStore) Delete(key []byte) error {
	ss.mtx.Lock()
	defer ss.mtx.Unlock()
	ss.writes[string(key)] = nil
	return nil
}

// writeTo adds the buffered mutations to batch in key order.
func (ss *StateStore) writeTo(batch dbm.Batch) error {
	ss.mtx.RLock()
	defer ss.mtx.RUnlock()

	keys := make([]string, 0, len(ss.writes))
	for k := range ss.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		value := ss.writes[k]
		var err error
		if value == nil {
			err = batch.Delete(stateKey([]byte(k)))
		} else {
			err = batch.Set(stateKey([]byte(k)), value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
