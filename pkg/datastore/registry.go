package datastore

import (
	"sort"
	"sync"
)

// StoreRegistry is the default Registry implementation: a fixed mapping
// from data types to entity stores, assembled at wiring time.
type StoreRegistry struct {
	mu     sync.RWMutex
	stores map[DataType]EntityStore
}

// NewStoreRegistry creates an empty registry.
func NewStoreRegistry() *StoreRegistry {
	return &StoreRegistry{
		stores: make(map[DataType]EntityStore),
	}
}

// Register binds a data type to its entity store. Registering the same
// type twice replaces the previous binding.
func (r *StoreRegistry) Register(dataType DataType, store EntityStore) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stores[dataType] = store
}

// Store returns the entity store for the data type.
func (r *StoreRegistry) Store(dataType DataType) (EntityStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	store, ok := r.stores[dataType]
	if !ok {
		return nil, NewUnknownDataTypeError(dataType)
	}
	return store, nil
}

// DataTypes returns the registered data types in sorted order.
func (r *StoreRegistry) DataTypes() []DataType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]DataType, 0, len(r.stores))
	for dt := range r.stores {
		types = append(types, dt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Close closes every registered store. The first error is returned; the
// remaining stores are still closed.
func (r *StoreRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, store := range r.stores {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.stores = make(map[DataType]EntityStore)

	return firstErr
}
