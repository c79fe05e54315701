package txn

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/marmos91/mglock/pkg/lock"
)

var (
	ErrLabelInUse = errors.New("transaction label already in use")
	ErrNotFound   = errors.New("transaction not found")
)

// Registry tracks live transactions by id and label.
//
// Thread Safety: safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byID    map[lock.TxnID]*Txn
	byLabel map[string]*Txn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[lock.TxnID]*Txn),
		byLabel: make(map[string]*Txn),
	}
}

// Begin creates and registers a transaction. Labels must be unique among live
// transactions; an empty label is replaced by the generated id.
func (r *Registry) Begin(label string) (*Txn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if label != "" {
		if _, ok := r.byLabel[label]; ok {
			return nil, fmt.Errorf("%w: %s", ErrLabelInUse, label)
		}
	}
	t := New(label)
	r.byID[t.ID()] = t
	r.byLabel[t.Label()] = t
	return t, nil
}

// Get returns the transaction with the given id.
func (r *Registry) Get(id lock.TxnID) (*Txn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, nil
}

// ByLabel returns the transaction with the given label.
func (r *Registry) ByLabel(label string) (*Txn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byLabel[label]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, label)
	}
	return t, nil
}

// Remove forgets a transaction. Removing an unknown transaction is a no-op.
func (r *Registry) Remove(id lock.TxnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.byID[id]; ok {
		delete(r.byID, id)
		delete(r.byLabel, t.Label())
	}
}

// List returns all live transactions sorted by label.
func (r *Registry) List() []*Txn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Txn, 0, len(r.byID))
	for _, t := range r.byID {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *Txn) int { return cmp.Compare(a.Label(), b.Label()) })
	return out
}

// Len returns the number of live transactions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
