// Package txn provides transactions that can actually block on the lock
// manager. A lock.Manager only flips a transaction's status when it queues or
// grants a request; Txn turns that status flip into a channel the caller can
// wait on, and Scheduler wraps the acquire/wait loop.
package txn

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/mglock/pkg/lock"
)

// closedChan is returned by WakeC for running transactions.
var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Txn is a lock.Transaction with a wake signal.
//
// Thread Safety: safe for concurrent use.
type Txn struct {
	id      lock.TxnID
	label   string
	started time.Time

	mu     sync.Mutex
	status lock.Status
	wake   chan struct{}
	sleeps int
}

// New creates a running transaction with a random UUID identity. The label
// is a human-readable name used in logs and reports; it defaults to the id.
func New(label string) *Txn {
	return NewWithID(lock.TxnID(uuid.NewString()), label)
}

// NewWithID creates a running transaction with a fixed identity.
func NewWithID(id lock.TxnID, label string) *Txn {
	if label == "" {
		label = string(id)
	}
	return &Txn{
		id:      id,
		label:   label,
		started: time.Now(),
		status:  lock.StatusRunning,
	}
}

// ID implements lock.Transaction.
func (t *Txn) ID() lock.TxnID { return t.id }

// Label returns the human-readable name.
func (t *Txn) Label() string { return t.label }

// Started returns when the transaction was created.
func (t *Txn) Started() time.Time { return t.started }

// Status implements lock.Transaction.
func (t *Txn) Status() lock.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Sleep implements lock.Transaction. It arms a fresh wake signal. Calling it
// on a waiting transaction is a no-op.
func (t *Txn) Sleep() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == lock.StatusWaiting {
		return
	}
	t.status = lock.StatusWaiting
	t.wake = make(chan struct{})
	t.sleeps++
}

// Wake implements lock.Transaction. It fires the wake signal armed by Sleep.
func (t *Txn) Wake() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != lock.StatusWaiting {
		return
	}
	t.status = lock.StatusRunning
	close(t.wake)
	t.wake = nil
}

// WakeC returns a channel closed when the transaction is next woken. For a
// running transaction the channel is already closed.
func (t *Txn) WakeC() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != lock.StatusWaiting {
		return closedChan
	}
	return t.wake
}

// Waits returns how many times the transaction has been put to sleep.
func (t *Txn) Waits() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sleeps
}

// String implements fmt.Stringer.
func (t *Txn) String() string {
	if t.label == string(t.id) {
		return t.label
	}
	return t.label + "(" + string(t.id) + ")"
}

var _ lock.Transaction = (*Txn)(nil)
