package lock

import (
	"fmt"
	"strings"
	"time"
)

// LockType is a multi-granularity lock mode.
type LockType int

const (
	// IntentShared (IS) announces shared locks on descendants.
	IntentShared LockType = iota

	// IntentExclusive (IX) announces exclusive locks on descendants.
	IntentExclusive

	// Shared (S) is a read lock on the resource.
	Shared

	// Exclusive (X) is a write lock on the resource.
	Exclusive
)

// AllLockTypes lists every mode in matrix order.
var AllLockTypes = []LockType{IntentShared, IntentExclusive, Shared, Exclusive}

// String returns the conventional short name of the mode.
func (lt LockType) String() string {
	switch lt {
	case IntentShared:
		return "IS"
	case IntentExclusive:
		return "IX"
	case Shared:
		return "S"
	case Exclusive:
		return "X"
	default:
		return fmt.Sprintf("LockType(%d)", int(lt))
	}
}

// IsIntent reports whether the mode is IS or IX.
func (lt LockType) IsIntent() bool {
	return lt == IntentShared || lt == IntentExclusive
}

// ParseLockType parses IS, IX, S or X (case-insensitive).
func ParseLockType(s string) (LockType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "IS":
		return IntentShared, nil
	case "IX":
		return IntentExclusive, nil
	case "S":
		return Shared, nil
	case "X":
		return Exclusive, nil
	default:
		return 0, fmt.Errorf("invalid lock type %q (valid: IS, IX, S, X)", s)
	}
}

// compatibility[held][requested]
var compatibility = [4][4]bool{
	//                IS     IX     S      X
	IntentShared:    {true, true, true, false},
	IntentExclusive: {true, true, false, false},
	Shared:          {true, false, true, false},
	Exclusive:       {false, false, false, false},
}

// Compatible reports whether a lock of mode requested may coexist with a lock
// of mode held owned by a different transaction.
func Compatible(held, requested LockType) bool {
	if !held.valid() || !requested.valid() {
		return false
	}
	return compatibility[held][requested]
}

func (lt LockType) valid() bool {
	return lt >= IntentShared && lt <= Exclusive
}

// ============================================================================
// Resources
// ============================================================================

// ResourceKind tags the level of a resource in the hierarchy.
type ResourceKind int

const (
	// KindDatabase is the implicit root.
	KindDatabase ResourceKind = iota

	// KindTable is a non-leaf resource owning pages.
	KindTable

	// KindPage is a leaf resource owned by exactly one table.
	KindPage
)

// String returns a human-readable name for the kind.
func (k ResourceKind) String() string {
	switch k {
	case KindDatabase:
		return "database"
	case KindTable:
		return "table"
	case KindPage:
		return "page"
	default:
		return "unknown"
	}
}

// ResourceKey is the identity of a resource. Two resources with equal keys
// are the same resource as far as the manager is concerned.
type ResourceKey string

// Resource is a lockable object. Ownership of resources stays with the caller;
// the manager only keeps the values it was handed.
type Resource interface {
	// Key returns the stable identity of the resource.
	Key() ResourceKey

	// Kind returns the hierarchy level of the resource.
	Kind() ResourceKind

	// Parent returns the key of the owning table for a page, and the empty
	// key for tables and the database.
	Parent() ResourceKey
}

// Hierarchy resolves descendants of a table. It is the external resolution
// table for the Page→Table relation.
type Hierarchy interface {
	// Pages returns the keys of every page belonging to the table.
	Pages(table ResourceKey) []ResourceKey
}

// ============================================================================
// Transactions
// ============================================================================

// TxnID is the identity of a transaction.
type TxnID string

// Status is the scheduling state of a transaction.
type Status int

const (
	// StatusRunning means the transaction may issue requests.
	StatusRunning Status = iota

	// StatusWaiting means the transaction has a queued request.
	StatusWaiting
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusWaiting:
		return "waiting"
	default:
		return "unknown"
	}
}

// Transaction is the view of a transaction the manager depends on.
//
// Sleep and Wake only flip the status; actual suspension of the caller is the
// responsibility of whoever embeds the manager.
type Transaction interface {
	ID() TxnID
	Status() Status
	Sleep()
	Wake()
}

// ============================================================================
// Requests
// ============================================================================

// Request is a (transaction, mode) pair, used both for granted owner records
// and for queued requests.
type Request struct {
	Txn  Transaction
	Mode LockType

	// Since is when the record was created: grant time for owners, enqueue
	// time for waiters.
	Since time.Time

	// Upgrade marks a queued S→X request. Always false for owner records.
	Upgrade bool
}

// Equal reports whether both requests are for the same transaction and mode.
func (r Request) Equal(other Request) bool {
	return r.Txn.ID() == other.Txn.ID() && r.Mode == other.Mode
}

// String implements fmt.Stringer.
func (r Request) String() string {
	return fmt.Sprintf("Request(txn=%s, mode=%s)", r.Txn.ID(), r.Mode)
}

// Outcome is the result of an accepted acquire.
type Outcome int

const (
	// Granted means the caller now owns the lock.
	Granted Outcome = iota

	// Queued means the request waits in the resource's queue and the
	// transaction has been put to sleep.
	Queued
)

// String returns a human-readable name for the outcome.
func (o Outcome) String() string {
	switch o {
	case Granted:
		return "granted"
	case Queued:
		return "queued"
	default:
		return "unknown"
	}
}

// Holding is one lock owned by a transaction.
type Holding struct {
	Resource ResourceKey
	Kind     ResourceKind
	Mode     LockType
}
