package lock

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/marmos91/mglock/internal/logger"
)

// now is replaced in tests that need deterministic timestamps.
var now = time.Now

// errInvalidRequest is returned for nil arguments and unknown lock modes.
var errInvalidRequest = errors.New("lock: invalid request")

// WakeCallback is invoked for every queued request granted by promotion. It
// runs after the manager's mutex has been released, so it may call back into
// the manager.
type WakeCallback func(txn Transaction, res Resource, mode LockType)

// ManagerStats contains statistics about the lock manager state.
type ManagerStats struct {
	// Resources is the number of resources with lock state.
	Resources int `json:"resources" yaml:"resources"`

	// Owners is the total number of granted lock records.
	Owners int `json:"owners" yaml:"owners"`

	// Waiters is the total number of queued requests.
	Waiters int `json:"waiters" yaml:"waiters"`

	// WakeCallbacks is the number of registered wake callbacks.
	WakeCallbacks int `json:"wake_callbacks" yaml:"wake_callbacks"`
}

// StateSnapshot is a point-in-time copy of one resource's lock state.
type StateSnapshot struct {
	Resource ResourceKey
	Kind     ResourceKind
	Owners   []Request
	Waiters  []Request
}

// Manager is a multi-granularity lock manager.
//
// Thread Safety:
// All methods are safe for concurrent use. Every public operation runs under
// a single mutex, so acquires and releases never interleave their mutations.
// The manager itself never blocks a caller; see package txn for a scheduler
// that does.
type Manager struct {
	mu        managerMutex
	hierarchy Hierarchy
	config    Config
	metrics   *Metrics

	states    map[ResourceKey]*resourceState
	callbacks []WakeCallback
}

// NewManager creates a Manager with the default configuration and no metrics.
// The hierarchy resolves the pages of a table when a table lock is released;
// if nil, pages are found among the resources the manager already tracks.
func NewManager(h Hierarchy) *Manager {
	return NewManagerWithOptions(h, DefaultConfig(), nil)
}

// NewManagerWithOptions creates a Manager with an explicit configuration and
// optional metrics (nil disables them).
func NewManagerWithOptions(h Hierarchy, cfg Config, metrics *Metrics) *Manager {
	return &Manager{
		hierarchy: h,
		config:    cfg,
		metrics:   metrics,
		states:    make(map[ResourceKey]*resourceState),
	}
}

// Config returns the manager's configuration.
func (m *Manager) Config() Config {
	return m.config
}

// RegisterWakeCallback adds a callback invoked for every request granted by
// promotion.
func (m *Manager) RegisterWakeCallback(cb WakeCallback) {
	if cb == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// ============================================================================
// Acquire
// ============================================================================

// Acquire requests a lock of the given mode on res for txn.
//
// The request is checked against the protocol rules first; a violation is
// returned as an *Error and leaves all state untouched. A valid request is
// either granted at once or, if it conflicts with the current owners, queued
// after putting txn to sleep. Upgrades (S held, X requested) are queued ahead
// of all other waiters, behind earlier upgrades; everything else at the tail.
func (m *Manager) Acquire(txn Transaction, res Resource, mode LockType) (Outcome, error) {
	if txn == nil || res == nil || !mode.valid() {
		return 0, fmt.Errorf("%w: txn=%v resource=%v mode=%s", errInvalidRequest, txn, res, mode)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, key := txn.ID(), res.Key()

	if err := m.validateAcquire(txn, res, mode); err != nil {
		m.metrics.ObserveRejected(err.Code, true, res.Kind(), mode)
		logger.Debug("lock request rejected",
			logger.Txn(id), logger.Resource(key), logger.Mode(mode), logger.ErrorCode(err.Code))
		return 0, err
	}

	state := m.states[key]
	if state == nil {
		state = newResourceState(res)
		m.states[key] = state
	}

	if state.compatibleWith(id, mode) {
		state.grant(Request{Txn: txn, Mode: mode, Since: now()})
		m.observeAcquire(res, mode, Granted)
		logger.Debug("lock granted",
			logger.Txn(id), logger.Resource(key), logger.Mode(mode), logger.Owners(len(state.owners)))
		return Granted, nil
	}

	upgrade := m.isUpgradeLocked(id, key, mode)
	txn.Sleep()
	state.enqueue(Request{Txn: txn, Mode: mode, Since: now(), Upgrade: upgrade})
	m.observeAcquire(res, mode, Queued)
	logger.Debug("lock queued",
		logger.Txn(id), logger.Resource(key), logger.Mode(mode),
		logger.Upgrade(upgrade), logger.Waiters(len(state.waiters)))
	return Queued, nil
}

// validateAcquire runs the acquire checks in order. It never mutates state.
func (m *Manager) validateAcquire(txn Transaction, res Resource, mode LockType) *Error {
	id, key := txn.ID(), res.Key()

	if m.holdsLocked(id, key, mode) {
		return NewDuplicateLockRequestError(id, key, mode)
	}
	if m.isDowngradeLocked(id, key, mode) {
		return NewDowngradeNotAllowedError(id, key, mode)
	}
	if txn.Status() == StatusWaiting {
		return NewBlockedTransactionError(id, key)
	}
	if res.Kind() != KindPage {
		return nil
	}
	if mode.IsIntent() {
		return NewInvalidIntentLockTargetError(id, key, mode)
	}

	table := res.Parent()
	owner := TxnID("")
	if m.config.StrictIntentCheck {
		owner = id
	}
	if state := m.states[table]; table == "" || state == nil || !state.hasIntentOwner(owner) {
		return NewMissingAncestorIntentLockError(id, key, table, mode)
	}
	return nil
}

// ============================================================================
// Release
// ============================================================================

// Release drops every lock txn owns on res and then grants queued requests
// from the head of res's queue while they are compatible.
func (m *Manager) Release(txn Transaction, res Resource) error {
	if txn == nil || res == nil {
		return fmt.Errorf("%w: txn=%v resource=%v", errInvalidRequest, txn, res)
	}

	m.mu.Lock()
	woken, err := m.releaseLocked(txn, res.Key())
	m.publishStateLocked()
	callbacks := m.callbacks
	m.mu.Unlock()

	if err != nil {
		return err
	}
	dispatchWake(callbacks, woken)
	return nil
}

// ReleaseAll releases every lock txn owns, pages first, then tables, then the
// database, promoting waiters after each release. It returns the number of
// resources released.
func (m *Manager) ReleaseAll(txn Transaction) (int, error) {
	if txn == nil {
		return 0, fmt.Errorf("%w: nil transaction", errInvalidRequest)
	}

	m.mu.Lock()
	id := txn.ID()
	if txn.Status() == StatusWaiting {
		m.mu.Unlock()
		err := NewBlockedTransactionError(id, "")
		m.metrics.ObserveRejected(err.Code, false, KindDatabase, 0)
		return 0, err
	}

	// One entry per resource, deepest level first.
	var keys []ResourceKey
	for _, h := range m.heldByLocked(id) {
		if !slices.Contains(keys, h.Resource) {
			keys = append(keys, h.Resource)
		}
	}
	slices.SortStableFunc(keys, func(a, b ResourceKey) int {
		return cmp.Compare(m.states[b].resource.Kind(), m.states[a].resource.Kind())
	})

	var (
		woken    []promotion
		released int
		firstErr error
	)
	for _, key := range keys {
		w, err := m.releaseLocked(txn, key)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		released++
		woken = append(woken, w...)
	}
	m.publishStateLocked()
	callbacks := m.callbacks
	m.mu.Unlock()

	dispatchWake(callbacks, woken)
	logger.Debug("released all locks", logger.Txn(id), logger.Released(released))
	return released, firstErr
}

// promotion is a request granted from a queue, kept for callback dispatch.
type promotion struct {
	state *resourceState
	req   Request
}

func (m *Manager) releaseLocked(txn Transaction, key ResourceKey) ([]promotion, error) {
	id := txn.ID()

	if txn.Status() == StatusWaiting {
		return nil, m.reject(NewBlockedTransactionError(id, key))
	}

	state := m.states[key]
	if state == nil || !state.ownedBy(id) {
		return nil, m.reject(NewNoSuchHeldLockError(id, key))
	}

	if state.resource.Kind() == KindTable {
		for _, page := range m.pagesOf(key) {
			if ps := m.states[page]; ps != nil && ps.ownedBy(id) {
				return nil, m.reject(NewDescendantLocksRemainError(id, key, page))
			}
		}
	}

	state.removeOwner(id)
	m.metrics.ObserveRelease(state.resource.Kind())

	granted := state.promote()
	woken := make([]promotion, 0, len(granted))
	at := now()
	for _, req := range granted {
		m.metrics.ObservePromotion(req.Mode, at.Sub(req.Since))
		woken = append(woken, promotion{state: state, req: req})
	}

	logger.Debug("lock released",
		logger.Txn(id), logger.Resource(key),
		logger.Promoted(len(granted)), logger.Waiters(len(state.waiters)))

	if m.config.PruneIdleState && state.idle() {
		delete(m.states, key)
	}
	return woken, nil
}

func (m *Manager) reject(err *Error) *Error {
	kind := KindDatabase
	if s := m.states[err.Resource]; s != nil {
		kind = s.resource.Kind()
	}
	m.metrics.ObserveRejected(err.Code, false, kind, 0)
	logger.Debug("lock release rejected",
		logger.Txn(err.Txn), logger.Resource(err.Resource), logger.ErrorCode(err.Code))
	return err
}

// pagesOf returns the pages of a table, from the hierarchy when there is one
// and otherwise from the tracked resources whose parent is the table.
func (m *Manager) pagesOf(table ResourceKey) []ResourceKey {
	if m.hierarchy != nil {
		return m.hierarchy.Pages(table)
	}
	var pages []ResourceKey
	for key, s := range m.states {
		if s.resource.Kind() == KindPage && s.resource.Parent() == table {
			pages = append(pages, key)
		}
	}
	return pages
}

func dispatchWake(callbacks []WakeCallback, woken []promotion) {
	if len(callbacks) == 0 {
		return
	}
	for _, w := range woken {
		for _, cb := range callbacks {
			cb(w.req.Txn, w.state.resource, w.req.Mode)
		}
	}
}

// ============================================================================
// Queries
// ============================================================================

// Holds reports whether txn owns a lock of exactly mode on res.
func (m *Manager) Holds(txn Transaction, res Resource, mode LockType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holdsLocked(txn.ID(), res.Key(), mode)
}

// IsDowngrade reports whether requesting mode on res would weaken a lock txn
// already holds: S over a held X, or IS over a held IX.
func (m *Manager) IsDowngrade(txn Transaction, res Resource, mode LockType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isDowngradeLocked(txn.ID(), res.Key(), mode)
}

// IsUpgrade reports whether requesting mode on res would strengthen a held
// S lock to X.
func (m *Manager) IsUpgrade(txn Transaction, res Resource, mode LockType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isUpgradeLocked(txn.ID(), res.Key(), mode)
}

func (m *Manager) holdsLocked(id TxnID, key ResourceKey, mode LockType) bool {
	s := m.states[key]
	return s != nil && s.holds(id, mode)
}

func (m *Manager) isDowngradeLocked(id TxnID, key ResourceKey, mode LockType) bool {
	switch mode {
	case Shared:
		return m.holdsLocked(id, key, Exclusive)
	case IntentShared:
		return m.holdsLocked(id, key, IntentExclusive)
	default:
		return false
	}
}

func (m *Manager) isUpgradeLocked(id TxnID, key ResourceKey, mode LockType) bool {
	return mode == Exclusive && m.holdsLocked(id, key, Shared)
}

// Owners returns a copy of the granted records on a resource.
func (m *Manager) Owners(key ResourceKey) []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.states[key]; s != nil {
		return slices.Clone(s.owners)
	}
	return nil
}

// Waiters returns a copy of the queued requests on a resource, head first.
func (m *Manager) Waiters(key ResourceKey) []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.states[key]; s != nil {
		return slices.Clone(s.waiters)
	}
	return nil
}

// HeldBy returns every lock txn owns, sorted by resource key and mode.
func (m *Manager) HeldBy(txn TxnID) []Holding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heldByLocked(txn)
}

func (m *Manager) heldByLocked(txn TxnID) []Holding {
	var held []Holding
	for key, s := range m.states {
		for _, o := range s.owners {
			if o.Txn.ID() == txn {
				held = append(held, Holding{Resource: key, Kind: s.resource.Kind(), Mode: o.Mode})
			}
		}
	}
	slices.SortFunc(held, func(a, b Holding) int {
		return cmp.Or(cmp.Compare(a.Resource, b.Resource), cmp.Compare(a.Mode, b.Mode))
	})
	return held
}

// Snapshot returns a copy of every tracked resource's state sorted by key.
func (m *Manager) Snapshot() []StateSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]StateSnapshot, 0, len(m.states))
	for key, s := range m.states {
		out = append(out, StateSnapshot{
			Resource: key,
			Kind:     s.resource.Kind(),
			Owners:   slices.Clone(s.owners),
			Waiters:  slices.Clone(s.waiters),
		})
	}
	slices.SortFunc(out, func(a, b StateSnapshot) int {
		return cmp.Compare(a.Resource, b.Resource)
	})
	return out
}

// Stats returns current lock manager statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsLocked()
}

func (m *Manager) statsLocked() ManagerStats {
	stats := ManagerStats{
		Resources:     len(m.states),
		WakeCallbacks: len(m.callbacks),
	}
	for _, s := range m.states {
		stats.Owners += len(s.owners)
		stats.Waiters += len(s.waiters)
	}
	return stats
}

// Prune drops the state of resources with no owners and no waiters and
// returns how many were dropped.
func (m *Manager) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	pruned := 0
	for key, s := range m.states {
		if s.idle() {
			delete(m.states, key)
			pruned++
		}
	}
	if pruned > 0 {
		logger.Debug("pruned idle lock state", logger.KeyResources, pruned)
		m.publishStateLocked()
	}
	return pruned
}

func (m *Manager) observeAcquire(res Resource, mode LockType, outcome Outcome) {
	if m.metrics == nil {
		return
	}
	m.metrics.ObserveAcquire(res.Kind(), mode, outcome)
	m.publishStateLocked()
}

func (m *Manager) publishStateLocked() {
	if m.metrics == nil {
		return
	}
	m.metrics.SetState(m.statsLocked())
}
