package txn

import (
	"context"
	"fmt"

	"github.com/marmos91/mglock/internal/logger"
	"github.com/marmos91/mglock/pkg/lock"
)

// Scheduler runs transactions against a lock manager, blocking callers whose
// requests are queued until the manager grants them.
type Scheduler struct {
	manager  *lock.Manager
	registry *Registry
}

// NewScheduler creates a scheduler over the given manager. A nil registry
// gets a fresh one.
func NewScheduler(m *lock.Manager, reg *Registry) *Scheduler {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Scheduler{manager: m, registry: reg}
}

// Manager returns the underlying lock manager.
func (s *Scheduler) Manager() *lock.Manager { return s.manager }

// Registry returns the transaction registry.
func (s *Scheduler) Registry() *Registry { return s.registry }

// Begin starts a transaction.
func (s *Scheduler) Begin(label string) (*Txn, error) {
	return s.registry.Begin(label)
}

// Lock acquires mode on res for t, blocking until the lock is granted or ctx
// is done. Protocol violations are returned as *lock.Error.
//
// If ctx ends first, ctx.Err() is returned and the request stays queued: the
// manager has no way to withdraw it. The transaction remains waiting until a
// release promotes it; use Wait to block on that again.
func (s *Scheduler) Lock(ctx context.Context, t *Txn, res lock.Resource, mode lock.LockType) error {
	out, err := s.manager.Acquire(t, res, mode)
	if err != nil {
		return fmt.Errorf("lock %s %s: %w", mode, res.Key(), err)
	}
	if out == lock.Granted {
		return nil
	}

	logger.DebugCtx(ctx, "waiting for lock",
		logger.Txn(t.ID()), logger.Resource(res.Key()), logger.Mode(mode))
	return s.Wait(ctx, t)
}

// Wait blocks until t is running or ctx is done.
func (s *Scheduler) Wait(ctx context.Context, t *Txn) error {
	select {
	case <-t.WakeC():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock releases t's locks on res.
func (s *Scheduler) Unlock(t *Txn, res lock.Resource) error {
	if err := s.manager.Release(t, res); err != nil {
		return fmt.Errorf("unlock %s: %w", res.Key(), err)
	}
	return nil
}

// Commit releases every lock t holds and forgets the transaction.
func (s *Scheduler) Commit(t *Txn) error {
	return s.finish(t, "commit")
}

// Abort releases every lock t holds and forgets the transaction. Lock state
// is all the manager tracks, so abort and commit differ only in logging.
func (s *Scheduler) Abort(t *Txn) error {
	return s.finish(t, "abort")
}

func (s *Scheduler) finish(t *Txn, op string) error {
	n, err := s.manager.ReleaseAll(t)
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, t, err)
	}
	s.registry.Remove(t.ID())
	logger.Debug("transaction finished", logger.Txn(t.ID()), logger.Op(op), logger.Released(n))
	return nil
}
