// Package lock implements a multi-granularity lock manager (MGL) for a
// two-level resource hierarchy: tables containing pages, under an implicit
// database root.
//
// # Overview
//
// [Manager] decides, for every (transaction, resource, lock mode) request,
// whether the lock is granted immediately, must be queued, or is illegal.
// Four modes are supported:
//
//   - [IntentShared] (IS): a shared lock is or will be held on a descendant.
//   - [IntentExclusive] (IX): an exclusive lock is or will be held on a descendant.
//   - [Shared] (S): read lock on the resource itself.
//   - [Exclusive] (X): write lock on the resource itself.
//
// Compatibility between a held and a requested mode is defined by
// [Compatible]. Intent modes may only be requested on non-leaf resources
// (database, table); S and X on a page require an intent lock on the page's
// table.
//
// # Waiting
//
// The manager never blocks. A request that conflicts with the current owners
// is appended to the resource's FIFO queue and the transaction is put to sleep
// through [Transaction.Sleep]. Upgrade requests (S→X) are queued ahead of
// every other waiter, in arrival order among themselves.
// When a lock is released the queue is promoted from the head: every request
// compatible with the owners at that moment is granted and its transaction is
// woken through [Transaction.Wake], until the first incompatible request.
//
// Suspending and resuming the caller's goroutine is left to the embedding
// scheduler (see package txn). No deadlock detection is performed.
//
// # Errors
//
// Protocol violations are reported synchronously as [*Error] values carrying
// an [ErrorCode]. A rejected request never mutates lock state.
package lock
