package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging. Use these keys consistently
// so lock traces can be filtered by transaction or resource.
const (
	// ========================================================================
	// Lock Manager
	// ========================================================================
	KeyTxn       = "txn"        // Transaction identifier
	KeyResource  = "resource"   // Resource key: database, table:<t>, page:<t>:<n>
	KeyKind      = "kind"       // Resource kind: database, table, page
	KeyMode      = "mode"       // Lock mode: IS, IX, S, X
	KeyOutcome   = "outcome"    // Acquire outcome: granted, queued
	KeyOwners    = "owners"     // Owner records on a resource
	KeyWaiters   = "waiters"    // Queued requests on a resource
	KeyUpgrade   = "upgrade"    // Whether the request is an S→X upgrade
	KeyReleased  = "released"   // Number of locks released
	KeyPromoted  = "promoted"   // Number of waiters granted by promotion
	KeyWaitMs    = "wait_ms"    // Time a request spent queued
	KeyResources = "resources"  // Number of tracked resources

	// ========================================================================
	// Scenario Runner
	// ========================================================================
	KeyScript   = "script"   // Scenario name
	KeyStep     = "step"     // 1-based step number
	KeySteps    = "steps"    // Number of steps in a replay
	KeyOp       = "op"       // Step operation: acquire, release, release-all
	KeyExpect   = "expect"   // Expected step result
	KeyResult   = "result"   // Actual step result
	KeyMet      = "met"      // Whether the expectation held
	KeyFailures = "failures" // Number of unmet expectations

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyError     = "error"      // Error message
	KeyErrorCode = "error_code" // Lock error code name
	KeyPath      = "path"       // File path (config, scripts, logs)
)

// ============================================================================
// Field constructors
// ============================================================================

// Txn returns a slog.Attr for a transaction identifier
func Txn[T ~string](id T) slog.Attr {
	return slog.String(KeyTxn, string(id))
}

// Resource returns a slog.Attr for a resource key
func Resource[T ~string](key T) slog.Attr {
	return slog.String(KeyResource, string(key))
}

// Kind returns a slog.Attr for a resource kind
func Kind(k fmt.Stringer) slog.Attr {
	return slog.String(KeyKind, k.String())
}

// Mode returns a slog.Attr for a lock mode
func Mode(m fmt.Stringer) slog.Attr {
	return slog.String(KeyMode, m.String())
}

// Outcome returns a slog.Attr for an acquire outcome
func Outcome(o fmt.Stringer) slog.Attr {
	return slog.String(KeyOutcome, o.String())
}

// Owners returns a slog.Attr for the number of owner records
func Owners(n int) slog.Attr {
	return slog.Int(KeyOwners, n)
}

// Waiters returns a slog.Attr for the number of queued requests
func Waiters(n int) slog.Attr {
	return slog.Int(KeyWaiters, n)
}

// Upgrade returns a slog.Attr flagging an upgrade request
func Upgrade(b bool) slog.Attr {
	return slog.Bool(KeyUpgrade, b)
}

// Released returns a slog.Attr for the number of released locks
func Released(n int) slog.Attr {
	return slog.Int(KeyReleased, n)
}

// Promoted returns a slog.Attr for the number of promoted waiters
func Promoted(n int) slog.Attr {
	return slog.Int(KeyPromoted, n)
}

// WaitMs returns a slog.Attr for queue time in milliseconds
func WaitMs(ms float64) slog.Attr {
	return slog.Float64(KeyWaitMs, ms)
}

// Script returns a slog.Attr for a scenario name
func Script(name string) slog.Attr {
	return slog.String(KeyScript, name)
}

// Step returns a slog.Attr for a step number
func Step(n int) slog.Attr {
	return slog.Int(KeyStep, n)
}

// Op returns a slog.Attr for a step operation
func Op(op string) slog.Attr {
	return slog.String(KeyOp, op)
}

// Steps returns a slog.Attr for a step count
func Steps(n int) slog.Attr {
	return slog.Int(KeySteps, n)
}

// Expect returns a slog.Attr for a step expectation
func Expect(e string) slog.Attr {
	return slog.String(KeyExpect, e)
}

// Result returns a slog.Attr for a step result
func Result(r string) slog.Attr {
	return slog.String(KeyResult, r)
}

// Met returns a slog.Attr for an expectation check
func Met(ok bool) slog.Attr {
	return slog.Bool(KeyMet, ok)
}

// Failures returns a slog.Attr for the number of unmet expectations
func Failures(n int) slog.Attr {
	return slog.Int(KeyFailures, n)
}

// Path returns a slog.Attr for a file path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a lock error code
func ErrorCode(code fmt.Stringer) slog.Attr {
	return slog.String(KeyErrorCode, code.String())
}
