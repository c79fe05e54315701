package lock

import (
	"errors"
	"fmt"
)

// ErrorCode identifies which protocol rule a rejected request violated.
type ErrorCode int

const (
	// ErrCodeDuplicateLockRequest: the requested mode is already held.
	ErrCodeDuplicateLockRequest ErrorCode = iota + 1

	// ErrCodeDowngradeNotAllowed: X→S or IX→IS.
	ErrCodeDowngradeNotAllowed

	// ErrCodeBlockedTransactionRequest: the caller is waiting.
	ErrCodeBlockedTransactionRequest

	// ErrCodeInvalidIntentLockTarget: IS/IX requested on a page.
	ErrCodeInvalidIntentLockTarget

	// ErrCodeMissingAncestorIntentLock: S/X on a page without an intent lock
	// on its table.
	ErrCodeMissingAncestorIntentLock

	// ErrCodeNoSuchHeldLock: release of a resource the caller does not own.
	ErrCodeNoSuchHeldLock

	// ErrCodeDescendantLocksRemain: release of a table while the caller still
	// owns locks on its pages.
	ErrCodeDescendantLocksRemain
)

// String returns the name of the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeDuplicateLockRequest:
		return "DuplicateLockRequest"
	case ErrCodeDowngradeNotAllowed:
		return "DowngradeNotAllowed"
	case ErrCodeBlockedTransactionRequest:
		return "BlockedTransactionRequest"
	case ErrCodeInvalidIntentLockTarget:
		return "InvalidIntentLockTarget"
	case ErrCodeMissingAncestorIntentLock:
		return "MissingAncestorIntentLock"
	case ErrCodeNoSuchHeldLock:
		return "NoSuchHeldLock"
	case ErrCodeDescendantLocksRemain:
		return "DescendantLocksRemain"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// ParseErrorCode returns the code whose String() equals name.
func ParseErrorCode(name string) (ErrorCode, bool) {
	for c := ErrCodeDuplicateLockRequest; c <= ErrCodeDescendantLocksRemain; c++ {
		if c.String() == name {
			return c, true
		}
	}
	return 0, false
}

// Error is returned for every illegal acquire or release.
type Error struct {
	Code     ErrorCode
	Message  string
	Txn      TxnID
	Resource ResourceKey
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Txn == "" && e.Resource == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (txn: %s, resource: %s)", e.Code, e.Message, e.Txn, e.Resource)
}

// Is matches any *Error with the same code, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is. Returned errors carry txn and resource details.
var (
	ErrDuplicateLockRequest      = &Error{Code: ErrCodeDuplicateLockRequest, Message: "lock already held"}
	ErrDowngradeNotAllowed       = &Error{Code: ErrCodeDowngradeNotAllowed, Message: "lock downgrade not allowed"}
	ErrBlockedTransactionRequest = &Error{Code: ErrCodeBlockedTransactionRequest, Message: "transaction is waiting"}
	ErrInvalidIntentLockTarget   = &Error{Code: ErrCodeInvalidIntentLockTarget, Message: "intent lock on leaf resource"}
	ErrMissingAncestorIntentLock = &Error{Code: ErrCodeMissingAncestorIntentLock, Message: "no intent lock on parent table"}
	ErrNoSuchHeldLock            = &Error{Code: ErrCodeNoSuchHeldLock, Message: "lock not held"}
	ErrDescendantLocksRemain     = &Error{Code: ErrCodeDescendantLocksRemain, Message: "pages of table still locked"}
)

// CodeOf returns the ErrorCode carried by err, or 0 if err is not an *Error.
func CodeOf(err error) ErrorCode {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return 0
}

// ============================================================================
// Factory Functions
// ============================================================================

func newError(code ErrorCode, txn TxnID, res ResourceKey, format string, args ...any) *Error {
	return &Error{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Txn:      txn,
		Resource: res,
	}
}

// NewDuplicateLockRequestError reports a request for an already held mode.
func NewDuplicateLockRequestError(txn TxnID, res ResourceKey, mode LockType) *Error {
	return newError(ErrCodeDuplicateLockRequest, txn, res, "%s lock already held", mode)
}

// NewDowngradeNotAllowedError reports an X→S or IX→IS request.
func NewDowngradeNotAllowedError(txn TxnID, res ResourceKey, mode LockType) *Error {
	return newError(ErrCodeDowngradeNotAllowed, txn, res, "%s would downgrade a held lock", mode)
}

// NewBlockedTransactionError reports a request issued by a waiting transaction.
func NewBlockedTransactionError(txn TxnID, res ResourceKey) *Error {
	return newError(ErrCodeBlockedTransactionRequest, txn, res, "transaction is waiting")
}

// NewInvalidIntentLockTargetError reports an intent mode requested on a page.
func NewInvalidIntentLockTargetError(txn TxnID, res ResourceKey, mode LockType) *Error {
	return newError(ErrCodeInvalidIntentLockTarget, txn, res, "%s not allowed on a page", mode)
}

// NewMissingAncestorIntentLockError reports S/X on a page without an intent
// lock on its table.
func NewMissingAncestorIntentLockError(txn TxnID, res, table ResourceKey, mode LockType) *Error {
	return newError(ErrCodeMissingAncestorIntentLock, txn, res, "%s requires IS or IX on %s", mode, table)
}

// NewNoSuchHeldLockError reports a release of an unowned resource.
func NewNoSuchHeldLockError(txn TxnID, res ResourceKey) *Error {
	return newError(ErrCodeNoSuchHeldLock, txn, res, "lock not held")
}

// NewDescendantLocksRemainError reports a table release with locked pages.
func NewDescendantLocksRemainError(txn TxnID, res, page ResourceKey) *Error {
	return newError(ErrCodeDescendantLocksRemain, txn, res, "page %s still locked", page)
}
