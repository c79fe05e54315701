package lock

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := NewNoSuchHeldLockError("t1", "page:t:1")
	wrapped := fmt.Errorf("release step: %w", err)

	assert.ErrorIs(t, wrapped, ErrNoSuchHeldLock)
	assert.NotErrorIs(t, wrapped, ErrDescendantLocksRemain)
	assert.Equal(t, ErrCodeNoSuchHeldLock, CodeOf(wrapped))
	assert.Equal(t, ErrorCode(0), CodeOf(errors.New("other")))
	assert.Equal(t, ErrorCode(0), CodeOf(nil))
}

func TestError_Message(t *testing.T) {
	t.Parallel()

	err := NewMissingAncestorIntentLockError("t1", "page:t:1", "table:t", Shared)
	assert.Equal(t, "MissingAncestorIntentLock: S requires IS or IX on table:t (txn: t1, resource: page:t:1)", err.Error())
	assert.Equal(t, "DuplicateLockRequest: lock already held", ErrDuplicateLockRequest.Error())
}

func TestParseErrorCode(t *testing.T) {
	t.Parallel()

	for c := ErrCodeDuplicateLockRequest; c <= ErrCodeDescendantLocksRemain; c++ {
		got, ok := ParseErrorCode(c.String())
		assert.True(t, ok)
		assert.Equal(t, c, got)
	}

	_, ok := ParseErrorCode("Deadlock")
	assert.False(t, ok)
	assert.Equal(t, "Unknown(42)", ErrorCode(42).String())
}
