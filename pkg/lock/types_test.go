package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompatible_Matrix(t *testing.T) {
	t.Parallel()

	// held -> requested -> compatible
	want := map[LockType]map[LockType]bool{
		IntentShared:    {IntentShared: true, IntentExclusive: true, Shared: true, Exclusive: false},
		IntentExclusive: {IntentShared: true, IntentExclusive: true, Shared: false, Exclusive: false},
		Shared:          {IntentShared: true, IntentExclusive: false, Shared: true, Exclusive: false},
		Exclusive:       {IntentShared: false, IntentExclusive: false, Shared: false, Exclusive: false},
	}

	for _, held := range AllLockTypes {
		for _, req := range AllLockTypes {
			assert.Equal(t, want[held][req], Compatible(held, req), "held=%s requested=%s", held, req)
		}
	}
}

func TestCompatible_Symmetric(t *testing.T) {
	t.Parallel()

	for _, a := range AllLockTypes {
		for _, b := range AllLockTypes {
			assert.Equal(t, Compatible(a, b), Compatible(b, a), "%s/%s", a, b)
		}
	}
}

func TestCompatible_InvalidMode(t *testing.T) {
	t.Parallel()

	assert.False(t, Compatible(LockType(9), IntentShared))
	assert.False(t, Compatible(IntentShared, LockType(-1)))
}

func TestParseLockType(t *testing.T) {
	t.Parallel()

	for _, lt := range AllLockTypes {
		got, err := ParseLockType(lt.String())
		require.NoError(t, err)
		assert.Equal(t, lt, got)
	}

	got, err := ParseLockType(" ix ")
	require.NoError(t, err)
	assert.Equal(t, IntentExclusive, got)

	_, err = ParseLockType("SIX")
	assert.Error(t, err)
}

func TestLockType_IsIntent(t *testing.T) {
	t.Parallel()

	assert.True(t, IntentShared.IsIntent())
	assert.True(t, IntentExclusive.IsIntent())
	assert.False(t, Shared.IsIntent())
	assert.False(t, Exclusive.IsIntent())
	assert.Equal(t, "LockType(7)", LockType(7).String())
}

func TestRequest_Equal(t *testing.T) {
	t.Parallel()

	t1, t2 := newTxn("t1"), newTxn("t2")
	assert.True(t, Request{Txn: t1, Mode: Shared}.Equal(Request{Txn: newTxn("t1"), Mode: Shared}))
	assert.False(t, Request{Txn: t1, Mode: Shared}.Equal(Request{Txn: t1, Mode: Exclusive}))
	assert.False(t, Request{Txn: t1, Mode: Shared}.Equal(Request{Txn: t2, Mode: Shared}))
	assert.Equal(t, "Request(txn=t1, mode=S)", Request{Txn: t1, Mode: Shared}.String())
}

func TestEnumStrings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "page", KindPage.String())
	assert.Equal(t, "table", KindTable.String())
	assert.Equal(t, "database", KindDatabase.String())
	assert.Equal(t, "waiting", StatusWaiting.String())
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "queued", Queued.String())
	assert.Equal(t, "granted", Granted.String())
}
