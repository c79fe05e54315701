package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mglock/pkg/lock"
)

func newShop(t *testing.T) *Database {
	t.Helper()
	db := New("shop")
	_, err := db.AddTable("orders", 3)
	require.NoError(t, err)
	_, err = db.AddTable("customers", 1)
	require.NoError(t, err)
	return db
}

func TestDatabase_AddTable(t *testing.T) {
	t.Parallel()

	db := newShop(t)

	_, err := db.AddTable("orders", 1)
	assert.ErrorIs(t, err, ErrTableExists)

	_, err = db.AddTable("bad:name", 1)
	assert.ErrorIs(t, err, ErrInvalidRef)

	_, err = db.AddTable("neg", -1)
	assert.Error(t, err)

	names := []string{}
	for _, tbl := range db.Tables() {
		names = append(names, tbl.Name())
	}
	assert.Equal(t, []string{"customers", "orders"}, names)
	assert.Equal(t, "shop", db.Name())
}

func TestDatabase_Resolve(t *testing.T) {
	t.Parallel()

	db := newShop(t)

	tests := []struct {
		ref     string
		kind    lock.ResourceKind
		key     lock.ResourceKey
		parent  lock.ResourceKey
		wantErr error
	}{
		{ref: "database", kind: lock.KindDatabase, key: "database"},
		{ref: "table:orders", kind: lock.KindTable, key: "table:orders"},
		{ref: "page:orders:3", kind: lock.KindPage, key: "page:orders:3", parent: "table:orders"},
		{ref: "page:orders:4", wantErr: ErrPageNotFound},
		{ref: "page:orders:x", wantErr: ErrInvalidRef},
		{ref: "page:orders", wantErr: ErrInvalidRef},
		{ref: "table:nope", wantErr: ErrTableNotFound},
		{ref: "row:orders:1", wantErr: ErrInvalidRef},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			t.Parallel()

			res, err := db.Resolve(tt.ref)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, res.Kind())
			assert.Equal(t, tt.key, res.Key())
			assert.Equal(t, tt.parent, res.Parent())
		})
	}
}

func TestDatabase_PagesHierarchy(t *testing.T) {
	t.Parallel()

	db := newShop(t)

	assert.Equal(t, []lock.ResourceKey{"page:orders:1", "page:orders:2", "page:orders:3"}, db.Pages("table:orders"))
	assert.Nil(t, db.Pages("table:nope"))
	assert.Nil(t, db.Pages("page:orders:1"))
}

func TestTable_AddPage(t *testing.T) {
	t.Parallel()

	db := New("x")
	tbl, err := db.AddTable("t", 0)
	require.NoError(t, err)
	assert.Zero(t, tbl.PageCount())

	p1 := tbl.AddPage()
	p2 := tbl.AddPage()
	assert.Equal(t, 1, p1.Number())
	assert.Equal(t, 2, p2.Number())
	assert.Equal(t, "t", p2.Table())
	assert.Equal(t, 2, tbl.PageCount())

	got, err := tbl.Page(2)
	require.NoError(t, err)
	assert.Equal(t, p2, got, "pages are comparable values")
}

// Catalog resources drive the lock manager end to end.
func TestCatalog_WithLockManager(t *testing.T) {
	t.Parallel()

	db := newShop(t)
	m := lock.NewManager(db)

	orders, err := db.Table("orders")
	require.NoError(t, err)
	p1, err := orders.Page(1)
	require.NoError(t, err)

	txn := &stubTxn{id: "t1"}
	_, err = m.Acquire(txn, orders, lock.IntentExclusive)
	require.NoError(t, err)
	_, err = m.Acquire(txn, p1, lock.Exclusive)
	require.NoError(t, err)

	assert.ErrorIs(t, m.Release(txn, orders), lock.ErrDescendantLocksRemain)
	require.NoError(t, m.Release(txn, p1))
	require.NoError(t, m.Release(txn, orders))
}

type stubTxn struct {
	id     lock.TxnID
	status lock.Status
}

func (s *stubTxn) ID() lock.TxnID      { return s.id }
func (s *stubTxn) Status() lock.Status { return s.status }
func (s *stubTxn) Sleep()              { s.status = lock.StatusWaiting }
func (s *stubTxn) Wake()               { s.status = lock.StatusRunning }
