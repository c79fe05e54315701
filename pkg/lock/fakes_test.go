package lock

import (
	"fmt"
	"sync"
)

// fakeTxn is a minimal Transaction that only tracks its status.
type fakeTxn struct {
	mu     sync.Mutex
	id     TxnID
	status Status
	sleeps int
	wakes  int
}

func newTxn(id string) *fakeTxn { return &fakeTxn{id: TxnID(id)} }

func (t *fakeTxn) ID() TxnID { return t.id }

func (t *fakeTxn) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *fakeTxn) Sleep() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusWaiting
	t.sleeps++
}

func (t *fakeTxn) Wake() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusRunning
	t.wakes++
}

type fakeResource struct {
	key    ResourceKey
	kind   ResourceKind
	parent ResourceKey
}

func (r fakeResource) Key() ResourceKey    { return r.key }
func (r fakeResource) Kind() ResourceKind  { return r.kind }
func (r fakeResource) Parent() ResourceKey { return r.parent }

// fakeHierarchy maps tables to their pages.
type fakeHierarchy map[ResourceKey][]ResourceKey

func (h fakeHierarchy) Pages(table ResourceKey) []ResourceKey { return h[table] }

var database = fakeResource{key: "database", kind: KindDatabase}

func table(name string) fakeResource {
	return fakeResource{key: ResourceKey("table:" + name), kind: KindTable}
}

func page(tableName string, n int) fakeResource {
	return fakeResource{
		key:    ResourceKey(fmt.Sprintf("page:%s:%d", tableName, n)),
		kind:   KindPage,
		parent: ResourceKey("table:" + tableName),
	}
}

// newTestManager builds a manager over one table "t" with pages 1..pages.
func newTestManager(pages int) *Manager {
	return newTestManagerWithConfig(pages, DefaultConfig())
}

func newTestManagerWithConfig(pages int, cfg Config) *Manager {
	h := fakeHierarchy{}
	for i := 1; i <= pages; i++ {
		h["table:t"] = append(h["table:t"], page("t", i).key)
	}
	return NewManagerWithOptions(h, cfg, nil)
}

// modesOf flattens owner or waiter records into "txn:mode" strings.
func modesOf(reqs []Request) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, fmt.Sprintf("%s:%s", r.Txn.ID(), r.Mode))
	}
	return out
}
