// Package catalog provides the concrete resource hierarchy locked by package
// lock: one database containing tables, each table containing numbered pages.
//
// Resources are identified by string references:
//
//	database           the database root
//	table:<name>       a table
//	page:<table>:<n>   page n (1-based) of a table
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/marmos91/mglock/pkg/lock"
)

// Reference prefixes.
const (
	DatabaseRef = "database"
	tablePrefix = "table:"
	pagePrefix  = "page:"
)

var (
	ErrTableExists   = errors.New("table already exists")
	ErrTableNotFound = errors.New("table not found")
	ErrPageNotFound  = errors.New("page not found")
	ErrInvalidRef    = errors.New("invalid resource reference")
)

// ============================================================================
// Database
// ============================================================================

// Database is the root of the hierarchy. It implements lock.Hierarchy.
//
// Thread Safety: safe for concurrent use.
type Database struct {
	name string

	mu     sync.RWMutex
	tables map[string]*Table
}

// New creates an empty database.
func New(name string) *Database {
	return &Database{
		name:   name,
		tables: make(map[string]*Table),
	}
}

// Name returns the database name.
func (d *Database) Name() string { return d.name }

// Key implements lock.Resource.
func (d *Database) Key() lock.ResourceKey { return DatabaseRef }

// Kind implements lock.Resource.
func (d *Database) Kind() lock.ResourceKind { return lock.KindDatabase }

// Parent implements lock.Resource. The database has no parent.
func (d *Database) Parent() lock.ResourceKey { return "" }

// AddTable creates a table with pages 1..pages.
func (d *Database) AddTable(name string, pages int) (*Table, error) {
	if name == "" || strings.Contains(name, ":") {
		return nil, fmt.Errorf("%w: table name %q", ErrInvalidRef, name)
	}
	if pages < 0 {
		return nil, fmt.Errorf("table %s: negative page count %d", name, pages)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.tables[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrTableExists, name)
	}

	t := &Table{name: name, pages: mapset.NewSet[int]()}
	for i := 1; i <= pages; i++ {
		t.pages.Add(i)
	}
	d.tables[name] = t
	return t, nil
}

// Table returns the named table.
func (d *Database) Table(name string) (*Table, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return t, nil
}

// Tables returns every table sorted by name.
func (d *Database) Tables() []*Table {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Table, 0, len(d.tables))
	for _, t := range d.tables {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *Table) int { return strings.Compare(a.name, b.name) })
	return out
}

// Pages implements lock.Hierarchy. Unknown tables have no pages.
func (d *Database) Pages(table lock.ResourceKey) []lock.ResourceKey {
	name, ok := strings.CutPrefix(string(table), tablePrefix)
	if !ok {
		return nil
	}
	t, err := d.Table(name)
	if err != nil {
		return nil
	}

	pages := t.Pages()
	keys := make([]lock.ResourceKey, len(pages))
	for i, p := range pages {
		keys[i] = p.Key()
	}
	return keys
}

// Resolve turns a reference string into the resource it names.
func (d *Database) Resolve(ref string) (lock.Resource, error) {
	switch {
	case ref == DatabaseRef:
		return d, nil

	case strings.HasPrefix(ref, tablePrefix):
		t, err := d.Table(strings.TrimPrefix(ref, tablePrefix))
		if err != nil {
			return nil, err
		}
		return t, nil

	case strings.HasPrefix(ref, pagePrefix):
		name, num, ok := strings.Cut(strings.TrimPrefix(ref, pagePrefix), ":")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRef, ref)
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: page number: %v", ErrInvalidRef, ref, err)
		}
		t, err := d.Table(name)
		if err != nil {
			return nil, err
		}
		p, err := t.Page(n)
		if err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
}

// ============================================================================
// Table
// ============================================================================

// Table is a non-leaf resource owning a set of pages.
type Table struct {
	name  string
	pages mapset.Set[int]
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Key implements lock.Resource.
func (t *Table) Key() lock.ResourceKey { return TableKey(t.name) }

// Kind implements lock.Resource.
func (t *Table) Kind() lock.ResourceKind { return lock.KindTable }

// Parent implements lock.Resource. Tables hang off the implicit database root
// and report no parent.
func (t *Table) Parent() lock.ResourceKey { return "" }

// AddPage appends a page numbered one past the highest existing page.
func (t *Table) AddPage() Page {
	next := 1
	t.pages.Each(func(n int) bool {
		if n >= next {
			next = n + 1
		}
		return false
	})
	t.pages.Add(next)
	return Page{table: t.name, number: next}
}

// Page returns page n of the table.
func (t *Table) Page(n int) (Page, error) {
	if !t.pages.Contains(n) {
		return Page{}, fmt.Errorf("%w: %s page %d", ErrPageNotFound, t.name, n)
	}
	return Page{table: t.name, number: n}, nil
}

// Pages returns the table's pages in ascending order.
func (t *Table) Pages() []Page {
	nums := t.pages.ToSlice()
	slices.Sort(nums)

	out := make([]Page, len(nums))
	for i, n := range nums {
		out[i] = Page{table: t.name, number: n}
	}
	return out
}

// PageCount returns the number of pages.
func (t *Table) PageCount() int { return t.pages.Cardinality() }

// ============================================================================
// Page
// ============================================================================

// Page is a leaf resource. Pages are values: two Page values naming the same
// table and number are the same resource.
type Page struct {
	table  string
	number int
}

// Table returns the owning table's name.
func (p Page) Table() string { return p.table }

// Number returns the page number.
func (p Page) Number() int { return p.number }

// Key implements lock.Resource.
func (p Page) Key() lock.ResourceKey {
	return lock.ResourceKey(fmt.Sprintf("%s%s:%d", pagePrefix, p.table, p.number))
}

// Kind implements lock.Resource.
func (p Page) Kind() lock.ResourceKind { return lock.KindPage }

// Parent implements lock.Resource.
func (p Page) Parent() lock.ResourceKey { return TableKey(p.table) }

// TableKey returns the resource key of the named table.
func TableKey(name string) lock.ResourceKey {
	return lock.ResourceKey(tablePrefix + name)
}

// Interface checks.
var (
	_ lock.Resource  = (*Database)(nil)
	_ lock.Resource  = (*Table)(nil)
	_ lock.Resource  = Page{}
	_ lock.Hierarchy = (*Database)(nil)
)
