package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Testdata(t *testing.T) {
	t.Parallel()

	files, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		s, err := Load(f)
		require.NoError(t, err, f)
		assert.NotEmpty(t, s.Name, f)
		assert.NotEmpty(t, s.Steps, f)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParse_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`
name: x
steps:
  - {txn: t1, op: acquire, resource: database, mode: S, exepct: granted}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exepct")
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	s, err := Parse([]byte(`
name: defaults
steps:
  - {txn: t1, op: acquire, resource: database, mode: s}
`))
	require.NoError(t, err)
	assert.Empty(t, s.Database)
	assert.Nil(t, s.Lock)

	db, err := s.buildCatalog()
	require.NoError(t, err)
	assert.Equal(t, DefaultDatabase, db.Name())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "missing name",
			doc:     "steps:\n  - {txn: t1, op: release-all}\n",
			wantErr: "Name: failed 'required'",
		},
		{
			name:    "no steps",
			doc:     "name: x\n",
			wantErr: "Steps: failed 'required'",
		},
		{
			name:    "unknown op",
			doc:     "name: x\nsteps:\n  - {txn: t1, op: commit}\n",
			wantErr: "failed 'oneof'",
		},
		{
			name:    "missing txn",
			doc:     "name: x\nsteps:\n  - {op: release-all}\n",
			wantErr: "Txn: failed 'required'",
		},
		{
			name:    "bad mode",
			doc:     "name: x\nsteps:\n  - {txn: t1, op: acquire, resource: database, mode: SIX}\n",
			wantErr: "invalid lock type",
		},
		{
			name:    "acquire without resource",
			doc:     "name: x\nsteps:\n  - {txn: t1, op: acquire, mode: S}\n",
			wantErr: "resource required",
		},
		{
			name:    "unknown table",
			doc:     "name: x\nsteps:\n  - {txn: t1, op: release, resource: \"table:ghost\"}\n",
			wantErr: "table not found",
		},
		{
			name:    "page out of range",
			doc:     "name: x\ntables: [{name: t, pages: 1}]\nsteps:\n  - {txn: t1, op: release, resource: \"page:t:2\"}\n",
			wantErr: "page not found",
		},
		{
			name:    "mode on release",
			doc:     "name: x\nsteps:\n  - {txn: t1, op: release, resource: database, mode: S}\n",
			wantErr: "mode not allowed",
		},
		{
			name:    "resource on release-all",
			doc:     "name: x\nsteps:\n  - {txn: t1, op: release-all, resource: database}\n",
			wantErr: "resource not allowed",
		},
		{
			name:    "queued on release",
			doc:     "name: x\nsteps:\n  - {txn: t1, op: release, resource: database, expect: queued}\n",
			wantErr: "only applies to acquire",
		},
		{
			name:    "unknown expectation",
			doc:     "name: x\nsteps:\n  - {txn: t1, op: release-all, expect: Deadlock}\n",
			wantErr: "unknown expectation",
		},
		{
			name:    "duplicate table",
			doc:     "name: x\ntables: [{name: t, pages: 1}, {name: t, pages: 2}]\nsteps:\n  - {txn: t1, op: release-all}\n",
			wantErr: "table already exists",
		},
		{
			name:    "colon in table name",
			doc:     "name: x\ntables: [{name: \"a:b\", pages: 1}]\nsteps:\n  - {txn: t1, op: release-all}\n",
			wantErr: "failed 'excludesall'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidScript)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStep_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "t1 acquire X page:t:1", Step{Txn: "t1", Op: OpAcquire, Mode: "x", Resource: "page:t:1"}.String())
	assert.Equal(t, "t2 release-all", Step{Txn: "t2", Op: OpReleaseAll}.String())
}

func TestLockConfigOverrides(t *testing.T) {
	t.Parallel()

	s, err := Parse([]byte(`
name: x
lock:
  prune_idle_state: true
steps:
  - {txn: t1, op: release-all}
`))
	require.NoError(t, err)

	cfg := s.lockConfig(lockConfigStrict())
	assert.True(t, cfg.StrictIntentCheck, "unset override keeps the base value")
	assert.True(t, cfg.PruneIdleState)
}
