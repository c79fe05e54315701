// Package scenario replays scripted lock traffic against a lock manager.
//
// A script declares a small catalog (tables and their page counts) and a
// list of steps. Each step is issued by a named transaction and may carry an
// expectation: "granted", "queued", "ok" or the name of a lock error code.
// Transactions are created the first time a step names them.
//
//	name: upgrade priority
//	tables:
//	  - {name: orders, pages: 2}
//	steps:
//	  - {txn: t1, op: acquire, resource: "table:orders", mode: IS, expect: granted}
//	  - {txn: t1, op: release, resource: "page:orders:1", expect: NoSuchHeldLock}
//	  - {txn: t1, op: release-all}
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/mglock/pkg/catalog"
	"github.com/marmos91/mglock/pkg/lock"
)

// Op is a step operation.
type Op string

const (
	OpAcquire    Op = "acquire"
	OpRelease    Op = "release"
	OpReleaseAll Op = "release-all"
)

// Expectations that are not error code names.
const (
	ExpectGranted = "granted"
	ExpectQueued  = "queued"
	ExpectOK      = "ok"
)

// DefaultDatabase names the catalog root when a script leaves it unset.
const DefaultDatabase = "db"

// ErrInvalidScript wraps every validation failure.
var ErrInvalidScript = errors.New("invalid script")

// Script is a parsed scenario.
type Script struct {
	Name        string       `yaml:"name" json:"name" validate:"required"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Database    string       `yaml:"database,omitempty" json:"database,omitempty"`
	Lock        *LockOptions `yaml:"lock,omitempty" json:"lock,omitempty"`
	Tables      []TableSpec  `yaml:"tables" json:"tables" validate:"dive"`
	Steps       []Step       `yaml:"steps" json:"steps" validate:"required,min=1,dive"`
}

// LockOptions overrides the manager configuration for one script.
type LockOptions struct {
	StrictIntentCheck *bool `yaml:"strict_intent_check,omitempty" json:"strict_intent_check,omitempty"`
	PruneIdleState    *bool `yaml:"prune_idle_state,omitempty" json:"prune_idle_state,omitempty"`
}

// TableSpec declares a table and its page count.
type TableSpec struct {
	Name  string `yaml:"name" json:"name" validate:"required,excludesall=:"`
	Pages int    `yaml:"pages" json:"pages" validate:"gte=0"`
}

// Step is one request issued by a transaction.
type Step struct {
	Txn      string `yaml:"txn" json:"txn" validate:"required"`
	Op       Op     `yaml:"op" json:"op" validate:"required,oneof=acquire release release-all"`
	Resource string `yaml:"resource,omitempty" json:"resource,omitempty"`
	Mode     string `yaml:"mode,omitempty" json:"mode,omitempty"`
	Expect   string `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// String renders the step the way it reads in a script.
func (s Step) String() string {
	var b strings.Builder
	b.WriteString(s.Txn)
	b.WriteByte(' ')
	b.WriteString(string(s.Op))
	if s.Mode != "" {
		b.WriteByte(' ')
		b.WriteString(strings.ToUpper(s.Mode))
	}
	if s.Resource != "" {
		b.WriteByte(' ')
		b.WriteString(s.Resource)
	}
	return b.String()
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads and parses a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a YAML script. Unknown fields are rejected.
func Parse(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the script's structure and that every step is well formed:
// modes parse, references resolve against the declared tables, and
// expectations name a known result.
func (s *Script) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fe := verrs[0]
			return fmt.Errorf("%w: %s: failed '%s'", ErrInvalidScript,
				strings.TrimPrefix(fe.Namespace(), "Script."), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}

	db, err := s.buildCatalog()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}

	for i, step := range s.Steps {
		if err := step.validate(db); err != nil {
			return fmt.Errorf("%w: step %d (%s): %v", ErrInvalidScript, i+1, step, err)
		}
	}
	return nil
}

func (s Step) validate(db *catalog.Database) error {
	switch s.Op {
	case OpAcquire:
		if _, err := lock.ParseLockType(s.Mode); err != nil {
			return err
		}
	case OpRelease, OpReleaseAll:
		if s.Mode != "" {
			return fmt.Errorf("mode not allowed for %s", s.Op)
		}
	}

	switch s.Op {
	case OpAcquire, OpRelease:
		if s.Resource == "" {
			return fmt.Errorf("resource required for %s", s.Op)
		}
		if _, err := db.Resolve(s.Resource); err != nil {
			return err
		}
	case OpReleaseAll:
		if s.Resource != "" {
			return fmt.Errorf("resource not allowed for %s", s.Op)
		}
	}

	return validateExpect(s.Op, s.Expect)
}

func validateExpect(op Op, expect string) error {
	switch expect {
	case "", ExpectOK:
		return nil
	case ExpectGranted, ExpectQueued:
		if op != OpAcquire {
			return fmt.Errorf("expectation %q only applies to acquire", expect)
		}
		return nil
	}
	if _, ok := lock.ParseErrorCode(expect); !ok {
		return fmt.Errorf("unknown expectation %q", expect)
	}
	return nil
}

// buildCatalog creates the database the script's references resolve against.
func (s *Script) buildCatalog() (*catalog.Database, error) {
	name := s.Database
	if name == "" {
		name = DefaultDatabase
	}
	db := catalog.New(name)
	for _, t := range s.Tables {
		if _, err := db.AddTable(t.Name, t.Pages); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// lockConfig applies the script's overrides to base.
func (s *Script) lockConfig(base lock.Config) lock.Config {
	if s.Lock == nil {
		return base
	}
	if s.Lock.StrictIntentCheck != nil {
		base.StrictIntentCheck = *s.Lock.StrictIntentCheck
	}
	if s.Lock.PruneIdleState != nil {
		base.PruneIdleState = *s.Lock.PruneIdleState
	}
	return base
}
