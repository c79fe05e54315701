package scenario

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/marmos91/mglock/pkg/lock"
)

// Step results.
const (
	ResultGranted = "granted"
	ResultQueued  = "queued"
	ResultOK      = "ok"
	ResultError   = "error"
)

// Report is the outcome of a replay.
type Report struct {
	Script   string            `json:"script" yaml:"script"`
	Database string            `json:"database" yaml:"database"`
	Config   lock.Config       `json:"config" yaml:"config"`
	Steps    []StepResult      `json:"steps" yaml:"steps"`
	Final    []ResourceState   `json:"final" yaml:"final"`
	Stats    lock.ManagerStats `json:"stats" yaml:"stats"`

	// Aborted is set when the replay ended before its last step.
	Aborted bool `json:"aborted,omitempty" yaml:"aborted,omitempty"`
}

// StepResult records what one step did.
type StepResult struct {
	Index  int    `json:"index" yaml:"index"`
	Step   Step   `json:"step" yaml:"step"`
	Result string `json:"result" yaml:"result"`

	// Code is the lock error code name when the manager rejected the step.
	Code  string `json:"code,omitempty" yaml:"code,omitempty"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// Released is the number of locks a release-all dropped.
	Released int `json:"released,omitempty" yaml:"released,omitempty"`

	// Woken lists the queued requests the step granted, in grant order.
	Woken []Grant `json:"woken,omitempty" yaml:"woken,omitempty"`

	Met      bool              `json:"met" yaml:"met"`
	Statuses map[string]string `json:"statuses" yaml:"statuses"`
}

// Grant is a (transaction, resource, mode) triple. In the final lock table it
// describes an owner record or a queued request.
type Grant struct {
	Txn      string `json:"txn" yaml:"txn"`
	Resource string `json:"resource" yaml:"resource"`
	Mode     string `json:"mode" yaml:"mode"`
	Upgrade  bool   `json:"upgrade,omitempty" yaml:"upgrade,omitempty"`
}

// ResourceState is the final lock table entry of one resource.
type ResourceState struct {
	Resource string  `json:"resource" yaml:"resource"`
	Kind     string  `json:"kind" yaml:"kind"`
	Owners   []Grant `json:"owners,omitempty" yaml:"owners,omitempty"`
	Waiters  []Grant `json:"waiters,omitempty" yaml:"waiters,omitempty"`
}

// Failed reports whether any expectation was not met or the replay was cut
// short.
func (r *Report) Failed() bool {
	return r.Aborted || len(r.Failures()) > 0
}

// Failures returns the steps whose expectation was not met.
func (r *Report) Failures() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if !s.Met {
			out = append(out, s)
		}
	}
	return out
}

// ============================================================================
// Table rendering
// ============================================================================

// StepTable renders step results as rows.
type StepTable []StepResult

// Headers implements output.TableRenderer.
func (StepTable) Headers() []string {
	return []string{"#", "Step", "Expect", "Result", "OK", "Woken", "Waiting"}
}

// Rows implements output.TableRenderer.
func (t StepTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, s := range t {
		result := s.Result
		if s.Code != "" {
			result = s.Code
		}
		if s.Released > 0 {
			result += " (" + strconv.Itoa(s.Released) + ")"
		}
		ok := "yes"
		if !s.Met {
			ok = "NO"
		}
		expect := s.Step.Expect
		if expect == "" {
			expect = "-"
		}
		rows = append(rows, []string{
			strconv.Itoa(s.Index),
			s.Step.String(),
			expect,
			result,
			ok,
			joinGrants(s.Woken, true),
			waiting(s.Statuses),
		})
	}
	return rows
}

// LockTable renders the final lock table as rows.
type LockTable []ResourceState

// Headers implements output.TableRenderer.
func (LockTable) Headers() []string {
	return []string{"Resource", "Kind", "Owners", "Waiters"}
}

// Rows implements output.TableRenderer.
func (t LockTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, s := range t {
		rows = append(rows, []string{s.Resource, s.Kind, joinGrants(s.Owners, false), joinGrants(s.Waiters, false)})
	}
	return rows
}

func joinGrants(gs []Grant, withResource bool) string {
	if len(gs) == 0 {
		return "-"
	}
	parts := make([]string, len(gs))
	for i, g := range gs {
		p := g.Txn + ":" + g.Mode
		if g.Upgrade {
			p += "(upgrade)"
		}
		if withResource {
			p += "@" + g.Resource
		}
		parts[i] = p
	}
	return strings.Join(parts, ", ")
}

func waiting(statuses map[string]string) string {
	var out []string
	for _, label := range slices.Sorted(maps.Keys(statuses)) {
		if statuses[label] == lock.StatusWaiting.String() {
			out = append(out, label)
		}
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ", ")
}
