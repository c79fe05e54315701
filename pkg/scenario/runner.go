package scenario

import (
	"context"
	"fmt"

	"github.com/marmos91/mglock/internal/logger"
	"github.com/marmos91/mglock/pkg/lock"
	"github.com/marmos91/mglock/pkg/txn"
)

// Options configures a replay.
type Options struct {
	// Lock is the base manager configuration. Script overrides apply on top.
	Lock lock.Config

	// Metrics instruments the replay's manager. May be nil.
	Metrics *lock.Metrics

	// StopOnFailure ends the replay at the first unmet expectation.
	StopOnFailure bool
}

// Run replays script against a fresh manager and catalog.
//
// Unmet expectations are recorded in the report, not returned as errors. An
// error is returned for an invalid script or when ctx ends mid-replay; in the
// latter case the partial report is returned alongside it.
func Run(ctx context.Context, script *Script, opts Options) (*Report, error) {
	if err := script.Validate(); err != nil {
		return nil, err
	}

	db, err := script.buildCatalog()
	if err != nil {
		return nil, err
	}

	cfg := script.lockConfig(opts.Lock)
	r := &runner{
		manager:  lock.NewManagerWithOptions(db, cfg, opts.Metrics),
		registry: txn.NewRegistry(),
		resolve:  db.Resolve,
	}
	r.manager.RegisterWakeCallback(r.onWake)

	report := &Report{
		Script:   script.Name,
		Database: db.Name(),
		Config:   cfg,
		Steps:    make([]StepResult, 0, len(script.Steps)),
	}

	lc := &logger.LogContext{Script: script.Name}
	ctx = logger.WithContext(ctx, lc)
	logger.InfoCtx(ctx, "replay started", logger.Steps(len(script.Steps)))

	for i, step := range script.Steps {
		if err := ctx.Err(); err != nil {
			report.Aborted = true
			r.finish(report)
			return report, fmt.Errorf("replay %q interrupted at step %d: %w", script.Name, i+1, err)
		}

		stepCtx := logger.WithContext(ctx, lc.WithStep(i+1, step.Txn))
		res := r.exec(stepCtx, i+1, step)
		report.Steps = append(report.Steps, res)

		if !res.Met && opts.StopOnFailure {
			report.Aborted = true
			logger.WarnCtx(stepCtx, "replay stopped at failed expectation")
			break
		}
	}

	r.finish(report)
	logger.InfoCtx(ctx, "replay finished",
		logger.Steps(len(report.Steps)), logger.Failures(len(report.Failures())))
	return report, nil
}

type runner struct {
	manager  *lock.Manager
	registry *txn.Registry
	resolve  func(string) (lock.Resource, error)

	// woken collects promotions reported by the wake callback during the
	// step being executed.
	woken []Grant
}

func (r *runner) onWake(t lock.Transaction, res lock.Resource, mode lock.LockType) {
	r.woken = append(r.woken, Grant{Txn: r.label(t), Resource: string(res.Key()), Mode: mode.String()})
}

// begin returns the transaction with the given label, beginning it on first use.
func (r *runner) begin(label string) (*txn.Txn, error) {
	if t, err := r.registry.ByLabel(label); err == nil {
		return t, nil
	}
	return r.registry.Begin(label)
}

func (r *runner) label(t lock.Transaction) string {
	if tx, ok := t.(*txn.Txn); ok {
		return tx.Label()
	}
	return string(t.ID())
}

func (r *runner) exec(ctx context.Context, n int, step Step) StepResult {
	res := StepResult{Index: n, Step: step}
	r.woken = nil

	t, err := r.begin(step.Txn)
	if err != nil {
		// Labels come from the script and Begin only fails on reuse, which
		// begin rules out.
		res.Result = ResultError
		res.Error = err.Error()
		res.Met = step.Expect == ""
		return res
	}

	switch step.Op {
	case OpAcquire:
		err = r.acquire(t, step, &res)
	case OpRelease:
		err = r.release(t, step)
		if err == nil {
			res.Result = ResultOK
		}
	case OpReleaseAll:
		res.Released, err = r.manager.ReleaseAll(t)
		if err == nil {
			res.Result = ResultOK
		}
	}

	code := lock.CodeOf(err)
	if err != nil {
		res.Result = ResultError
		res.Error = err.Error()
		if code != 0 {
			res.Code = code.String()
		}
	}
	res.Woken = r.woken
	res.Met = expectationMet(step.Expect, res)
	res.Statuses = r.statuses()

	attrs := []any{logger.Op(string(step.Op)), logger.Result(res.Result), logger.Met(res.Met)}
	if step.Resource != "" {
		attrs = append(attrs, logger.Resource(step.Resource))
	}
	if code != 0 {
		attrs = append(attrs, logger.ErrorCode(code))
	}
	if len(res.Woken) > 0 {
		attrs = append(attrs, logger.Promoted(len(res.Woken)))
	}
	if res.Met {
		logger.DebugCtx(ctx, "step executed", attrs...)
	} else {
		logger.WarnCtx(ctx, "step expectation not met", append(attrs, logger.Expect(step.Expect))...)
	}
	return res
}

func (r *runner) acquire(t *txn.Txn, step Step, res *StepResult) error {
	mode, err := lock.ParseLockType(step.Mode)
	if err != nil {
		return err
	}
	target, err := r.resolve(step.Resource)
	if err != nil {
		return err
	}

	out, err := r.manager.Acquire(t, target, mode)
	if err != nil {
		return err
	}
	if out == lock.Granted {
		res.Result = ResultGranted
	} else {
		res.Result = ResultQueued
	}
	return nil
}

func (r *runner) release(t *txn.Txn, step Step) error {
	target, err := r.resolve(step.Resource)
	if err != nil {
		return err
	}
	return r.manager.Release(t, target)
}

func (r *runner) statuses() map[string]string {
	txns := r.registry.List()
	out := make(map[string]string, len(txns))
	for _, t := range txns {
		out[t.Label()] = t.Status().String()
	}
	return out
}

// finish records the final lock table and manager statistics.
func (r *runner) finish(report *Report) {
	for _, s := range r.manager.Snapshot() {
		if len(s.Owners) == 0 && len(s.Waiters) == 0 {
			continue
		}
		state := ResourceState{
			Resource: string(s.Resource),
			Kind:     s.Kind.String(),
			Owners:   r.grants(s.Resource, s.Owners),
			Waiters:  r.grants(s.Resource, s.Waiters),
		}
		report.Final = append(report.Final, state)
	}
	report.Stats = r.manager.Stats()
}

func (r *runner) grants(key lock.ResourceKey, reqs []lock.Request) []Grant {
	if len(reqs) == 0 {
		return nil
	}
	out := make([]Grant, len(reqs))
	for i, req := range reqs {
		out[i] = Grant{Txn: r.label(req.Txn), Resource: string(key), Mode: req.Mode.String(), Upgrade: req.Upgrade}
	}
	return out
}

func expectationMet(expect string, res StepResult) bool {
	switch expect {
	case "":
		return true
	case ExpectGranted:
		return res.Result == ResultGranted
	case ExpectQueued:
		return res.Result == ResultQueued
	case ExpectOK:
		return res.Result != ResultError
	default:
		return res.Code == expect
	}
}
