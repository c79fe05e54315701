package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/marmos91/mglock/internal/cli/output"
	"github.com/marmos91/mglock/internal/logger"
	"github.com/marmos91/mglock/pkg/lock"
	"github.com/marmos91/mglock/pkg/scenario"
)

// ErrReplayFailed is returned when a replay ran but an expectation was not met.
var ErrReplayFailed = errors.New("replay failed")

var (
	replayOutput        string
	replayMetrics       bool
	replayStopOnFailure bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <script.yaml>",
	Short: "Replay a lock scenario script",
	Long: `Replay a scenario script against a fresh lock manager.

Every step is executed in order. Steps with an expectation are checked
against what the manager did; the command exits non-zero if any expectation
was not met.

Examples:
  # Replay a script and print the step and lock tables
  mglock replay upgrade.yaml

  # Machine-readable report
  mglock replay upgrade.yaml --output json

  # Append the lock manager metrics in Prometheus text format
  mglock replay upgrade.yaml --metrics

  # Require intent locks held by the requesting transaction itself
  MGLOCK_LOCK_STRICT_INTENT_CHECK=true mglock replay upgrade.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVarP(&replayOutput, "output", "o", "table", "Output format (table|json|yaml)")
	replayCmd.Flags().BoolVar(&replayMetrics, "metrics", false, "Print lock manager metrics after the report")
	replayCmd.Flags().BoolVar(&replayStopOnFailure, "stop-on-failure", false, "Stop at the first unmet expectation")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadedConfig()
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(replayOutput)
	if err != nil {
		return err
	}

	script, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	var (
		registry *prometheus.Registry
		metrics  *lock.Metrics
	)
	if replayMetrics || cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		metrics = lock.NewMetricsWithNamespace(registry, cfg.Metrics.Namespace)
	}

	ctx := cmd.Context()
	if cfg.Replay.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Replay.Timeout)
		defer cancel()
	}

	logger.Debug("replaying script", logger.Path(args[0]), logger.Script(script.Name))
	report, err := scenario.Run(ctx, script, scenario.Options{
		Lock:          cfg.LockConfig(),
		Metrics:       metrics,
		StopOnFailure: replayStopOnFailure || cfg.Replay.StopOnFailure,
	})
	if err != nil && report == nil {
		return err
	}

	out := cmd.OutOrStdout()
	printer := output.NewPrinter(out, format, useColor(out))
	if format == output.FormatTable {
		if perr := printer.Print(reportView{report}); perr != nil {
			return perr
		}
		printSummary(printer, report)
	} else if perr := printer.Print(report); perr != nil {
		return perr
	}

	if replayMetrics {
		if merr := writeMetrics(out, registry); merr != nil {
			return merr
		}
	}

	if err != nil {
		return err
	}
	if report.Failed() {
		return fmt.Errorf("%w: %d of %d expectations not met", ErrReplayFailed, len(report.Failures()), len(report.Steps))
	}
	return nil
}

// reportView renders a report as step and lock tables.
type reportView struct {
	*scenario.Report
}

// Sections implements output.SectionRenderer.
func (v reportView) Sections() []output.Section {
	return []output.Section{
		{Title: "Steps", Table: scenario.StepTable(v.Steps)},
		{Title: "Locks", Table: scenario.LockTable(v.Final)},
	}
}

func printSummary(p *output.Printer, r *scenario.Report) {
	p.Printf("\n")
	_ = output.KeyValueTable(p.Writer(), [][2]string{
		{"Script", r.Script},
		{"Steps", strconv.Itoa(len(r.Steps))},
		{"Owners", strconv.Itoa(r.Stats.Owners)},
		{"Waiters", strconv.Itoa(r.Stats.Waiters)},
	})

	switch failures := len(r.Failures()); {
	case failures > 0:
		p.Fail(fmt.Sprintf("FAIL: %d expectation(s) not met", failures))
	case r.Aborted:
		p.Fail("FAIL: replay aborted")
	default:
		p.Pass("PASS")
	}
}

// writeMetrics dumps every gathered metric family in Prometheus text format.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	return nil
}

func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && logger.IsTerminal(f)
}
