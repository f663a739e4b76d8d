package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/blobsweep/internal/cli/output"
	"github.com/marmos91/blobsweep/internal/logger"
	"github.com/marmos91/blobsweep/pkg/gc"
)

// TriggerCLI tags passes started by "blobsweep run".
const TriggerCLI = "cli"

var (
	runDryRun        bool
	runScopes        []string
	runOutput        string
	runFailOnPartial bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one reconciliation pass and exit",
	Long: `Run a single reconciliation pass against the configured stores and print
a report.

Exit status is 1 when the pass was aborted (the reference store could not list
scopes, or the pass was interrupted or timed out). With --fail-on-partial the
exit status is 2 when the pass finished but some scope or delete failed.

Examples:
  # See what would be deleted
  blobsweep run --dry-run

  # Sweep two tenants only, as JSON
  blobsweep run --scope u1 --scope u2 --output json

  # Fail a CI job on any delete failure
  blobsweep run --fail-on-partial`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Report orphans without deleting them (overrides gc.dry_run)")
	runCmd.Flags().StringArrayVar(&runScopes, "scope", nil, "Restrict the pass to this scope (repeatable)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "table", "Output format (table|json|yaml)")
	runCmd.Flags().BoolVar(&runFailOnPartial, "fail-on-partial", false, "Exit 2 when any scope or delete failed")
}

func runRun(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(runOutput)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.GC.DryRun = runDryRun
	}
	if len(runScopes) > 0 {
		cfg.GC.Scopes = runScopes
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}
	logger.Debug("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := initObservability(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	collector := gc.New(st.refs, st.objects, cfg.GC.Options()...)

	if cfg.GC.PassTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.GC.PassTimeout)
		defer cancel()
	}

	result, runErr := collector.Run(ctx, TriggerCLI)
	return reportPass(cmd.OutOrStdout(), format, result, runErr, runFailOnPartial)
}

// reportPass prints result and maps the outcome to an exit status.
func reportPass(w io.Writer, format output.Format, result *gc.PassResult, runErr error, failOnPartial bool) error {
	if result != nil {
		p := output.NewPrinter(w, format)
		report := passReport{result: result}
		if !p.Structured() {
			if err := output.PrintKeyValues(w, report.Summary()); err != nil {
				return err
			}
			p.Printf("\n")
		}
		if err := p.Print(report); err != nil {
			return err
		}
	}

	if runErr != nil {
		if gc.IsPassAborted(runErr) {
			return &ExitError{Code: 1, Err: runErr}
		}
		return runErr
	}

	if failOnPartial && result.HasFailures() {
		return &ExitError{
			Code: 2,
			Err:  fmt.Errorf("pass %s completed with %d scope errors and %d failed deletes", result.ID, len(result.ScopeErrors), result.TotalFailed),
		}
	}
	return nil
}
