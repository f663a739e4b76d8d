package config

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/blobsweep/internal/cli/output"
	"github.com/marmos91/blobsweep/pkg/config"
	"github.com/marmos91/blobsweep/pkg/scheduler"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the blobsweep configuration file.

Checks for syntax errors, missing required fields, invalid values and an
unparsable cron schedule.

Examples:
  # Validate default config
  blobsweep config validate

  # Validate specific config file
  blobsweep config validate --config /etc/blobsweep/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	cfg, err := config.MustLoad(path)
	if err != nil {
		return err
	}
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.GC.DryRun {
		warnings = append(warnings, "gc.dry_run is set - passes will not delete anything")
	}
	if cfg.GC.GracePeriod == 0 {
		warnings = append(warnings, "gc.grace_period is 0 - objects uploaded before their record is written may be deleted")
	}
	if cfg.References.Type == config.ReferenceStoreMemory {
		warnings = append(warnings, "references.type is memory - every object will be treated as an orphan")
	}

	next := "-"
	if sched, err := scheduler.Parse(cfg.Schedule.Cron); err == nil {
		loc, err := time.LoadLocation(cfg.Schedule.Timezone)
		if err != nil {
			loc = time.UTC
		}
		next = sched.Next(time.Now().In(loc)).Format(time.RFC3339)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", path)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintln(out, "\nConfiguration summary:")
	return output.PrintKeyValues(out, [][2]string{
		{"  References", cfg.References.Type},
		{"  Objects", cfg.Objects.Type},
		{"  Namespace", cfg.GC.Namespace},
		{"  Schedule", cfg.Schedule.Cron},
		{"  Next run", next},
		{"  Grace period", cfg.GC.GracePeriod.String()},
		{"  Log level", cfg.Logging.Level},
	})
}
