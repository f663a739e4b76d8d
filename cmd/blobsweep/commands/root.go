// Package commands implements the blobsweep CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/blobsweep/cmd/blobsweep/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "blobsweep",
	Short: "Orphan blob garbage collector",
	Long: `blobsweep deletes blobs that no reference record points at any more.

For every tenant scope in the reference store it lists the objects under
<namespace>/<scope>/ and removes those no record references. Objects newer
than the grace period are left alone.

Use "blobsweep [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExitError makes Execute's caller exit with Code. Err, when set, is printed
// first.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for tests.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/blobsweep/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(forgetCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(config.Cmd)
}

// GetConfigFile returns the --config flag value.
func GetConfigFile() string {
	return cfgFile
}
