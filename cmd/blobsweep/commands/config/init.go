package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/blobsweep/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a commented default configuration file.

By default the file is created at $XDG_CONFIG_HOME/blobsweep/config.yaml.
Use --config to choose another path.

Examples:
  # Initialize with default location
  blobsweep config init

  # Initialize with custom path
  blobsweep config init --config /etc/blobsweep/config.yaml

  # Force overwrite existing config
  blobsweep config init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	var err error
	if path != "" {
		err = config.InitConfigToPath(path, initForce)
	} else {
		path, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", path)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Point references and objects at your stores")
	_, _ = fmt.Fprintln(out, "  2. Preview a pass with: blobsweep run --dry-run")
	_, _ = fmt.Fprintf(out, "  3. Run on a schedule with: blobsweep serve --config %s\n", path)
	return nil
}
