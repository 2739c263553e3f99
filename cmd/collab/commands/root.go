package commands

import (
	"fmt"

	"github.com/dyluth/collab/internal/config"
	"github.com/dyluth/collab/internal/printer"
	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "collab",
	Short: "collab - campaign acceptance simulator",
	Long: `collab dispatches a campaign to a pool of creators and simulates their
answers. Each creator replies after a random delay; the campaign locks the
moment the required number of creators has accepted, and every answer still
in flight is cancelled.

Run events are logged and can be published to Redis for 'collab watch'.`,
	// Prevent silent success when unknown flags are passed to root command
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute runs the root command. Cobra's own error and usage printing is
// silenced because errors are rendered by the printer package.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultFile, "Path to collab.yml")
}

func newPrinter(cmd *cobra.Command) *printer.Printer {
	return printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// loadConfig loads --config, falling back to defaults when the default file
// does not exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	explicit := cmd.Flags().Changed("config")
	cfg, err := config.LoadOrDefault(configPath, explicit)
	if err != nil {
		return nil, newPrinter(cmd).ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": configPath},
			[]string{"Regenerate the default file:\n  collab init --force"},
		)
	}
	return cfg, nil
}
