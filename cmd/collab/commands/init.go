package commands

import (
	"github.com/dyluth/collab/internal/scaffold"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default collab.yml",
	Long: `Write a collab.yml with the default timings, scoring model and event settings.
The file goes to the --config path (collab.yml in the current directory by default).

Use --force to overwrite an existing file.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing collab.yml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd)

	if err := scaffold.Initialize(configPath, forceInit); err != nil {
		return p.Error("initialization failed", err.Error(), nil)
	}

	scaffold.PrintSuccess(p, configPath)
	return nil
}
