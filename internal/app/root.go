package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	dbPath  string

	// RootCmd is the root command for pyforge
	RootCmd = &cobra.Command{
		Use:   "pyforge",
		Short: "Python runtime and environment management",
		Long: `pyforge discovers Python installations, provisions embedded runtimes,
and manages virtual environments and curated package sets.

Quick Start:
  1. pyforge scan                       # discover installed Pythons
  2. pyforge bootstrap data-science     # runtime + venv + packages in one step
  3. pyforge doctor                     # verify everything works

Features:
  • Interpreter discovery across PATH, conda roots, and custom paths
  • Embedded Python provisioning when no suitable runtime exists
  • Idempotent virtual environment management
  • Curated package sets with requirements round-tripping
  • Background health monitoring

Examples:
  # List registered runtimes
  pyforge runtimes

  # Create a virtual environment on a specific runtime
  pyforge venv create myenv --runtime <id>

  # Install a package set into an environment
  pyforge packs install "data science essentials" --env myenv

  # Watch requirements files and runtime health
  pyforge watch`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("pyforge: Python runtime and environment management")
			fmt.Println()
			fmt.Println("Run 'pyforge scan' to discover Python installations.")
			fmt.Println("Run 'pyforge --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.pyforge/pyforge.yaml)")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: ~/.pyforge/pyforge.db)")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}
