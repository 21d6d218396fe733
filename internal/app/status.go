package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registry and environment statistics",
	Long: `Display an overview of the pyforge installation.

Shows:
  • Database and data directory locations
  • Registered runtimes and their versions
  • Virtual environment counts per runtime
  • Available package sets`,
	Example: `  # Check status
  pyforge status`,
	RunE: runStatus,
}

func init() {
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)

	env, err := newAppEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	fmt.Println("pyforge status")
	fmt.Println()
	fmt.Printf("Data directory:  %s\n", env.cfg.DataDir)
	fmt.Printf("Database:        %s\n", env.cfg.DBPath)
	fmt.Println()

	runtimes := env.registry.List()
	fmt.Printf("Runtimes:        %d registered\n", len(runtimes))
	for _, rt := range runtimes {
		envs, err := env.venvs.List(ctx, rt)
		count := 0
		if err == nil {
			count = len(envs)
		}
		fmt.Printf("  • %s [%s]: %d environment(s)\n", rt.Name, rt.Kind, count)
	}
	fmt.Println()

	if err := env.packs.LoadFromFiles(); err == nil {
		fmt.Printf("Package sets:    %d available\n", len(env.packs.List()))
	}

	if len(runtimes) == 0 {
		fmt.Println()
		fmt.Println("Tip: Run 'pyforge scan' to discover Python installations.")
	}
	return nil
}
