package app

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/pyforge-dev/pyforge/internal/output"
)

var (
	scanQuiet bool

	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Discover and register Python installations",
		Long: `Scan the system for Python installations and register them.

The scan walks PATH, the managed embedded directory, and any configured
search paths. Interpreters found are probed for version, architecture,
and package manager, then stored in the runtime registry. Re-scanning is
safe: known runtimes keep their identity and get refreshed metadata.

The scan command should be run:
  • After installing pyforge for the first time
  • After installing or removing a Python distribution
  • Periodically to keep the registry in sync`,
		Example: `  # Discover installations
  pyforge scan

  # Scan quietly (suppress output)
  pyforge scan --quiet`,
		RunE: runScan,
	}
)

func init() {
	scanCmd.Flags().BoolVar(&scanQuiet, "quiet", false, "suppress output")
	RootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)

	env, err := newAppEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	isTTY := isatty.IsTerminal(os.Stdout.Fd())
	var spinner *output.Spinner
	if !scanQuiet && isTTY {
		spinner = output.NewSpinner("Discovering Python installations...")
		spinner.Start()
	}

	discovered, err := env.registry.Discover(ctx)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return fmt.Errorf("failed to discover runtimes: %w", err)
	}

	if scanQuiet {
		return nil
	}

	fmt.Printf("✓ Scan complete: %d runtime(s) discovered, %d registered total\n\n",
		len(discovered), len(env.registry.List()))
	fmt.Print(output.RenderRuntimeTable(env.registry.List()))
	return nil
}
