package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pyforge-dev/pyforge/internal/health"
	"github.com/pyforge-dev/pyforge/internal/output"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose common issues and check runtime health",
	Long: `Runs diagnostic checks on your pyforge installation.

Checks:
  • Data directory and database are accessible
  • Runtimes are registered
  • Every runtime answers version, pip, and execution probes
  • Recommends next steps`,
	RunE: runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("Running pyforge diagnostics...")
	fmt.Println()

	// Critical issues exit 1 via the returned error; warnings-only exits 2
	// directly so main's error handler does not double-print.
	criticalIssues := 0
	warningIssues := 0

	env, err := newAppEnv(cmdContext(cmd))
	if err != nil {
		fmt.Println("✗ Cannot initialize:", err)
		fmt.Println()
		return fmt.Errorf("diagnostics failed")
	}
	defer env.Close()
	fmt.Println("✓ Database accessible:", env.cfg.DBPath)

	runtimes := env.registry.List()
	if len(runtimes) == 0 {
		fmt.Println("✗ No runtimes registered")
		fmt.Println("  Action: Run 'pyforge scan' or 'pyforge bootstrap minimal'")
		criticalIssues++
	} else {
		fmt.Printf("✓ %d runtime(s) registered\n", len(runtimes))

		report := env.monitor.Check(cmdContext(cmd))
		fmt.Println()
		fmt.Print(output.RenderHealthReport(report))

		for _, rt := range report.Runtimes {
			switch rt.Status {
			case health.StatusDegraded:
				warningIssues++
			case health.StatusHealthy:
			default:
				criticalIssues++
			}
		}
	}

	fmt.Println()
	if criticalIssues == 0 && warningIssues == 0 {
		fmt.Println("✓ All checks passed!")
		fmt.Println()
		fmt.Println("Next steps:")
		fmt.Println("  • Bootstrap an environment: pyforge bootstrap data-science")
		fmt.Println("  • Browse package sets: pyforge packs list")
		return nil
	}

	if criticalIssues > 0 {
		fmt.Printf("Found %d critical issue(s) and %d warning(s).\n", criticalIssues, warningIssues)
		return fmt.Errorf("diagnostics failed")
	}

	fmt.Printf("Found %d warning(s). System is functional but degraded.\n", warningIssues)
	os.Exit(2)
	return nil // unreachable; satisfies compiler
}
