package app

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/pyforge-dev/pyforge/internal/output"
	"github.com/pyforge-dev/pyforge/internal/pkgset"
)

var (
	packsEnv         string
	packsDescription string

	packsCmd = &cobra.Command{
		Use:   "packs",
		Short: "Manage curated package sets",
		Long: `List, inspect, install, and capture package sets.

Package sets bundle related Python packages under one name (for example
"data science essentials"). Built-in sets ship with pyforge; additional
sets are loaded from requirements files in the requirements directory,
and 'packs save' captures an environment's installed packages as a new
set.`,
		Example: `  # Browse the catalog
  pyforge packs list

  # Inspect one set
  pyforge packs show "machine learning basics"

  # Install a set into an environment (best effort)
  pyforge packs install "data science essentials" --env myenv

  # Capture an environment as a reusable set
  pyforge packs save my-stack --env myenv`,
	}

	packsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List available package sets",
		RunE:  runPacksList,
	}

	packsShowCmd = &cobra.Command{
		Use:   "show <name>",
		Short: "Show a package set's contents",
		Args:  cobra.ExactArgs(1),
		RunE:  runPacksShow,
	}

	packsInstallCmd = &cobra.Command{
		Use:   "install <name>",
		Short: "Install a package set into an environment",
		Long: `Install every package of a set into a virtual environment.

Installation is best effort: a failing package is recorded and skipped,
and the remaining packages still install. The command reports which
packages failed and exits non-zero only when the set or environment does
not exist.`,
		Args: cobra.ExactArgs(1),
		RunE: runPacksInstall,
	}

	packsSaveCmd = &cobra.Command{
		Use:   "save <name>",
		Short: "Capture an environment's packages as a set",
		Args:  cobra.ExactArgs(1),
		RunE:  runPacksSave,
	}
)

func init() {
	packsInstallCmd.Flags().StringVar(&packsEnv, "env", "", "target environment (name or id)")
	packsInstallCmd.MarkFlagRequired("env")
	packsSaveCmd.Flags().StringVar(&packsEnv, "env", "", "source environment (name or id)")
	packsSaveCmd.MarkFlagRequired("env")
	packsSaveCmd.Flags().StringVar(&packsDescription, "description", "", "description for the new set")

	packsCmd.AddCommand(packsListCmd)
	packsCmd.AddCommand(packsShowCmd)
	packsCmd.AddCommand(packsInstallCmd)
	packsCmd.AddCommand(packsSaveCmd)
	RootCmd.AddCommand(packsCmd)
}

func runPacksList(cmd *cobra.Command, args []string) error {
	env, err := newAppEnv(cmdContext(cmd))
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.packs.LoadFromFiles(); err != nil {
		return fmt.Errorf("failed to load package sets: %w", err)
	}

	fmt.Print(output.RenderPackageSetTable(env.packs.List()))
	return nil
}

func runPacksShow(cmd *cobra.Command, args []string) error {
	env, err := newAppEnv(cmdContext(cmd))
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.packs.LoadFromFiles(); err != nil {
		return fmt.Errorf("failed to load package sets: %w", err)
	}

	set, err := env.packs.Get(args[0])
	if err != nil {
		return err
	}

	fmt.Print(output.RenderPackageSetDetail(set))
	return nil
}

func runPacksInstall(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)

	env, err := newAppEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.packs.LoadFromFiles(); err != nil {
		return fmt.Errorf("failed to load package sets: %w", err)
	}

	target, err := env.findEnvironment(ctx, packsEnv)
	if err != nil {
		return err
	}

	set, err := env.packs.Get(args[0])
	if err != nil {
		return err
	}

	isTTY := isatty.IsTerminal(os.Stdout.Fd())
	var bar *output.ProgressBar
	if isTTY {
		bar = output.NewProgress(len(set.Packages), fmt.Sprintf("installing %s", set.Name))
	}

	var failed []string
	allOK, err := env.packs.InstallSet(ctx, set.Name, target, func(p pkgset.InstallProgress) {
		if p.Err != nil {
			failed = append(failed, p.Package)
		}
		if bar != nil {
			bar.SetDescription(p.Package)
			bar.Increment()
		} else {
			status := "ok"
			if p.Err != nil {
				status = fmt.Sprintf("failed: %v", p.Err)
			}
			fmt.Printf("[%d/%d] %s: %s\n", p.Index, p.Total, p.Package, status)
		}
	})
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	if allOK {
		fmt.Printf("✓ Installed %q into %s (%d packages)\n", set.Name, target.Name, len(set.Packages))
		return nil
	}

	fmt.Printf("⚠ Installed %q into %s with failures:\n", set.Name, target.Name)
	for _, name := range failed {
		fmt.Printf("  ✗ %s\n", name)
	}
	return nil
}

func runPacksSave(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)

	env, err := newAppEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	target, err := env.findEnvironment(ctx, packsEnv)
	if err != nil {
		return err
	}

	set, err := env.packs.SaveFromEnvironment(ctx, args[0], target, packsDescription)
	if err != nil {
		return fmt.Errorf("failed to save package set: %w", err)
	}

	fmt.Printf("✓ Saved set %q (%d packages, category %s)\n", set.Name, len(set.Packages), set.Category)
	return nil
}
