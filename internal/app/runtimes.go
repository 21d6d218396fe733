package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyforge-dev/pyforge/internal/output"
)

var (
	runtimesCmd = &cobra.Command{
		Use:   "runtimes",
		Short: "List registered Python runtimes",
		Long: `List every Python runtime known to the registry.

Runtimes are added by 'pyforge scan', by 'pyforge runtimes add', or
implicitly when 'pyforge bootstrap' provisions an embedded distribution.`,
		Example: `  # List runtimes
  pyforge runtimes

  # Register a runtime manually
  pyforge runtimes add /opt/python-3.12

  # Drop a runtime from the registry
  pyforge runtimes remove <id>`,
		RunE: runRuntimesList,
	}

	runtimesAddCmd = &cobra.Command{
		Use:   "add <path>",
		Short: "Register the Python installation at a path",
		Args:  cobra.ExactArgs(1),
		RunE:  runRuntimesAdd,
	}

	runtimesRemoveCmd = &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a runtime from the registry",
		Args:  cobra.ExactArgs(1),
		RunE:  runRuntimesRemove,
	}
)

func init() {
	runtimesCmd.AddCommand(runtimesAddCmd)
	runtimesCmd.AddCommand(runtimesRemoveCmd)
	RootCmd.AddCommand(runtimesCmd)
}

func runRuntimesList(cmd *cobra.Command, args []string) error {
	env, err := newAppEnv(cmdContext(cmd))
	if err != nil {
		return err
	}
	defer env.Close()

	fmt.Print(output.RenderRuntimeTable(env.registry.List()))
	return nil
}

func runRuntimesAdd(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)

	env, err := newAppEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	rt, err := env.registry.Register(ctx, args[0], "")
	if err != nil {
		return fmt.Errorf("failed to register runtime: %w", err)
	}

	fmt.Printf("✓ Registered %s\n", rt.Name)
	return nil
}

func runRuntimesRemove(cmd *cobra.Command, args []string) error {
	env, err := newAppEnv(cmdContext(cmd))
	if err != nil {
		return err
	}
	defer env.Close()

	rt, err := env.resolveRuntime(args[0])
	if err != nil {
		return err
	}

	if err := env.registry.Remove(rt.ID); err != nil {
		return fmt.Errorf("failed to remove runtime: %w", err)
	}

	fmt.Printf("✓ Removed runtime %s\n", rt.Name)
	return nil
}
