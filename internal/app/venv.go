package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyforge-dev/pyforge/internal/output"
	"github.com/pyforge-dev/pyforge/internal/python"
)

var (
	venvRuntime string
	venvPath    string

	venvCmd = &cobra.Command{
		Use:   "venv",
		Short: "Manage virtual environments",
		Long: `Create, list, and remove virtual environments.

Environments live under the managed envs directory unless created with an
explicit --path. Conda runtimes list the environments under their own
envs/ directory instead. Environments found on disk that the database does
not know about are adopted automatically during listing.`,
		Example: `  # List environments for the sole registered runtime
  pyforge venv list

  # Create an environment
  pyforge venv create myenv --runtime <id>

  # Remove an environment by name or ID
  pyforge venv remove myenv`,
	}

	venvListCmd = &cobra.Command{
		Use:   "list",
		Short: "List virtual environments",
		RunE:  runVenvList,
	}

	venvCreateCmd = &cobra.Command{
		Use:   "create <name>",
		Short: "Create a virtual environment",
		Args:  cobra.ExactArgs(1),
		RunE:  runVenvCreate,
	}

	venvRemoveCmd = &cobra.Command{
		Use:   "remove <name|id>",
		Short: "Remove a virtual environment",
		Args:  cobra.ExactArgs(1),
		RunE:  runVenvRemove,
	}
)

func init() {
	venvListCmd.Flags().StringVar(&venvRuntime, "runtime", "", "restrict to one runtime (id or name)")
	venvCreateCmd.Flags().StringVar(&venvRuntime, "runtime", "", "runtime to build on (id or name)")
	venvCreateCmd.Flags().StringVar(&venvPath, "path", "", "environment directory (default: <data>/envs/<name>)")

	venvCmd.AddCommand(venvListCmd)
	venvCmd.AddCommand(venvCreateCmd)
	venvCmd.AddCommand(venvRemoveCmd)
	RootCmd.AddCommand(venvCmd)
}

func runVenvList(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)

	env, err := newAppEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	var runtimes []*python.Runtime
	if venvRuntime != "" {
		rt, err := env.resolveRuntime(venvRuntime)
		if err != nil {
			return err
		}
		runtimes = []*python.Runtime{rt}
	} else {
		runtimes = env.registry.List()
	}

	var all []*python.Environment
	for _, rt := range runtimes {
		envs, err := env.venvs.List(ctx, rt)
		if err != nil {
			return fmt.Errorf("failed to list environments for %s: %w", rt.Name, err)
		}
		all = append(all, envs...)
	}

	fmt.Print(output.RenderEnvironmentTable(all))
	return nil
}

func runVenvCreate(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)

	env, err := newAppEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	rt, err := env.resolveRuntime(venvRuntime)
	if err != nil {
		return err
	}

	created, err := env.venvs.Create(ctx, rt, args[0], venvPath)
	if err != nil {
		return fmt.Errorf("failed to create environment: %w", err)
	}

	fmt.Printf("✓ Environment %s ready at %s\n", created.Name, created.Path)
	return nil
}

func runVenvRemove(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)

	env, err := newAppEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	target, err := env.findEnvironment(ctx, args[0])
	if err != nil {
		return err
	}

	if err := env.venvs.Remove(ctx, target.ID); err != nil {
		return fmt.Errorf("failed to remove environment: %w", err)
	}

	fmt.Printf("✓ Removed environment %s\n", target.Name)
	return nil
}
