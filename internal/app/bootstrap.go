package app

import (
	"fmt"
	"os"
	"sort"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/pyforge-dev/pyforge/internal/bootstrap"
	"github.com/pyforge-dev/pyforge/internal/output"
)

var (
	bootstrapList bool

	bootstrapCmd = &cobra.Command{
		Use:   "bootstrap [template]",
		Short: "Provision a runtime, virtualenv, and package set in one step",
		Long: `Run the full bootstrap pipeline for a named template.

The pipeline loads the runtime registry, picks (or provisions) a matching
Python runtime, creates the template's virtual environment, and installs
its package set. Every stage is idempotent: re-running a bootstrap skips
work that is already done.

Templates are built in ('minimal', 'data-science') and can be extended by
dropping YAML files in the templates directory.`,
		Example: `  # Bootstrap the data science stack
  pyforge bootstrap data-science

  # List available templates
  pyforge bootstrap --list`,
		Args: cobra.MaximumNArgs(1),
		RunE: runBootstrap,
	}
)

func init() {
	bootstrapCmd.Flags().BoolVar(&bootstrapList, "list", false, "list available templates")
	RootCmd.AddCommand(bootstrapCmd)
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)

	env, err := newAppEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if bootstrapList {
		return listTemplates(env)
	}

	if len(args) == 0 {
		return fmt.Errorf("a template name is required; see 'pyforge bootstrap --list'")
	}
	templateName := args[0]

	isTTY := isatty.IsTerminal(os.Stdout.Fd())
	var bar *output.ProgressBar
	progress := func(p bootstrap.Progress) {
		if isTTY {
			if bar == nil {
				bar = output.NewProgress(100, p.Message)
			}
			bar.SetDescription(p.Message)
			bar.SetCurrent(p.Percent)
		} else {
			fmt.Printf("[%3d%%] %s\n", p.Percent, p.Message)
		}
	}

	result, err := env.boot.EnsureEnvironment(ctx, templateName, progress)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	fmt.Printf("\n✓ Bootstrap complete (runtime %s, environment %s)\n", result.RuntimeID, result.EnvironmentID)
	for _, msg := range result.Messages {
		fmt.Printf("  ⚠ %s\n", msg)
	}
	return nil
}

func listTemplates(env *appEnv) error {
	templates, err := env.boot.Templates()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("%-16s %-10s %-26s %s\n", "Template", "Python", "Package Set", "Description")
	for _, name := range names {
		t := templates[name]
		version := t.PythonVersion
		if version == "" {
			version = "any"
		}
		set := t.PackageSet
		if set == "" {
			set = "—"
		}
		fmt.Printf("%-16s %-10s %-26s %s\n", t.Name, version, set, t.Description)
	}
	return nil
}
