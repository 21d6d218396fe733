package bootstrap

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/pyforge-dev/pyforge/internal/pkgset"
	"github.com/pyforge-dev/pyforge/internal/provision"
	"github.com/pyforge-dev/pyforge/internal/python"
	"github.com/pyforge-dev/pyforge/internal/registry"
	"github.com/pyforge-dev/pyforge/internal/venv"
)

// Stage identifies a step of the bootstrap pipeline.
type Stage string

const (
	StageInitializing         Stage = "initializing"
	StageInitializingRegistry Stage = "initializing registry"
	StageLoadingProfiles      Stage = "loading profiles"
	StageProvisioningPython   Stage = "provisioning python"
	StageCreatingVirtualEnv   Stage = "creating virtualenv"
	StageInstallingPackages   Stage = "installing packages"
	StageComplete             Stage = "complete"
	StageFailed               Stage = "failed"
)

// stagePercent maps each stage to its rough share of the pipeline.
var stagePercent = map[Stage]int{
	StageInitializing:         0,
	StageInitializingRegistry: 10,
	StageLoadingProfiles:      20,
	StageProvisioningPython:   35,
	StageCreatingVirtualEnv:   60,
	StageInstallingPackages:   75,
	StageComplete:             100,
	StageFailed:               100,
}

// Progress is emitted on every stage transition. It is the sole observable
// side channel during a multi-minute bootstrap.
type Progress struct {
	Stage   Stage
	Percent int
	Message string
}

// ProgressFunc receives stage transitions. May be nil.
type ProgressFunc func(Progress)

// Result summarizes one bootstrap run.
type Result struct {
	OK            bool
	RuntimeID     string
	EnvironmentID string
	// Messages carries stage failures and per-package install problems.
	Messages []string
}

// Manager orchestrates registry initialization, runtime provisioning,
// virtualenv creation, and package installation for a named template.
// Stages run strictly in order; re-running is idempotent because every
// sub-manager skips work that already exists.
type Manager struct {
	registry    *registry.Registry
	provisioner *provision.Provisioner
	venvs       *venv.Manager
	packs       *pkgset.Manager

	embedded     provision.Options
	templatesDir string
}

// New wires a Manager. embedded carries the pinned fallback distribution
// used when no suitable runtime is registered.
func New(reg *registry.Registry, prov *provision.Provisioner, venvs *venv.Manager, packs *pkgset.Manager, embedded provision.Options, templatesDir string) *Manager {
	return &Manager{
		registry:     reg,
		provisioner:  prov,
		venvs:        venvs,
		packs:        packs,
		embedded:     embedded,
		templatesDir: templatesDir,
	}
}

// Templates returns the available templates (built-ins plus YAML overlays).
func (m *Manager) Templates() (map[string]*Template, error) {
	return loadTemplates(m.templatesDir)
}

// EnsureEnvironment guarantees a usable runtime + virtualenv + package set
// for the named template. The context is checked between stages and passed
// through to downloads and install loops; cancelling mid-stage leaves
// partial state behind, which the next run's existence checks absorb.
func (m *Manager) EnsureEnvironment(ctx context.Context, templateName string, progress ProgressFunc) (*Result, error) {
	result := &Result{}
	emit := func(stage Stage, msg string) {
		if progress != nil {
			progress(Progress{Stage: stage, Percent: stagePercent[stage], Message: msg})
		}
	}
	fail := func(stage Stage, err error) (*Result, error) {
		msg := fmt.Sprintf("%s failed: %v", stage, err)
		result.Messages = append(result.Messages, msg)
		emit(StageFailed, msg)
		return result, fmt.Errorf("bootstrap %s: %w", stage, err)
	}

	emit(StageInitializing, "starting bootstrap")

	// Stage: registry
	if err := ctx.Err(); err != nil {
		return fail(StageInitializingRegistry, err)
	}
	emit(StageInitializingRegistry, "loading runtime registry")
	if err := m.registry.Initialize(ctx); err != nil {
		return fail(StageInitializingRegistry, err)
	}

	// Stage: profiles
	if err := ctx.Err(); err != nil {
		return fail(StageLoadingProfiles, err)
	}
	emit(StageLoadingProfiles, "loading templates and package sets")
	templates, err := loadTemplates(m.templatesDir)
	if err != nil {
		return fail(StageLoadingProfiles, err)
	}
	template, ok := templates[templateName]
	if !ok {
		return fail(StageLoadingProfiles, fmt.Errorf("unknown template %q", templateName))
	}
	if err := m.packs.LoadFromFiles(); err != nil {
		return fail(StageLoadingProfiles, err)
	}

	// Stage: runtime
	if err := ctx.Err(); err != nil {
		return fail(StageProvisioningPython, err)
	}
	rt := m.selectRuntime(template.PythonVersion)
	if rt != nil {
		emit(StageProvisioningPython, fmt.Sprintf("using existing runtime %s", rt.Name))
	} else {
		emit(StageProvisioningPython, fmt.Sprintf("provisioning embedded Python %s", m.embedded.Version))
		rt, err = m.provisioner.Ensure(ctx, m.embedded)
		if err != nil {
			return fail(StageProvisioningPython, err)
		}
	}
	result.RuntimeID = rt.ID

	// Stage: virtualenv
	if err := ctx.Err(); err != nil {
		return fail(StageCreatingVirtualEnv, err)
	}
	emit(StageCreatingVirtualEnv, fmt.Sprintf("ensuring virtual environment %q", template.EnvName))
	env, err := m.venvs.Create(ctx, rt, template.EnvName, "")
	if err != nil {
		return fail(StageCreatingVirtualEnv, err)
	}
	result.EnvironmentID = env.ID

	// Stage: packages. Individual install failures do not fail the
	// bootstrap; they surface in the result's message list.
	if err := ctx.Err(); err != nil {
		return fail(StageInstallingPackages, err)
	}
	if template.PackageSet != "" {
		emit(StageInstallingPackages, fmt.Sprintf("installing package set %q", template.PackageSet))
		allOK, err := m.packs.InstallSet(ctx, template.PackageSet, env, func(p pkgset.InstallProgress) {
			if p.Err != nil {
				result.Messages = append(result.Messages, fmt.Sprintf("package %s failed: %v", p.Package, p.Err))
			}
		})
		if err != nil {
			return fail(StageInstallingPackages, err)
		}
		if !allOK {
			result.Messages = append(result.Messages, fmt.Sprintf("package set %q installed with failures", template.PackageSet))
		}
	} else {
		emit(StageInstallingPackages, "template has no package set")
	}

	result.OK = true
	emit(StageComplete, "bootstrap complete")

	log.WithFields(log.Fields{
		"template": template.Name,
		"runtime":  rt.Name,
		"env":      env.Name,
		"warnings": len(result.Messages),
	}).Info("bootstrap finished")

	return result, nil
}

// selectRuntime returns a registered runtime whose version matches the
// requested prefix, or nil when none qualifies.
func (m *Manager) selectRuntime(versionPrefix string) *python.Runtime {
	for _, rt := range m.registry.List() {
		if _, ok := python.FindInterpreter(rt.Path); !ok {
			continue
		}
		if versionPrefix == "" || strings.HasPrefix(rt.Version, versionPrefix) {
			return rt
		}
	}
	return nil
}
