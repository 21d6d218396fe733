package venv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/pyforge-dev/pyforge/internal/python"
	"github.com/pyforge-dev/pyforge/internal/registry"
	"github.com/pyforge-dev/pyforge/internal/store"
)

// ErrEnvironmentInUse is returned when removal is refused because the
// environment backs a running session.
var ErrEnvironmentInUse = errors.New("virtual environment is in use")

// Manager creates, enumerates, and removes virtual environments rooted at a
// base runtime.
type Manager struct {
	store    *store.Store
	runner   python.Runner
	registry *registry.Registry
	envsDir  string

	// InUse, when set, reports whether an environment is the active
	// interpreter of a running session. Removal is refused while it
	// returns true. Session tracking itself lives outside this package.
	InUse func(env *python.Environment) bool
}

// New creates a Manager. envsDir is where managed environments are created
// when the caller does not give an explicit path.
func New(st *store.Store, runner python.Runner, reg *registry.Registry, envsDir string) *Manager {
	return &Manager{store: st, runner: runner, registry: reg, envsDir: envsDir}
}

// Create provisions a virtual environment from the base runtime. If path is
// empty the environment is created under the managed envs directory. When
// path already contains a valid venv, creation is skipped and the existing
// environment is returned (registering it if it was untracked).
func (m *Manager) Create(ctx context.Context, rt *python.Runtime, name, path string) (*python.Environment, error) {
	if rt == nil {
		return nil, fmt.Errorf("base runtime is required")
	}
	if name == "" {
		return nil, fmt.Errorf("environment name is required")
	}
	// Environments must reference a registered runtime at creation time.
	if _, err := m.registry.Get(rt.ID); err != nil {
		return nil, fmt.Errorf("base runtime not registered: %w", err)
	}

	if path == "" {
		path = filepath.Join(m.envsDir, name)
	}
	path = filepath.Clean(path)

	if python.IsVenv(path) {
		if env, err := m.store.GetEnvironmentByPath(path); err == nil {
			return env, nil
		}
		// Valid venv on disk but untracked: adopt it.
		return m.record(ctx, rt, name, path)
	}

	baseExe, ok := python.FindInterpreter(rt.Path)
	if !ok {
		return nil, fmt.Errorf("runtime %s has no interpreter at %s", rt.Name, rt.Path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}

	log.WithFields(log.Fields{
		"name": name,
		"path": path,
		"base": rt.Name,
	}).Info("creating virtual environment")

	if err := python.CreateVenv(ctx, m.runner, baseExe, path); err != nil {
		return nil, err
	}
	if !python.IsVenv(path) {
		return nil, fmt.Errorf("venv creation produced no usable environment at %s", path)
	}

	return m.record(ctx, rt, name, path)
}

// record snapshots the environment's interpreter version and persists it.
func (m *Manager) record(ctx context.Context, rt *python.Runtime, name, path string) (*python.Environment, error) {
	env := &python.Environment{
		ID:        uuid.NewString(),
		Name:      name,
		Path:      path,
		RuntimeID: rt.ID,
		CreatedAt: time.Now(),
	}

	if exe, ok := python.FindInterpreter(path); ok {
		version, err := python.Version(ctx, m.runner, exe)
		if err != nil {
			log.WithFields(log.Fields{"env": name}).Warnf("version snapshot failed: %v", err)
		} else {
			env.PythonVersion = version
		}
	}

	if err := m.store.UpsertEnvironment(env); err != nil {
		return nil, err
	}
	return env, nil
}

// List enumerates the environments associated with a runtime. Conda runtimes
// keep their environments under <root>/envs; everything else lives in the
// managed envs directory. Untracked environments found on disk are adopted
// into the store.
func (m *Manager) List(ctx context.Context, rt *python.Runtime) ([]*python.Environment, error) {
	if rt == nil {
		return nil, fmt.Errorf("runtime is required")
	}

	scanDir := m.envsDir
	if rt.PackageManager == python.PkgManagerConda {
		scanDir = filepath.Join(rt.Path, "envs")
	}

	known, err := m.store.ListEnvironments(rt.ID)
	if err != nil && !errors.Is(err, store.ErrNotInitialized) {
		return nil, err
	}
	byPath := make(map[string]*python.Environment, len(known))
	for _, env := range known {
		byPath[env.Path] = env
	}

	entries, err := os.ReadDir(scanDir)
	if err != nil {
		if os.IsNotExist(err) {
			return known, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", scanDir, err)
	}

	envs := make([]*python.Environment, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(scanDir, e.Name())

		// Conda envs have no pyvenv.cfg; an interpreter is enough there.
		var valid bool
		if rt.PackageManager == python.PkgManagerConda {
			_, valid = python.FindInterpreter(path)
		} else {
			valid = python.IsVenv(path)
		}
		if !valid {
			continue
		}

		if env, ok := byPath[path]; ok {
			envs = append(envs, env)
			delete(byPath, path)
			continue
		}

		env, err := m.record(ctx, rt, e.Name(), path)
		if err != nil {
			log.WithFields(log.Fields{"path": path}).Warnf("failed to adopt environment: %v", err)
			continue
		}
		envs = append(envs, env)
	}

	// Stored records whose directory disappeared stay listed; health and
	// removal surface the problem rather than silently dropping them.
	for _, env := range byPath {
		envs = append(envs, env)
	}

	return envs, nil
}

// Get retrieves a tracked environment by ID.
func (m *Manager) Get(id string) (*python.Environment, error) {
	return m.store.GetEnvironment(id)
}

// Remove deletes an environment's directory and its registry record. It
// refuses to remove an environment that the InUse hook reports as active.
func (m *Manager) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env, err := m.store.GetEnvironment(id)
	if err != nil {
		return err
	}

	if m.InUse != nil && m.InUse(env) {
		return fmt.Errorf("%w: %s", ErrEnvironmentInUse, env.Name)
	}

	if err := os.RemoveAll(env.Path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", env.Path, err)
	}
	if err := m.store.DeleteEnvironment(id); err != nil {
		return err
	}

	log.WithFields(log.Fields{"env": env.Name, "path": env.Path}).Info("virtual environment removed")
	return nil
}
