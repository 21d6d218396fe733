package pkgset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/pyforge-dev/pyforge/internal/python"
	"github.com/pyforge-dev/pyforge/internal/store"
)

// InstallProgress reports the outcome of one package inside a batch install.
type InstallProgress struct {
	Index   int // 1-based
	Total   int
	Package string
	Err     error // nil on success
}

// Manager resolves named package sets and drives installation into target
// environments. The in-memory set map is guarded by a mutex: the watch
// command reloads sets from a timer callback while foreground installs read
// them.
type Manager struct {
	store  *store.Store
	runner python.Runner
	dir    string // requirements directory

	mu   sync.Mutex
	sets map[string]*PackageSet // keyed by normalizeKey(name)
}

// New creates a Manager seeded with the built-in catalog. dir is the
// requirements directory used for set persistence.
func New(st *store.Store, runner python.Runner, dir string) *Manager {
	m := &Manager{
		store:  st,
		runner: runner,
		dir:    dir,
		sets:   make(map[string]*PackageSet),
	}
	for _, set := range builtinCatalog() {
		m.sets[normalizeKey(set.Name)] = set
	}
	return m
}

// Get resolves a set by name, case-insensitively.
func (m *Manager) Get(name string) (*PackageSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sets[normalizeKey(name)]
	if !ok {
		return nil, fmt.Errorf("package set %q not found", name)
	}
	return set, nil
}

// List returns all known sets sorted by name.
func (m *Manager) List() []*PackageSet {
	m.mu.Lock()
	defer m.mu.Unlock()

	sets := make([]*PackageSet, 0, len(m.sets))
	for _, set := range m.sets {
		sets = append(sets, set)
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i].Name < sets[j].Name })
	return sets
}

// LoadFromFiles scans the requirements directory for *.txt files and
// registers each as a set keyed by its file name, overlaying the built-in
// catalog. The category is inferred from well-known package names.
func (m *Manager) LoadFromFiles() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read requirements directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}

		path := filepath.Join(m.dir, e.Name())
		reqs, err := ParseRequirementsFile(path)
		if err != nil {
			log.WithFields(log.Fields{"file": path}).Warnf("skipping unreadable requirements file: %v", err)
			continue
		}

		key := strings.TrimSuffix(e.Name(), ".txt")
		set := &PackageSet{
			Name:        displayName(key),
			Description: fmt.Sprintf("Loaded from %s", e.Name()),
			Category:    InferCategory(requirementNames(reqs)),
		}
		for _, req := range reqs {
			set.Packages = append(set.Packages, PackageDefinition{
				Name:       req.Name,
				Constraint: req.Constraint,
				Status:     StatusAvailable,
				Category:   PackageCategory(req.Name),
			})
		}

		m.mu.Lock()
		m.sets[normalizeKey(key)] = set
		m.mu.Unlock()
	}

	return nil
}

// InstallSet installs every package of the named set into the environment,
// strictly in set order, one pip invocation per package. Individual install
// failures are logged and reported through progress but do not abort the
// batch; the returned flag is true only when every package installed. The
// environment's auto-update flag is suspended for the duration, restored on
// every return path, and, if it was enabled, the requirements file is
// regenerated from the environment's final package state.
func (m *Manager) InstallSet(ctx context.Context, name string, env *python.Environment, progress func(InstallProgress)) (bool, error) {
	if env == nil {
		return false, fmt.Errorf("target environment is required")
	}
	set, err := m.Get(name)
	if err != nil {
		return false, err
	}

	exe := env.Interpreter()
	if exe == "" {
		return false, fmt.Errorf("environment %s has no interpreter at %s", env.Name, env.Path)
	}

	// Work on a copy: the catalog set behind Get is shared with concurrent
	// List readers and the watch reload path, and its definitions describe
	// what a set contains, not what any one environment ended up with.
	packages := make([]PackageDefinition, len(set.Packages))
	copy(packages, set.Packages)

	wasAuto := env.AutoUpdate
	if wasAuto {
		if err := m.store.SetEnvironmentAutoUpdate(env.ID, false); err != nil {
			return false, fmt.Errorf("failed to suspend auto-update: %w", err)
		}
		env.AutoUpdate = false
		defer func() {
			if !env.AutoUpdate {
				if err := m.store.SetEnvironmentAutoUpdate(env.ID, true); err != nil {
					log.WithFields(log.Fields{"env": env.Name}).Errorf("failed to restore auto-update: %v", err)
				} else {
					env.AutoUpdate = true
				}
			}
		}()
	}

	allOK := true
	total := len(packages)
	for i := range packages {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		pkg := &packages[i]
		installErr := python.InstallPackage(ctx, m.runner, exe, pkg.Spec())
		if installErr != nil {
			// Best effort: record the failure and keep going.
			allOK = false
			pkg.Status = StatusFailed
			log.WithFields(log.Fields{
				"set":     set.Name,
				"package": pkg.Spec(),
				"env":     env.Name,
			}).Errorf("package install failed: %v", installErr)
		} else {
			pkg.Status = StatusInstalled
		}

		if progress != nil {
			progress(InstallProgress{Index: i + 1, Total: total, Package: pkg.Name, Err: installErr})
		}
	}

	if wasAuto {
		if err := m.store.SetEnvironmentAutoUpdate(env.ID, true); err != nil {
			return false, fmt.Errorf("failed to restore auto-update: %w", err)
		}
		env.AutoUpdate = true

		if err := m.RegenerateRequirements(ctx, env); err != nil {
			log.WithFields(log.Fields{"env": env.Name}).Errorf("requirements regeneration failed: %v", err)
			allOK = false
		}
	}

	return allOK, nil
}

// RegenerateRequirements snapshots the environment's installed packages into
// its requirements file, assigning a default file under the requirements
// directory when the environment has none yet.
func (m *Manager) RegenerateRequirements(ctx context.Context, env *python.Environment) error {
	exe := env.Interpreter()
	if exe == "" {
		return fmt.Errorf("environment %s has no interpreter", env.Name)
	}

	installed, err := python.InstalledPackages(ctx, m.runner, exe)
	if err != nil {
		return err
	}

	if env.RequirementsPath == "" {
		if err := os.MkdirAll(m.dir, 0755); err != nil {
			return fmt.Errorf("failed to create requirements directory: %w", err)
		}
		env.RequirementsPath = filepath.Join(m.dir, normalizeKey(env.Name)+".txt")
		if err := m.store.UpsertEnvironment(env); err != nil {
			return err
		}
	}

	reqs := make([]Requirement, 0, len(installed))
	for name, version := range installed {
		reqs = append(reqs, Requirement{Name: name, Constraint: "==" + version})
	}
	return WriteRequirementsFile(env.RequirementsPath, reqs)
}

// SaveFromEnvironment snapshots the environment's currently installed
// packages as a new named set, persists it as a requirements file, and
// registers it in memory. The set's category is the majority vote over the
// packages' tags, ties broken alphabetically.
func (m *Manager) SaveFromEnvironment(ctx context.Context, name string, env *python.Environment, description string) (*PackageSet, error) {
	if name == "" {
		return nil, fmt.Errorf("set name is required")
	}
	if env == nil {
		return nil, fmt.Errorf("source environment is required")
	}

	exe := env.Interpreter()
	if exe == "" {
		return nil, fmt.Errorf("environment %s has no interpreter at %s", env.Name, env.Path)
	}

	installed, err := python.InstalledPackages(ctx, m.runner, exe)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(installed))
	for pkg := range installed {
		names = append(names, pkg)
	}
	sort.Strings(names)

	set := &PackageSet{
		Name:        displayName(normalizeKey(name)),
		Description: description,
	}
	for _, pkg := range names {
		set.Packages = append(set.Packages, PackageDefinition{
			Name:       pkg,
			Constraint: "==" + installed[pkg],
			Status:     StatusInstalled,
			Category:   PackageCategory(pkg),
		})
	}
	set.Category = dominantCategory(set.Packages)

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create requirements directory: %w", err)
	}
	path := filepath.Join(m.dir, normalizeKey(name)+".txt")

	reqs := make([]Requirement, len(set.Packages))
	for i, p := range set.Packages {
		reqs[i] = Requirement{Name: p.Name, Constraint: p.Constraint}
	}
	if err := WriteRequirementsFile(path, reqs); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sets[normalizeKey(name)] = set
	m.mu.Unlock()

	log.WithFields(log.Fields{
		"set":      set.Name,
		"packages": len(set.Packages),
		"category": set.Category,
	}).Info("package set saved from environment")

	return set, nil
}

func requirementNames(reqs []Requirement) []string {
	names := make([]string, len(reqs))
	for i, req := range reqs {
		names[i] = req.Name
	}
	return names
}
