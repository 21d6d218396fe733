package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/pyforge-dev/pyforge/internal/python"
	"github.com/pyforge-dev/pyforge/internal/store"
)

// ErrRuntimeNotFound is returned when a runtime ID is not registered.
var ErrRuntimeNotFound = errors.New("runtime not found")

// Registry tracks known Python runtimes, backed by the SQLite store. The
// in-memory map is guarded by a mutex because health-monitor timer callbacks
// and foreground commands can race.
type Registry struct {
	store  *store.Store
	runner python.Runner

	// SearchPaths are extra directories probed during discovery.
	searchPaths []string

	mu       sync.Mutex
	runtimes map[string]*python.Runtime // keyed by ID
}

// New creates a Registry. searchPaths may be nil.
func New(st *store.Store, runner python.Runner, searchPaths []string) *Registry {
	return &Registry{
		store:       st,
		runner:      runner,
		searchPaths: searchPaths,
		runtimes:    make(map[string]*python.Runtime),
	}
}

// Initialize loads persisted runtimes into memory. Runtimes whose backing
// path no longer holds an interpreter are kept (the health monitor reports
// them as unhealthy) but logged.
func (r *Registry) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runtimes, err := r.store.ListRuntimes()
	if err != nil {
		if errors.Is(err, store.ErrNotInitialized) {
			return nil
		}
		return fmt.Errorf("failed to load runtimes: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rt := range runtimes {
		if _, ok := python.FindInterpreter(rt.Path); !ok {
			log.WithFields(log.Fields{
				"runtime": rt.Name,
				"path":    rt.Path,
			}).Warn("registered runtime path no longer contains an interpreter")
		}
		r.runtimes[rt.ID] = rt
	}

	return nil
}

// Discover scans PATH and the configured search paths for Python
// installations and registers every one it finds. Returns the runtimes that
// were registered (new or refreshed).
func (r *Registry) Discover(ctx context.Context) ([]*python.Runtime, error) {
	var found []*python.Runtime
	seen := make(map[string]bool)

	register := func(root string) {
		root = filepath.Clean(root)
		if seen[root] {
			return
		}
		seen[root] = true

		rt, err := r.Register(ctx, root, "")
		if err != nil {
			log.WithFields(log.Fields{"path": root}).Debugf("skipping candidate: %v", err)
			return
		}
		found = append(found, rt)
	}

	// PATH interpreters
	for _, name := range []string{"python3", "python"} {
		exe, err := exec.LookPath(name)
		if err != nil {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		register(runtimeRoot(exe))
	}

	// Configured search paths
	for _, dir := range r.searchPaths {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		if _, ok := python.FindInterpreter(dir); ok {
			register(dir)
			continue
		}
		// One level down: version-manager layouts keep installs in subdirs.
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			sub := filepath.Join(dir, e.Name())
			if _, ok := python.FindInterpreter(sub); ok {
				register(sub)
			}
		}
	}

	return found, nil
}

// Register adds the Python installation rooted at path, probing its
// interpreter for version and architecture. Registration is idempotent: a
// path that is already known keeps its ID and gets refreshed metadata. kind
// may be empty, in which case it is inferred.
func (r *Registry) Register(ctx context.Context, path, kind string) (*python.Runtime, error) {
	path = filepath.Clean(path)

	exe, ok := python.FindInterpreter(path)
	if !ok {
		return nil, fmt.Errorf("no interpreter found under %s", path)
	}

	version, err := python.Version(ctx, r.runner, exe)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", exe, err)
	}

	arch, err := python.Architecture(ctx, r.runner, exe)
	if err != nil {
		// Non-fatal: record the runtime without an architecture.
		log.WithFields(log.Fields{"exe": exe}).Warnf("architecture probe failed: %v", err)
		arch = ""
	}

	pkgManager := python.PkgManagerPip
	if isCondaRoot(path) {
		pkgManager = python.PkgManagerConda
	}
	if kind == "" {
		switch {
		case pkgManager == python.PkgManagerConda:
			kind = python.KindConda
		default:
			kind = python.KindSystem
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-registering a known path updates metadata rather than duplicating.
	var rt *python.Runtime
	for _, existing := range r.runtimes {
		if existing.Path == path {
			rt = existing
			break
		}
	}
	if rt == nil {
		rt = &python.Runtime{
			ID:           uuid.NewString(),
			Path:         path,
			DiscoveredAt: time.Now(),
		}
	}

	rt.Name = fmt.Sprintf("Python %s (%s)", version, path)
	rt.Version = version
	rt.Architecture = arch
	rt.PackageManager = pkgManager
	rt.Kind = kind

	if err := r.store.UpsertRuntime(rt); err != nil {
		return nil, fmt.Errorf("failed to persist runtime %s: %w", path, err)
	}
	r.runtimes[rt.ID] = rt

	log.WithFields(log.Fields{
		"runtime": rt.Name,
		"version": rt.Version,
		"kind":    rt.Kind,
	}).Info("runtime registered")

	return rt, nil
}

// Get looks up a runtime by ID.
func (r *Registry) Get(id string) (*python.Runtime, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.runtimes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuntimeNotFound, id)
	}
	return rt, nil
}

// List returns the registered runtimes sorted by name.
func (r *Registry) List() []*python.Runtime {
	r.mu.Lock()
	defer r.mu.Unlock()

	runtimes := make([]*python.Runtime, 0, len(r.runtimes))
	for _, rt := range r.runtimes {
		runtimes = append(runtimes, rt)
	}
	sort.Slice(runtimes, func(i, j int) bool { return runtimes[i].Name < runtimes[j].Name })
	return runtimes
}

// Remove drops a runtime from the registry and the store.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runtimes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRuntimeNotFound, id)
	}
	if err := r.store.DeleteRuntime(id); err != nil {
		return err
	}
	delete(r.runtimes, id)
	return nil
}

// runtimeRoot maps an interpreter binary path to its installation root:
// /usr/bin/python3 -> /usr, /opt/py/python.exe -> /opt/py.
func runtimeRoot(exe string) string {
	dir := filepath.Dir(exe)
	switch filepath.Base(dir) {
	case "bin", "Scripts":
		return filepath.Dir(dir)
	}
	return dir
}

// isCondaRoot reports whether path is a conda installation or env root.
func isCondaRoot(path string) bool {
	info, err := os.Stat(filepath.Join(path, "conda-meta"))
	return err == nil && info.IsDir()
}
