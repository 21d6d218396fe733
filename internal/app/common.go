package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pyforge-dev/pyforge/internal/bootstrap"
	"github.com/pyforge-dev/pyforge/internal/config"
	"github.com/pyforge-dev/pyforge/internal/health"
	"github.com/pyforge-dev/pyforge/internal/pkgset"
	"github.com/pyforge-dev/pyforge/internal/provision"
	"github.com/pyforge-dev/pyforge/internal/python"
	"github.com/pyforge-dev/pyforge/internal/registry"
	"github.com/pyforge-dev/pyforge/internal/store"
	"github.com/pyforge-dev/pyforge/internal/venv"
)

// cmdContext returns the command's context, falling back to Background for
// handlers invoked outside Execute (tests).
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// appEnv wires the full service graph for one command invocation.
type appEnv struct {
	cfg      *config.Config
	store    *store.Store
	runner   python.Runner
	registry *registry.Registry
	venvs    *venv.Manager
	packs    *pkgset.Manager
	boot     *bootstrap.Manager
	monitor  *health.Monitor
}

// newAppEnv loads configuration, opens the database, and builds the
// managers. The caller must Close() the returned env.
func newAppEnv(ctx context.Context) (*appEnv, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	configureLogging(cfg)

	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	db, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.CreateSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}

	runner := python.ExecRunner{}
	reg := registry.New(db, runner, cfg.SearchPaths)
	if err := reg.Initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize runtime registry: %w", err)
	}

	venvs := venv.New(db, runner, reg, cfg.EnvsDir())
	packs := pkgset.New(db, runner, cfg.RequirementsDir)
	prov := provision.New(nil, runner, reg)
	embedded := provision.Options{
		Version:    cfg.Embedded.Version,
		BaseURL:    cfg.Embedded.BaseURL,
		InstallDir: cfg.Embedded.InstallDir,
	}

	return &appEnv{
		cfg:      cfg,
		store:    db,
		runner:   runner,
		registry: reg,
		venvs:    venvs,
		packs:    packs,
		boot:     bootstrap.New(reg, prov, venvs, packs, embedded, cfg.TemplatesDir),
		monitor:  health.New(reg, runner),
	}, nil
}

func (a *appEnv) Close() {
	a.store.Close()
}

// configureLogging applies the logger settings from config to logrus.
func configureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.Logger.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// findEnvironment resolves a virtual environment by ID or name. Names are
// matched across the environments of every registered runtime.
func (a *appEnv) findEnvironment(ctx context.Context, nameOrID string) (*python.Environment, error) {
	if env, err := a.venvs.Get(nameOrID); err == nil {
		return env, nil
	}

	var matches []*python.Environment
	for _, rt := range a.registry.List() {
		envs, err := a.venvs.List(ctx, rt)
		if err != nil {
			continue
		}
		for _, env := range envs {
			if env.Name == nameOrID {
				matches = append(matches, env)
			}
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no virtual environment named %q", nameOrID)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("multiple environments named %q; use the environment ID", nameOrID)
	}
}

// resolveRuntime picks a runtime by ID prefix or name, or the sole
// registered runtime when id is empty.
func (a *appEnv) resolveRuntime(id string) (*python.Runtime, error) {
	runtimes := a.registry.List()
	if id == "" {
		if len(runtimes) == 1 {
			return runtimes[0], nil
		}
		return nil, fmt.Errorf("multiple runtimes registered; pass --runtime")
	}
	for _, rt := range runtimes {
		if rt.ID == id || rt.Name == id || strings.HasPrefix(rt.ID, id) {
			return rt, nil
		}
	}
	return nil, fmt.Errorf("no runtime matching %q; run 'pyforge runtimes' to list them", id)
}
