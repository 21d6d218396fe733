package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pyforge-dev/pyforge/internal/python"
)

// Runtime operations

// UpsertRuntime inserts or replaces a runtime in the database. The path is
// the conflict key, so re-registering a known path updates its metadata.
func (s *Store) UpsertRuntime(rt *python.Runtime) error {
	query := `
		INSERT INTO runtimes
		(id, name, path, version, architecture, package_manager, kind, discovered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			architecture = excluded.architecture,
			package_manager = excluded.package_manager,
			kind = excluded.kind
	`

	_, err := s.db.Exec(query,
		rt.ID,
		rt.Name,
		rt.Path,
		rt.Version,
		rt.Architecture,
		rt.PackageManager,
		rt.Kind,
		rt.DiscoveredAt.Format(time.RFC3339),
	)
	if err != nil {
		return wrapQueryErr(fmt.Errorf("failed to upsert runtime %s: %w", rt.Path, err))
	}

	return nil
}

func scanRuntime(scan func(dest ...any) error) (*python.Runtime, error) {
	var rt python.Runtime
	var discoveredAt string

	if err := scan(
		&rt.ID,
		&rt.Name,
		&rt.Path,
		&rt.Version,
		&rt.Architecture,
		&rt.PackageManager,
		&rt.Kind,
		&discoveredAt,
	); err != nil {
		return nil, err
	}

	var err error
	rt.DiscoveredAt, err = time.Parse(time.RFC3339, discoveredAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse discovered_at for %s: %w", rt.ID, err)
	}

	return &rt, nil
}

// GetRuntime retrieves a runtime by ID.
func (s *Store) GetRuntime(id string) (*python.Runtime, error) {
	query := `
		SELECT id, name, path, version, architecture, package_manager, kind, discovered_at
		FROM runtimes
		WHERE id = ?
	`

	rt, err := scanRuntime(s.db.QueryRow(query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("runtime %s not found", id)
	}
	if err != nil {
		return nil, wrapQueryErr(fmt.Errorf("failed to get runtime %s: %w", id, err))
	}

	return rt, nil
}

// GetRuntimeByPath retrieves a runtime by its installation path.
func (s *Store) GetRuntimeByPath(path string) (*python.Runtime, error) {
	query := `
		SELECT id, name, path, version, architecture, package_manager, kind, discovered_at
		FROM runtimes
		WHERE path = ?
	`

	rt, err := scanRuntime(s.db.QueryRow(query, path).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("runtime at %s not found", path)
	}
	if err != nil {
		return nil, wrapQueryErr(fmt.Errorf("failed to get runtime at %s: %w", path, err))
	}

	return rt, nil
}

// ListRuntimes returns all registered runtimes ordered by name.
func (s *Store) ListRuntimes() ([]*python.Runtime, error) {
	query := `
		SELECT id, name, path, version, architecture, package_manager, kind, discovered_at
		FROM runtimes
		ORDER BY name
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, wrapQueryErr(fmt.Errorf("failed to list runtimes: %w", err))
	}
	defer rows.Close()

	var runtimes []*python.Runtime
	for rows.Next() {
		rt, err := scanRuntime(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan runtime row: %w", err)
		}
		runtimes = append(runtimes, rt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runtimes: %w", err)
	}

	return runtimes, nil
}

// DeleteRuntime removes a runtime and (via cascade) its virtualenvs.
func (s *Store) DeleteRuntime(id string) error {
	result, err := s.db.Exec(`DELETE FROM runtimes WHERE id = ?`, id)
	if err != nil {
		return wrapQueryErr(fmt.Errorf("failed to delete runtime %s: %w", id, err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("runtime %s not found", id)
	}

	return nil
}

// Virtualenv operations

// UpsertEnvironment inserts or replaces a virtualenv record, keyed by path.
func (s *Store) UpsertEnvironment(env *python.Environment) error {
	query := `
		INSERT INTO virtualenvs
		(id, name, path, runtime_id, requirements_path, auto_update, python_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name = excluded.name,
			runtime_id = excluded.runtime_id,
			requirements_path = excluded.requirements_path,
			auto_update = excluded.auto_update,
			python_version = excluded.python_version
	`

	_, err := s.db.Exec(query,
		env.ID,
		env.Name,
		env.Path,
		env.RuntimeID,
		env.RequirementsPath,
		env.AutoUpdate,
		env.PythonVersion,
		env.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return wrapQueryErr(fmt.Errorf("failed to upsert virtualenv %s: %w", env.Path, err))
	}

	return nil
}

func scanEnvironment(scan func(dest ...any) error) (*python.Environment, error) {
	var env python.Environment
	var createdAt string

	if err := scan(
		&env.ID,
		&env.Name,
		&env.Path,
		&env.RuntimeID,
		&env.RequirementsPath,
		&env.AutoUpdate,
		&env.PythonVersion,
		&createdAt,
	); err != nil {
		return nil, err
	}

	var err error
	env.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for %s: %w", env.ID, err)
	}

	return &env, nil
}

// GetEnvironment retrieves a virtualenv by ID.
func (s *Store) GetEnvironment(id string) (*python.Environment, error) {
	query := `
		SELECT id, name, path, runtime_id, requirements_path, auto_update, python_version, created_at
		FROM virtualenvs
		WHERE id = ?
	`

	env, err := scanEnvironment(s.db.QueryRow(query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("virtualenv %s not found", id)
	}
	if err != nil {
		return nil, wrapQueryErr(fmt.Errorf("failed to get virtualenv %s: %w", id, err))
	}

	return env, nil
}

// GetEnvironmentByPath retrieves a virtualenv by its directory path.
func (s *Store) GetEnvironmentByPath(path string) (*python.Environment, error) {
	query := `
		SELECT id, name, path, runtime_id, requirements_path, auto_update, python_version, created_at
		FROM virtualenvs
		WHERE path = ?
	`

	env, err := scanEnvironment(s.db.QueryRow(query, path).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("virtualenv at %s not found", path)
	}
	if err != nil {
		return nil, wrapQueryErr(fmt.Errorf("failed to get virtualenv at %s: %w", path, err))
	}

	return env, nil
}

// ListEnvironments returns virtualenvs, optionally filtered by runtime ID
// (empty string returns all), ordered by name.
func (s *Store) ListEnvironments(runtimeID string) ([]*python.Environment, error) {
	query := `
		SELECT id, name, path, runtime_id, requirements_path, auto_update, python_version, created_at
		FROM virtualenvs
	`
	args := []any{}
	if runtimeID != "" {
		query += ` WHERE runtime_id = ?`
		args = append(args, runtimeID)
	}
	query += ` ORDER BY name`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapQueryErr(fmt.Errorf("failed to list virtualenvs: %w", err))
	}
	defer rows.Close()

	var envs []*python.Environment
	for rows.Next() {
		env, err := scanEnvironment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan virtualenv row: %w", err)
		}
		envs = append(envs, env)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating virtualenvs: %w", err)
	}

	return envs, nil
}

// SetEnvironmentAutoUpdate flips the auto-update flag for a virtualenv.
func (s *Store) SetEnvironmentAutoUpdate(id string, autoUpdate bool) error {
	result, err := s.db.Exec(`UPDATE virtualenvs SET auto_update = ? WHERE id = ?`, autoUpdate, id)
	if err != nil {
		return wrapQueryErr(fmt.Errorf("failed to update auto_update for %s: %w", id, err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("virtualenv %s not found", id)
	}

	return nil
}

// DeleteEnvironment removes a virtualenv record.
func (s *Store) DeleteEnvironment(id string) error {
	result, err := s.db.Exec(`DELETE FROM virtualenvs WHERE id = ?`, id)
	if err != nil {
		return wrapQueryErr(fmt.Errorf("failed to delete virtualenv %s: %w", id, err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("virtualenv %s not found", id)
	}

	return nil
}
