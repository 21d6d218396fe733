package store

const schema = `
CREATE TABLE IF NOT EXISTS runtimes (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    path TEXT NOT NULL UNIQUE,
    version TEXT,
    architecture TEXT,
    package_manager TEXT NOT NULL,
    kind TEXT NOT NULL,
    discovered_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS virtualenvs (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    path TEXT NOT NULL UNIQUE,
    runtime_id TEXT NOT NULL,
    requirements_path TEXT,
    auto_update BOOLEAN NOT NULL DEFAULT 0,
    python_version TEXT,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (runtime_id) REFERENCES runtimes(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runtimes_path ON runtimes(path);
CREATE INDEX IF NOT EXISTS idx_virtualenvs_runtime ON virtualenvs(runtime_id);
CREATE INDEX IF NOT EXISTS idx_virtualenvs_path ON virtualenvs(path);
`
