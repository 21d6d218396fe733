package python

import "time"

// Package manager types for a runtime.
const (
	PkgManagerPip   = "pip"
	PkgManagerConda = "conda"
)

// Runtime kinds.
const (
	KindSystem   = "system"
	KindConda    = "conda"
	KindEmbedded = "embedded"
)

// Runtime represents a concrete Python installation (system, conda, or embedded).
type Runtime struct {
	ID             string
	Name           string
	Path           string // installation root, not the interpreter binary
	Version        string // e.g. "3.11.4", refreshed on health checks
	Architecture   string // "64-bit" or "32-bit"
	PackageManager string // "pip" or "conda"
	Kind           string // "system", "conda", "embedded"
	DiscoveredAt   time.Time
}

// Environment represents a virtual environment created from a base runtime.
type Environment struct {
	ID               string
	Name             string
	Path             string
	RuntimeID        string // back-reference to the owning Runtime
	RequirementsPath string
	AutoUpdate       bool // regenerate requirements after installs
	PythonVersion    string
	CreatedAt        time.Time
}

// Interpreter returns the interpreter binary inside the environment, or ""
// if none is found.
func (e *Environment) Interpreter() string {
	exe, ok := FindInterpreter(e.Path)
	if !ok {
		return ""
	}
	return exe
}
