package python

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// interpreterSubpaths lists the conventional interpreter locations inside a
// runtime or virtualenv root, checked in order.
var interpreterSubpaths = []string{
	filepath.Join("bin", "python3"),
	filepath.Join("bin", "python"),
	"python.exe",
	filepath.Join("Scripts", "python.exe"),
	"python3",
	"python",
}

// FindInterpreter locates the interpreter binary under root by checking the
// conventional sub-paths. Returns the absolute path and whether one was found.
func FindInterpreter(root string) (string, bool) {
	for _, sub := range interpreterSubpaths {
		candidate := filepath.Join(root, sub)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		return candidate, true
	}
	return "", false
}

// Version runs `<exe> --version` and returns the bare version number
// (e.g. "3.11.4"). Some interpreters print the banner to stderr.
func Version(ctx context.Context, r Runner, exe string) (string, error) {
	res, err := r.Run(ctx, exe, "--version")
	if err != nil {
		return "", fmt.Errorf("python --version failed: %w", err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("python --version exited %d (stderr: %s)", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	banner := strings.TrimSpace(res.Stdout)
	if banner == "" {
		banner = strings.TrimSpace(res.Stderr)
	}
	version := strings.TrimSpace(strings.TrimPrefix(banner, "Python"))
	if version == "" {
		return "", fmt.Errorf("python --version produced no output")
	}
	return version, nil
}

// PipVersion runs `<exe> -m pip --version` and returns pip's version banner.
func PipVersion(ctx context.Context, r Runner, exe string) (string, error) {
	res, err := r.Run(ctx, exe, "-m", "pip", "--version")
	if err != nil {
		return "", fmt.Errorf("pip --version failed: %w", err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("pip --version exited %d (stderr: %s)", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return strings.TrimSpace(res.Stdout), nil
}

// RunCode executes a snippet via `<exe> -c <code>` and returns the result.
func RunCode(ctx context.Context, r Runner, exe, code string) (*Result, error) {
	res, err := r.Run(ctx, exe, "-c", code)
	if err != nil {
		return nil, fmt.Errorf("python -c failed: %w", err)
	}
	return res, nil
}

// Architecture probes the interpreter's pointer width and returns
// "64-bit" or "32-bit".
func Architecture(ctx context.Context, r Runner, exe string) (string, error) {
	res, err := RunCode(ctx, r, exe, "import struct; print(struct.calcsize('P')*8)")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("architecture probe exited %d (stderr: %s)", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	switch strings.TrimSpace(res.Stdout) {
	case "64":
		return "64-bit", nil
	case "32":
		return "32-bit", nil
	}
	return "", fmt.Errorf("unexpected architecture probe output: %q", res.Stdout)
}

// CreateVenv creates a virtual environment at path using the base interpreter.
func CreateVenv(ctx context.Context, r Runner, baseExe, path string) error {
	res, err := r.Run(ctx, baseExe, "-m", "venv", path)
	if err != nil {
		return fmt.Errorf("venv creation failed: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("venv creation exited %d (stderr: %s)", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// InstallPackage installs a single package spec (e.g. "numpy" or
// "numpy==1.26.4") into the interpreter's environment via pip.
func InstallPackage(ctx context.Context, r Runner, exe, spec string) error {
	res, err := r.Run(ctx, exe, "-m", "pip", "install", spec)
	if err != nil {
		return fmt.Errorf("pip install %s failed: %w", spec, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("pip install %s exited %d (stderr: %s)", spec, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// InstalledPackages returns the interpreter's installed packages as a
// name -> version map, via `pip list --format=freeze`.
func InstalledPackages(ctx context.Context, r Runner, exe string) (map[string]string, error) {
	res, err := r.Run(ctx, exe, "-m", "pip", "list", "--format=freeze")
	if err != nil {
		return nil, fmt.Errorf("pip list failed: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("pip list exited %d (stderr: %s)", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	packages := make(map[string]string)
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, version, ok := strings.Cut(line, "==")
		if !ok {
			// Editable installs print "-e <path>"; skip anything unparseable.
			continue
		}
		packages[strings.TrimSpace(name)] = strings.TrimSpace(version)
	}
	return packages, nil
}

// IsVenv reports whether path looks like a usable virtual environment:
// a pyvenv.cfg marker plus an interpreter binary.
func IsVenv(path string) bool {
	if _, err := os.Stat(filepath.Join(path, "pyvenv.cfg")); err != nil {
		return false
	}
	_, ok := FindInterpreter(path)
	return ok
}
