package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pyforge-dev/pyforge/internal/python"
	"github.com/pyforge-dev/pyforge/internal/registry"
)

// maxArchiveBytes caps the downloaded archive size (512 MB). Prevents
// unbounded disk consumption from a misconfigured base URL.
const maxArchiveBytes = 512 << 20

var (
	// ErrUnsupportedPlatform is returned when no embedded distribution
	// exists for the host OS/architecture.
	ErrUnsupportedPlatform = errors.New("no embedded Python distribution for this platform")

	// ErrArchiveCorrupt is returned when a downloaded archive cannot be
	// extracted or yields no interpreter.
	ErrArchiveCorrupt = errors.New("embedded distribution archive is corrupt")
)

// Options configures one provisioning run.
type Options struct {
	Version    string // e.g. "3.11.9"
	BaseURL    string // release download base
	InstallDir string // final install location
}

// Provisioner downloads and installs an embedded Python distribution when no
// suitable runtime exists. The interpreter is verified before the install
// directory is registered; a failed run never leaves a registered runtime
// behind.
type Provisioner struct {
	client   *http.Client
	runner   python.Runner
	registry *registry.Registry
}

// New creates a Provisioner. client may be nil, in which case a client with
// a 10-minute timeout is used.
func New(client *http.Client, runner python.Runner, reg *registry.Registry) *Provisioner {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Provisioner{client: client, runner: runner, registry: reg}
}

// Ensure makes sure an embedded interpreter exists at opts.InstallDir,
// downloading and extracting the pinned distribution if needed. A second
// call with the same options is a no-op beyond the existence check.
func (p *Provisioner) Ensure(ctx context.Context, opts Options) (*python.Runtime, error) {
	if opts.Version == "" || opts.InstallDir == "" {
		return nil, fmt.Errorf("provisioning requires a version and install directory")
	}

	// Existing install wins.
	if _, ok := python.FindInterpreter(opts.InstallDir); ok {
		return p.registry.Register(ctx, opts.InstallDir, python.KindEmbedded)
	}

	url, ext, err := archiveURL(opts.BaseURL, opts.Version, runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"version": opts.Version,
		"url":     url,
	}).Info("downloading embedded Python distribution")

	archivePath, err := p.download(ctx, url, ext)
	if err != nil {
		return nil, fmt.Errorf("failed to download embedded distribution: %w", err)
	}
	defer os.Remove(archivePath)

	// Extract into a staging dir next to the final location so the rename
	// below stays on one filesystem. Nothing is registered until the
	// staged interpreter actually runs. On a fresh data dir the parent
	// does not exist yet.
	parent := filepath.Dir(opts.InstallDir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, fmt.Errorf("failed to create install directory %s: %w", parent, err)
	}
	staging, err := os.MkdirTemp(parent, ".staging-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	switch ext {
	case "tar.gz":
		err = extractTarGz(archivePath, staging)
	case "zip":
		err = extractZip(archivePath, staging)
	default:
		err = fmt.Errorf("unknown archive type %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
	}

	root, ok := findExtractedRoot(staging)
	if !ok {
		return nil, fmt.Errorf("%w: no interpreter in extracted archive", ErrArchiveCorrupt)
	}

	exe, _ := python.FindInterpreter(root)
	version, err := python.Version(ctx, p.runner, exe)
	if err != nil {
		return nil, fmt.Errorf("extracted interpreter failed verification: %w", err)
	}
	if !strings.HasPrefix(version, opts.Version) {
		log.WithFields(log.Fields{
			"want": opts.Version,
			"got":  version,
		}).Warn("embedded distribution version differs from the requested pin")
	}

	if err := os.Rename(root, opts.InstallDir); err != nil {
		return nil, fmt.Errorf("failed to move distribution into place: %w", err)
	}

	return p.registry.Register(ctx, opts.InstallDir, python.KindEmbedded)
}

// download fetches url to a temp file and returns its path.
func (p *Provisioner) download(ctx context.Context, url, ext string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s fetching %s", resp.Status, url)
	}

	tmp, err := os.CreateTemp("", "pyforge-dist-*."+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	_, err = io.Copy(tmp, io.LimitReader(resp.Body, maxArchiveBytes))
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write archive: %w", err)
	}
	if closeErr != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close archive: %w", closeErr)
	}

	return tmp.Name(), nil
}

// archiveURL resolves the distribution URL and archive type for a platform.
func archiveURL(baseURL, version, goos, goarch string) (url, ext string, err error) {
	platforms := map[string]struct {
		triple string
		ext    string
	}{
		"linux/amd64":   {"x86_64-unknown-linux-gnu", "tar.gz"},
		"linux/arm64":   {"aarch64-unknown-linux-gnu", "tar.gz"},
		"darwin/amd64":  {"x86_64-apple-darwin", "tar.gz"},
		"darwin/arm64":  {"aarch64-apple-darwin", "tar.gz"},
		"windows/amd64": {"x86_64-pc-windows-msvc", "zip"},
	}

	plat, ok := platforms[goos+"/"+goarch]
	if !ok {
		return "", "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}

	url = fmt.Sprintf("%s/cpython-%s-%s.%s", strings.TrimSuffix(baseURL, "/"), version, plat.triple, plat.ext)
	return url, plat.ext, nil
}

// findExtractedRoot locates the directory holding the interpreter: either
// the staging dir itself or the single top-level directory most archives
// nest their content under (e.g. "python/").
func findExtractedRoot(staging string) (string, bool) {
	if _, ok := python.FindInterpreter(staging); ok {
		return staging, true
	}

	entries, err := os.ReadDir(staging)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := filepath.Join(staging, e.Name())
		if _, ok := python.FindInterpreter(sub); ok {
			return sub, true
		}
	}
	return "", false
}
