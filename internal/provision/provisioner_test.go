package provision

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pyforge-dev/pyforge/internal/python"
	"github.com/pyforge-dev/pyforge/internal/registry"
	"github.com/pyforge-dev/pyforge/internal/store"
)

type fakeRunner struct {
	version string
}

func (f *fakeRunner) Run(_ context.Context, exe string, args ...string) (*python.Result, error) {
	if len(args) > 0 && args[0] == "--version" {
		return &python.Result{Stdout: "Python " + f.version + "\n"}, nil
	}
	if len(args) > 1 && args[0] == "-c" {
		return &python.Result{Stdout: "64\n"}, nil
	}
	return &python.Result{}, nil
}

func newTestRegistry(t *testing.T, r python.Runner) *registry.Registry {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := s.CreateSchema(); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return registry.New(s, r, nil)
}

func TestArchiveURL(t *testing.T) {
	url, ext, err := archiveURL("https://dist.example.com/releases/", "3.11.9", "linux", "amd64")
	if err != nil {
		t.Fatalf("archiveURL() failed: %v", err)
	}
	want := "https://dist.example.com/releases/cpython-3.11.9-x86_64-unknown-linux-gnu.tar.gz"
	if url != want {
		t.Errorf("archiveURL() = %q; want %q", url, want)
	}
	if ext != "tar.gz" {
		t.Errorf("ext = %q; want tar.gz", ext)
	}
}

func TestArchiveURL_UnsupportedPlatform(t *testing.T) {
	_, _, err := archiveURL("https://dist.example.com", "3.11.9", "plan9", "386")
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("archiveURL() error = %v; want ErrUnsupportedPlatform", err)
	}
}

// buildTarGz produces a tar.gz with the given name -> content entries.
// Names ending in "/" become directories.
func buildTarGz(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for name, content := range entries {
		if strings.HasSuffix(name, "/") {
			if err := tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeDir, Mode: 0755}); err != nil {
				t.Fatalf("failed to write dir header: %v", err)
			}
			continue
		}
		hdr := &tar.Header{Name: name, Mode: 0755, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("failed to write header: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write content: %v", err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("failed to close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("failed to close gzip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractTarGz(t *testing.T) {
	archive := buildTarGz(t, map[string]string{
		"python/":            "",
		"python/bin/python3": "#!/bin/sh\n",
		"python/LICENSE":     "PSF",
	})

	archivePath := filepath.Join(t.TempDir(), "dist.tar.gz")
	if err := os.WriteFile(archivePath, archive, 0644); err != nil {
		t.Fatalf("failed to write archive: %v", err)
	}

	dest := t.TempDir()
	if err := extractTarGz(archivePath, dest); err != nil {
		t.Fatalf("extractTarGz() failed: %v", err)
	}

	root, ok := findExtractedRoot(dest)
	if !ok {
		t.Fatal("findExtractedRoot() found no interpreter")
	}
	if filepath.Base(root) != "python" {
		t.Errorf("extracted root = %q; want .../python", root)
	}
}

func TestExtractTarGz_RejectsTraversal(t *testing.T) {
	archive := buildTarGz(t, map[string]string{
		"../evil": "pwned",
	})

	archivePath := filepath.Join(t.TempDir(), "dist.tar.gz")
	if err := os.WriteFile(archivePath, archive, 0644); err != nil {
		t.Fatalf("failed to write archive: %v", err)
	}

	if err := extractTarGz(archivePath, t.TempDir()); err == nil {
		t.Error("extractTarGz() should reject entries escaping the destination")
	}
}

func TestEnsure_ExistingInstallIsNoOp(t *testing.T) {
	runner := &fakeRunner{version: "3.11.9"}
	reg := newTestRegistry(t, runner)

	installDir := filepath.Join(t.TempDir(), "embedded")
	binDir := filepath.Join(installDir, "bin")
	if err := os.MkdirAll(binDir, 0755); err != nil {
		t.Fatalf("failed to create bin dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(binDir, "python3"), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("failed to write interpreter: %v", err)
	}

	// No HTTP client configured with a real server: a download attempt
	// would fail, so success proves the existence check short-circuited.
	p := New(&http.Client{}, runner, reg)
	rt, err := p.Ensure(context.Background(), Options{
		Version:    "3.11.9",
		BaseURL:    "http://127.0.0.1:1/nowhere",
		InstallDir: installDir,
	})
	if err != nil {
		t.Fatalf("Ensure() failed: %v", err)
	}
	if rt.Kind != python.KindEmbedded {
		t.Errorf("Kind = %q; want embedded", rt.Kind)
	}
}

func TestEnsure_DownloadsAndRegisters(t *testing.T) {
	if runtime.GOOS+"/"+runtime.GOARCH == "plan9/386" {
		t.Skip("unsupported platform")
	}

	archive := buildTarGz(t, map[string]string{
		"python/":            "",
		"python/bin/python3": "#!/bin/sh\n",
	})

	var requested string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		w.Write(archive)
	}))
	defer srv.Close()

	runner := &fakeRunner{version: "3.11.9"}
	reg := newTestRegistry(t, runner)
	p := New(srv.Client(), runner, reg)

	installDir := filepath.Join(t.TempDir(), "embedded")
	rt, err := p.Ensure(context.Background(), Options{
		Version:    "3.11.9",
		BaseURL:    srv.URL,
		InstallDir: installDir,
	})
	if err != nil {
		t.Fatalf("Ensure() failed: %v", err)
	}

	if !strings.Contains(requested, "cpython-3.11.9") {
		t.Errorf("requested path %q should contain the version pin", requested)
	}
	if rt.Path != installDir {
		t.Errorf("runtime path = %q; want %q", rt.Path, installDir)
	}
	if _, ok := python.FindInterpreter(installDir); !ok {
		t.Error("install dir should contain an interpreter after Ensure()")
	}

	// Second call is a no-op beyond the existence check.
	requested = ""
	rt2, err := p.Ensure(context.Background(), Options{
		Version:    "3.11.9",
		BaseURL:    srv.URL,
		InstallDir: installDir,
	})
	if err != nil {
		t.Fatalf("second Ensure() failed: %v", err)
	}
	if requested != "" {
		t.Error("second Ensure() should not download again")
	}
	if rt2.ID != rt.ID {
		t.Errorf("second Ensure() runtime ID = %q; want %q", rt2.ID, rt.ID)
	}
}

func TestEnsure_CreatesMissingInstallParent(t *testing.T) {
	if runtime.GOOS+"/"+runtime.GOARCH == "plan9/386" {
		t.Skip("unsupported platform")
	}

	archive := buildTarGz(t, map[string]string{
		"python/":            "",
		"python/bin/python3": "#!/bin/sh\n",
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	runner := &fakeRunner{version: "3.11.9"}
	reg := newTestRegistry(t, runner)
	p := New(srv.Client(), runner, reg)

	// Fresh data dir layout: <data>/embedded/<version> where embedded/
	// does not exist yet. First-run provisioning must create it.
	dataDir := t.TempDir()
	installDir := filepath.Join(dataDir, "embedded", "3.11.9")

	rt, err := p.Ensure(context.Background(), Options{
		Version:    "3.11.9",
		BaseURL:    srv.URL,
		InstallDir: installDir,
	})
	if err != nil {
		t.Fatalf("Ensure() failed on a fresh data dir: %v", err)
	}
	if rt.Path != installDir {
		t.Errorf("runtime path = %q; want %q", rt.Path, installDir)
	}
	if _, ok := python.FindInterpreter(installDir); !ok {
		t.Error("install dir should contain an interpreter after Ensure()")
	}
}

func TestEnsure_DownloadFailureRegistersNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	runner := &fakeRunner{version: "3.11.9"}
	reg := newTestRegistry(t, runner)
	p := New(srv.Client(), runner, reg)

	installDir := filepath.Join(t.TempDir(), "embedded")
	_, err := p.Ensure(context.Background(), Options{
		Version:    "3.11.9",
		BaseURL:    srv.URL,
		InstallDir: installDir,
	})
	if err == nil {
		t.Fatal("Ensure() should fail on HTTP 404")
	}

	if len(reg.List()) != 0 {
		t.Error("failed provisioning must not register a runtime")
	}
	if _, statErr := os.Stat(installDir); !os.IsNotExist(statErr) {
		t.Error("failed provisioning must not leave an install directory behind")
	}
}
