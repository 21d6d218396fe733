package python

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// fakeRunner returns canned results keyed by the joined argument string.
type fakeRunner struct {
	results map[string]*Result
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, exe string, args ...string) (*Result, error) {
	key := exe
	for _, a := range args {
		key += " " + a
	}
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if res, ok := f.results[key]; ok {
		return res, nil
	}
	return &Result{}, nil
}

func TestVersion_ParsesStdout(t *testing.T) {
	r := &fakeRunner{results: map[string]*Result{
		"/usr/bin/python3 --version": {Stdout: "Python 3.11.4\n"},
	}}

	got, err := Version(context.Background(), r, "/usr/bin/python3")
	if err != nil {
		t.Fatalf("Version() failed: %v", err)
	}
	if got != "3.11.4" {
		t.Errorf("Version() = %q; want %q", got, "3.11.4")
	}
}

func TestVersion_FallsBackToStderr(t *testing.T) {
	// Python 2 and some embedded builds print the banner to stderr.
	r := &fakeRunner{results: map[string]*Result{
		"/usr/bin/python --version": {Stderr: "Python 2.7.18\n"},
	}}

	got, err := Version(context.Background(), r, "/usr/bin/python")
	if err != nil {
		t.Fatalf("Version() failed: %v", err)
	}
	if got != "2.7.18" {
		t.Errorf("Version() = %q; want %q", got, "2.7.18")
	}
}

func TestVersion_NonZeroExit(t *testing.T) {
	r := &fakeRunner{results: map[string]*Result{
		"/usr/bin/python3 --version": {ExitCode: 1, Stderr: "boom"},
	}}

	if _, err := Version(context.Background(), r, "/usr/bin/python3"); err == nil {
		t.Fatal("Version() should fail on non-zero exit")
	}
}

func TestInstalledPackages_ParsesFreezeOutput(t *testing.T) {
	r := &fakeRunner{results: map[string]*Result{
		"/venv/bin/python -m pip list --format=freeze": {
			Stdout: "numpy==1.26.4\npandas==2.2.1\n-e /home/me/devpkg\n\n",
		},
	}}

	pkgs, err := InstalledPackages(context.Background(), r, "/venv/bin/python")
	if err != nil {
		t.Fatalf("InstalledPackages() failed: %v", err)
	}
	if len(pkgs) != 2 {
		t.Fatalf("InstalledPackages() returned %d packages; want 2", len(pkgs))
	}
	if pkgs["numpy"] != "1.26.4" {
		t.Errorf("numpy version = %q; want 1.26.4", pkgs["numpy"])
	}
	if pkgs["pandas"] != "2.2.1" {
		t.Errorf("pandas version = %q; want 2.2.1", pkgs["pandas"])
	}
}

func TestFindInterpreter(t *testing.T) {
	root := t.TempDir()
	binDir := filepath.Join(root, "bin")
	if err := os.MkdirAll(binDir, 0755); err != nil {
		t.Fatalf("failed to create bin dir: %v", err)
	}
	exe := filepath.Join(binDir, "python3")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("failed to write fake interpreter: %v", err)
	}

	got, ok := FindInterpreter(root)
	if !ok {
		t.Fatal("FindInterpreter() found nothing")
	}
	if got != exe {
		t.Errorf("FindInterpreter() = %q; want %q", got, exe)
	}
}

func TestFindInterpreter_Missing(t *testing.T) {
	if _, ok := FindInterpreter(t.TempDir()); ok {
		t.Error("FindInterpreter() should find nothing in an empty dir")
	}
}

func TestIsVenv(t *testing.T) {
	root := t.TempDir()
	if IsVenv(root) {
		t.Error("empty dir should not be a venv")
	}

	if err := os.WriteFile(filepath.Join(root, "pyvenv.cfg"), []byte("home = /usr\n"), 0644); err != nil {
		t.Fatalf("failed to write pyvenv.cfg: %v", err)
	}
	if IsVenv(root) {
		t.Error("pyvenv.cfg without interpreter should not be a venv")
	}

	binDir := filepath.Join(root, "bin")
	if err := os.MkdirAll(binDir, 0755); err != nil {
		t.Fatalf("failed to create bin dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(binDir, "python"), []byte(""), 0755); err != nil {
		t.Fatalf("failed to write interpreter: %v", err)
	}
	if !IsVenv(root) {
		t.Error("dir with pyvenv.cfg and interpreter should be a venv")
	}
}

func TestArchitecture(t *testing.T) {
	for _, tc := range []struct {
		out  string
		want string
	}{
		{"64\n", "64-bit"},
		{"32\n", "32-bit"},
	} {
		r := &fakeRunner{results: map[string]*Result{
			"py -c import struct; print(struct.calcsize('P')*8)": {Stdout: tc.out},
		}}
		got, err := Architecture(context.Background(), r, "py")
		if err != nil {
			t.Fatalf("Architecture(%q) failed: %v", tc.out, err)
		}
		if got != tc.want {
			t.Errorf("Architecture(%q) = %q; want %q", tc.out, got, tc.want)
		}
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	var r ExecRunner
	missing := filepath.Join(t.TempDir(), fmt.Sprintf("nope-%d", os.Getpid()))
	if _, err := r.Run(context.Background(), missing, "--version"); err == nil {
		t.Error("Run() should fail for a missing binary")
	}
}
