package health

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pyforge-dev/pyforge/internal/python"
	"github.com/pyforge-dev/pyforge/internal/registry"
	"github.com/pyforge-dev/pyforge/internal/store"
)

// fakeRunner answers interpreter probes. Probes listed in fail return a
// non-zero exit; calls holds every argument list seen.
type fakeRunner struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls [][]string
}

func (f *fakeRunner) Run(_ context.Context, exe string, args ...string) (*python.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()

	joined := strings.Join(args, " ")
	if f.fail[joined] {
		return &python.Result{ExitCode: 1, Stderr: "probe failed"}, nil
	}
	switch {
	case joined == "--version":
		return &python.Result{Stdout: "Python 3.11.4\n"}, nil
	case joined == "-m pip --version":
		return &python.Result{Stdout: "pip 24.0\n"}, nil
	case joined == "-c print('test')":
		return &python.Result{Stdout: "test\n"}, nil
	case args[0] == "-c":
		return &python.Result{Stdout: "64\n"}, nil
	}
	return &python.Result{}, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newMonitor(t *testing.T) (*Monitor, *registry.Registry, *fakeRunner) {
	t.Helper()

	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := s.CreateSchema(); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	runner := &fakeRunner{fail: map[string]bool{}}
	reg := registry.New(s, runner, nil)
	return New(reg, runner), reg, runner
}

func installRuntime(t *testing.T, reg *registry.Registry) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "py")
	if err := os.MkdirAll(filepath.Join(root, "bin"), 0755); err != nil {
		t.Fatalf("failed to create runtime dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "bin", "python3"), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("failed to write interpreter: %v", err)
	}
	if _, err := reg.Register(context.Background(), root, ""); err != nil {
		t.Fatalf("failed to register runtime: %v", err)
	}
	return root
}

func TestCheck_EmptyRegistry(t *testing.T) {
	m, _, _ := newMonitor(t)

	report := m.Check(context.Background())

	if report.Overall != StatusUnknown {
		t.Errorf("overall = %q; want %q", report.Overall, StatusUnknown)
	}
	if report.Summary != "0/0 runtimes healthy" {
		t.Errorf("summary = %q; want %q", report.Summary, "0/0 runtimes healthy")
	}
	if len(report.Runtimes) != 0 {
		t.Errorf("report lists %d runtimes; want 0", len(report.Runtimes))
	}
}

func TestCheck_HealthyRuntime(t *testing.T) {
	m, reg, _ := newMonitor(t)
	installRuntime(t, reg)

	report := m.Check(context.Background())

	if report.Overall != StatusHealthy {
		t.Fatalf("overall = %q; want %q", report.Overall, StatusHealthy)
	}
	if report.Summary != "1/1 runtimes healthy" {
		t.Errorf("summary = %q", report.Summary)
	}
	h := report.Runtimes[0]
	if !h.IsHealthy() {
		t.Errorf("runtime status = %q, issues = %v", h.Status, h.Issues)
	}
	if len(h.Issues) != 0 {
		t.Errorf("healthy runtime carries issues: %v", h.Issues)
	}
	if h.PythonVersion != "3.11.4" {
		t.Errorf("version = %q; want 3.11.4", h.PythonVersion)
	}
}

func TestCheck_MissingPathStopsSequence(t *testing.T) {
	m, reg, runner := newMonitor(t)
	root := installRuntime(t, reg)

	if err := os.RemoveAll(root); err != nil {
		t.Fatalf("failed to remove runtime dir: %v", err)
	}

	before := runner.callCount()
	report := m.Check(context.Background())

	if report.Overall != StatusUnhealthy {
		t.Errorf("overall = %q; want %q", report.Overall, StatusUnhealthy)
	}
	h := report.Runtimes[0]
	if h.IsHealthy() {
		t.Error("runtime with a missing path must not be healthy")
	}
	if h.Status != StatusUnhealthy {
		t.Errorf("status = %q; want %q", h.Status, StatusUnhealthy)
	}
	if len(h.Issues) != 1 {
		t.Errorf("issues = %v; want exactly one", h.Issues)
	}
	// The fatal first check must short-circuit: no interpreter probes ran.
	if runner.callCount() != before {
		t.Errorf("probes ran against a missing runtime: %d calls", runner.callCount()-before)
	}
}

func TestCheck_DegradedOnPipFailure(t *testing.T) {
	m, reg, runner := newMonitor(t)
	installRuntime(t, reg)
	runner.fail["-m pip --version"] = true

	report := m.Check(context.Background())

	if report.Overall != StatusDegraded {
		t.Errorf("overall = %q; want %q", report.Overall, StatusDegraded)
	}
	h := report.Runtimes[0]
	if h.Status != StatusDegraded {
		t.Errorf("status = %q; want %q", h.Status, StatusDegraded)
	}
	if len(h.Issues) != 1 {
		t.Errorf("issues = %v; want exactly one", h.Issues)
	}
}

func TestCheck_ExecutionFailureIsFatal(t *testing.T) {
	m, reg, runner := newMonitor(t)
	installRuntime(t, reg)
	runner.fail["-c print('test')"] = true

	report := m.Check(context.Background())

	if report.Overall != StatusUnhealthy {
		t.Errorf("overall = %q; want %q", report.Overall, StatusUnhealthy)
	}
	if report.Runtimes[0].Status != StatusUnhealthy {
		t.Errorf("status = %q; want %q", report.Runtimes[0].Status, StatusUnhealthy)
	}
}

func TestCheck_MixedRuntimes(t *testing.T) {
	m, reg, _ := newMonitor(t)
	installRuntime(t, reg)
	broken := installRuntime(t, reg)
	if err := os.RemoveAll(broken); err != nil {
		t.Fatalf("failed to remove runtime dir: %v", err)
	}

	report := m.Check(context.Background())

	if report.Overall != StatusUnhealthy {
		t.Errorf("overall = %q; want %q", report.Overall, StatusUnhealthy)
	}
	if report.Summary != "1/2 runtimes healthy" {
		t.Errorf("summary = %q", report.Summary)
	}
}

func TestMonitor_StartStop(t *testing.T) {
	m, reg, _ := newMonitor(t)
	installRuntime(t, reg)

	m.Start(50 * time.Millisecond)
	defer m.Stop()

	// The first sweep runs synchronously inside Start.
	report := m.Latest()
	if report == nil {
		t.Fatal("Latest() should return the initial sweep")
	}
	if report.Overall != StatusHealthy {
		t.Errorf("overall = %q; want %q", report.Overall, StatusHealthy)
	}

	m.Stop()
	m.Stop() // second stop is a no-op
}

// gatedRunner blocks version probes on a channel once armed, recording how
// many sweeps start and how many probes run concurrently.
type gatedRunner struct {
	mu        sync.Mutex
	armed     bool
	release   chan struct{}
	entered   chan struct{}
	sweeps    int
	active    int
	maxActive int
}

func (g *gatedRunner) Run(_ context.Context, exe string, args ...string) (*python.Result, error) {
	joined := strings.Join(args, " ")

	g.mu.Lock()
	g.active++
	if g.active > g.maxActive {
		g.maxActive = g.active
	}
	var gate chan struct{}
	if joined == "--version" && g.armed {
		g.sweeps++
		if g.sweeps == 1 {
			close(g.entered)
		}
		gate = g.release
	}
	g.mu.Unlock()

	if gate != nil {
		<-gate
	}

	g.mu.Lock()
	g.active--
	g.mu.Unlock()

	switch {
	case joined == "--version":
		return &python.Result{Stdout: "Python 3.11.4\n"}, nil
	case joined == "-m pip --version":
		return &python.Result{Stdout: "pip 24.0\n"}, nil
	case joined == "-c print('test')":
		return &python.Result{Stdout: "test\n"}, nil
	}
	return &python.Result{Stdout: "64\n"}, nil
}

func TestMonitor_TickDuringSweepIsSkipped(t *testing.T) {
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := s.CreateSchema(); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	runner := &gatedRunner{
		release: make(chan struct{}),
		entered: make(chan struct{}),
	}
	reg := registry.New(s, runner, nil)
	installRuntime(t, reg)

	m := New(reg, runner)
	m.Start(10 * time.Millisecond)

	// The initial sweep inside Start ran unarmed; arm the gate so the next
	// ticked sweep blocks mid-probe.
	runner.mu.Lock()
	runner.armed = true
	runner.mu.Unlock()

	<-runner.entered

	// Several intervals elapse while the sweep is stuck.
	time.Sleep(80 * time.Millisecond)

	runner.mu.Lock()
	sweeps, maxActive := runner.sweeps, runner.maxActive
	runner.mu.Unlock()

	if sweeps != 1 {
		t.Errorf("ticks during an in-flight sweep started %d sweep(s); want 1", sweeps)
	}
	if maxActive != 1 {
		t.Errorf("max concurrent probes = %d; want 1", maxActive)
	}

	close(runner.release)
	m.Stop()
}

func TestMonitor_StopWithoutStart(t *testing.T) {
	m, _, _ := newMonitor(t)
	m.Stop() // must not panic or block
}
