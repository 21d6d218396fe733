package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pyforge-dev/pyforge/internal/python"
)

// newTestStore creates an in-memory store with the schema applied.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	if err := s.CreateSchema(); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return s
}

func testRuntime(name, path string) *python.Runtime {
	return &python.Runtime{
		ID:             uuid.NewString(),
		Name:           name,
		Path:           path,
		Version:        "3.11.4",
		Architecture:   "64-bit",
		PackageManager: python.PkgManagerPip,
		Kind:           python.KindSystem,
		DiscoveredAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestNew(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	if s.db == nil {
		t.Error("Store.db should not be nil")
	}
}

func TestCreateSchema(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	tables := []string{"runtimes", "virtualenvs"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}
}

// TestListRuntimes_NoSchema_ReturnsErrNotInitialized verifies that querying a
// fresh DB (no CreateSchema) maps to ErrNotInitialized.
func TestListRuntimes_NoSchema_ReturnsErrNotInitialized(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	// Do NOT call CreateSchema; simulate an uninitialized database.
	_, err = s.ListRuntimes()
	if err == nil {
		t.Fatal("ListRuntimes() should return an error on uninitialized DB")
	}
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ListRuntimes() error = %v; want errors.Is(err, ErrNotInitialized)", err)
	}
}

func TestUpsertRuntime_IdempotentByPath(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	rt := testRuntime("system python", "/usr")
	if err := s.UpsertRuntime(rt); err != nil {
		t.Fatalf("UpsertRuntime() failed: %v", err)
	}

	// Re-registering the same path updates metadata instead of duplicating.
	again := testRuntime("system python", "/usr")
	again.Version = "3.12.1"
	if err := s.UpsertRuntime(again); err != nil {
		t.Fatalf("second UpsertRuntime() failed: %v", err)
	}

	runtimes, err := s.ListRuntimes()
	if err != nil {
		t.Fatalf("ListRuntimes() failed: %v", err)
	}
	if len(runtimes) != 1 {
		t.Fatalf("ListRuntimes() returned %d runtimes; want 1", len(runtimes))
	}
	if runtimes[0].Version != "3.12.1" {
		t.Errorf("runtime version = %q; want 3.12.1 after re-registration", runtimes[0].Version)
	}
	if runtimes[0].ID != rt.ID {
		t.Errorf("runtime ID changed on re-registration: %q != %q", runtimes[0].ID, rt.ID)
	}
}

func TestGetRuntime_NotFound(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	if _, err := s.GetRuntime("no-such-id"); err == nil {
		t.Error("GetRuntime() should fail for unknown ID")
	}
}

func TestEnvironmentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	rt := testRuntime("system python", "/usr")
	if err := s.UpsertRuntime(rt); err != nil {
		t.Fatalf("UpsertRuntime() failed: %v", err)
	}

	env := &python.Environment{
		ID:               uuid.NewString(),
		Name:             "mlenv",
		Path:             "/home/me/.pyforge/envs/mlenv",
		RuntimeID:        rt.ID,
		RequirementsPath: "/home/me/.pyforge/requirements/mlenv.txt",
		AutoUpdate:       true,
		PythonVersion:    "3.11.4",
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
	}
	if err := s.UpsertEnvironment(env); err != nil {
		t.Fatalf("UpsertEnvironment() failed: %v", err)
	}

	got, err := s.GetEnvironment(env.ID)
	if err != nil {
		t.Fatalf("GetEnvironment() failed: %v", err)
	}
	if got.Name != env.Name || got.Path != env.Path || got.RuntimeID != rt.ID {
		t.Errorf("GetEnvironment() = %+v; want %+v", got, env)
	}
	if !got.AutoUpdate {
		t.Error("AutoUpdate flag should round-trip as true")
	}

	byPath, err := s.GetEnvironmentByPath(env.Path)
	if err != nil {
		t.Fatalf("GetEnvironmentByPath() failed: %v", err)
	}
	if byPath.ID != env.ID {
		t.Errorf("GetEnvironmentByPath() ID = %q; want %q", byPath.ID, env.ID)
	}
}

func TestListEnvironments_FiltersByRuntime(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	rt1 := testRuntime("a", "/opt/py1")
	rt2 := testRuntime("b", "/opt/py2")
	for _, rt := range []*python.Runtime{rt1, rt2} {
		if err := s.UpsertRuntime(rt); err != nil {
			t.Fatalf("UpsertRuntime() failed: %v", err)
		}
	}

	for i, rtID := range []string{rt1.ID, rt1.ID, rt2.ID} {
		env := &python.Environment{
			ID:        uuid.NewString(),
			Name:      string(rune('a' + i)),
			Path:      "/envs/" + uuid.NewString(),
			RuntimeID: rtID,
			CreatedAt: time.Now(),
		}
		if err := s.UpsertEnvironment(env); err != nil {
			t.Fatalf("UpsertEnvironment() failed: %v", err)
		}
	}

	envs, err := s.ListEnvironments(rt1.ID)
	if err != nil {
		t.Fatalf("ListEnvironments() failed: %v", err)
	}
	if len(envs) != 2 {
		t.Errorf("ListEnvironments(rt1) returned %d envs; want 2", len(envs))
	}

	all, err := s.ListEnvironments("")
	if err != nil {
		t.Fatalf("ListEnvironments(all) failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListEnvironments(all) returned %d envs; want 3", len(all))
	}
}

func TestDeleteRuntime_CascadesToEnvironments(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	rt := testRuntime("system python", "/usr")
	if err := s.UpsertRuntime(rt); err != nil {
		t.Fatalf("UpsertRuntime() failed: %v", err)
	}
	env := &python.Environment{
		ID:        uuid.NewString(),
		Name:      "doomed",
		Path:      "/envs/doomed",
		RuntimeID: rt.ID,
		CreatedAt: time.Now(),
	}
	if err := s.UpsertEnvironment(env); err != nil {
		t.Fatalf("UpsertEnvironment() failed: %v", err)
	}

	if err := s.DeleteRuntime(rt.ID); err != nil {
		t.Fatalf("DeleteRuntime() failed: %v", err)
	}

	envs, err := s.ListEnvironments("")
	if err != nil {
		t.Fatalf("ListEnvironments() failed: %v", err)
	}
	if len(envs) != 0 {
		t.Errorf("expected cascade delete of virtualenvs; %d remain", len(envs))
	}
}

func TestSetEnvironmentAutoUpdate(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	rt := testRuntime("system python", "/usr")
	if err := s.UpsertRuntime(rt); err != nil {
		t.Fatalf("UpsertRuntime() failed: %v", err)
	}
	env := &python.Environment{
		ID:         uuid.NewString(),
		Name:       "env",
		Path:       "/envs/env",
		RuntimeID:  rt.ID,
		AutoUpdate: true,
		CreatedAt:  time.Now(),
	}
	if err := s.UpsertEnvironment(env); err != nil {
		t.Fatalf("UpsertEnvironment() failed: %v", err)
	}

	if err := s.SetEnvironmentAutoUpdate(env.ID, false); err != nil {
		t.Fatalf("SetEnvironmentAutoUpdate() failed: %v", err)
	}
	got, err := s.GetEnvironment(env.ID)
	if err != nil {
		t.Fatalf("GetEnvironment() failed: %v", err)
	}
	if got.AutoUpdate {
		t.Error("AutoUpdate should be false after update")
	}

	if err := s.SetEnvironmentAutoUpdate("missing", true); err == nil {
		t.Error("SetEnvironmentAutoUpdate() should fail for unknown env")
	}
}
