package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/microhabits/internal/models"
	"github.com/julianstephens/microhabits/internal/storage/sqlite"
)

func setupTestDB(t *testing.T) (string, *sqlite.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store := sqlite.NewStore(dbPath)
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	insertHabit(t, store, "h1", "Read")
	return dbPath, store
}

func insertHabit(t *testing.T, store *sqlite.Store, id, name string) {
	t.Helper()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	_, err := store.InsertHabit(context.Background(), models.Habit{
		ID: id, Owner: "alice", Name: name, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("failed to insert habit: %v", err)
	}
}

func countHabits(t *testing.T, dbPath string) int {
	t.Helper()
	store := sqlite.NewStore(dbPath)
	if err := store.Load(); err != nil {
		t.Fatalf("failed to load %s: %v", dbPath, err)
	}
	defer store.Close()

	n, err := store.CountHabits(context.Background(), "alice")
	if err != nil {
		t.Fatalf("failed to count habits: %v", err)
	}
	return n
}

func TestCreate(t *testing.T) {
	dbPath, _ := setupTestDB(t)
	mgr := NewManager(dbPath)

	snap, err := mgr.Create("pre-migrate")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if filepath.Dir(snap.Path) != mgr.Dir() {
		t.Errorf("snapshot written to %s, want %s", snap.Path, mgr.Dir())
	}
	if snap.Label != "pre-migrate" || snap.Size == 0 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if got := countHabits(t, snap.Path); got != 1 {
		t.Errorf("snapshot holds %d habits, want 1", got)
	}
}

func TestCreateMissingDatabase(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "missing.db"))
	if _, err := mgr.Create(""); err == nil {
		t.Error("expected error for a missing database")
	}
}

func TestListOrderAndCollisions(t *testing.T) {
	dbPath, _ := setupTestDB(t)
	mgr := NewManager(dbPath)
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	mgr.now = func() time.Time { return base }
	first, err := mgr.Create("")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, err := mgr.Create("")
	if err != nil {
		t.Fatalf("Create in the same second failed: %v", err)
	}
	if first.Path == second.Path {
		t.Fatal("expected a distinct path for a snapshot in the same second")
	}

	mgr.now = func() time.Time { return base.Add(time.Hour) }
	latest, err := mgr.Create("Manual Run")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	snaps, err := mgr.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}
	if snaps[0].Path != latest.Path || snaps[0].Label != "manual-run" {
		t.Errorf("newest snapshot = %+v, want %s", snaps[0], latest.Path)
	}
	if !snaps[1].TakenAt.Equal(base) || snaps[1].Label != "" {
		t.Errorf("unexpected collided snapshot: %+v", snaps[1])
	}
}

func TestRotation(t *testing.T) {
	dbPath, _ := setupTestDB(t)
	mgr := NewManager(dbPath)
	mgr.keep = 3
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		mgr.now = func() time.Time { return at }
		if _, err := mgr.Create(fmt.Sprintf("run-%d", i)); err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
	}

	snaps, err := mgr.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots after rotation, got %d", len(snaps))
	}
	if snaps[2].Label != "run-2" {
		t.Errorf("oldest kept snapshot = %s, want run-2", snaps[2].Label)
	}
}

func TestRestore(t *testing.T) {
	dbPath, store := setupTestDB(t)
	mgr := NewManager(dbPath)

	snap, err := mgr.Create("")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	insertHabit(t, store, "h2", "Walk")
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
	if got := countHabits(t, dbPath); got != 2 {
		t.Fatalf("expected 2 habits before restore, got %d", got)
	}

	previous, err := mgr.Restore(snap.Path)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if previous.Label != "pre-restore" {
		t.Errorf("expected a pre-restore snapshot, got %+v", previous)
	}
	if got := countHabits(t, dbPath); got != 1 {
		t.Errorf("expected 1 habit after restore, got %d", got)
	}
	if got := countHabits(t, previous.Path); got != 2 {
		t.Errorf("pre-restore snapshot holds %d habits, want 2", got)
	}
}

func TestRestoreRejectsInvalidFile(t *testing.T) {
	dbPath, _ := setupTestDB(t)
	mgr := NewManager(dbPath)

	bogus := filepath.Join(t.TempDir(), "bogus.db")
	if err := os.WriteFile(bogus, []byte("not a database"), 0600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if _, err := mgr.Restore(bogus); err == nil {
		t.Error("expected error restoring an invalid file")
	}
	if _, err := mgr.Restore(filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Error("expected error restoring a missing file")
	}
}

func TestParseName(t *testing.T) {
	tests := []struct {
		name      string
		wantOK    bool
		wantLabel string
	}{
		{name: "microhabits-20240601-090000.db", wantOK: true},
		{name: "microhabits-20240601-090000-pre-migrate.db", wantOK: true, wantLabel: "pre-migrate"},
		{name: "microhabits-20240601-090000.2.db", wantOK: true},
		{name: "microhabits-20240601-090000-pre-migrate.2.db", wantOK: true, wantLabel: "pre-migrate"},
		{name: "microhabits-garbage.db"},
		{name: "other-20240601-090000.db"},
		{name: "microhabits-20240601-090000.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, label, ok := parseName(tt.name)
			if ok != tt.wantOK || label != tt.wantLabel {
				t.Errorf("parseName(%q) = (%q, %v), want (%q, %v)", tt.name, label, ok, tt.wantLabel, tt.wantOK)
			}
		})
	}
}
