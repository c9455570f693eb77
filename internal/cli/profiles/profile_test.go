package profiles

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/microhabits/internal/cli"
	"github.com/julianstephens/microhabits/internal/storage"
)

func setupTestContext(t *testing.T) *cli.Context {
	t.Helper()
	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "test.json"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	return cli.NewContext(store, "alice", time.UTC, 0)
}

func TestSubscribeLiftsCap(t *testing.T) {
	ctx := setupTestContext(t)
	bg := context.Background()

	for _, name := range []string{"One", "Two", "Three"} {
		if _, err := ctx.Engine.AddHabit(bg, "alice", name, ""); err != nil {
			t.Fatalf("add %s failed: %v", name, err)
		}
	}

	if err := (&ProfileShowCmd{}).Run(ctx); err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if err := (&ProfileSubscribeCmd{}).Run(ctx); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	ok, err := ctx.Engine.CanCreateHabit(bg, "alice")
	if err != nil {
		t.Fatalf("CanCreateHabit failed: %v", err)
	}
	if !ok {
		t.Error("expected subscribed owner to be able to create habits")
	}

	if _, err := ctx.Engine.AddHabit(bg, "alice", "Four", ""); err != nil {
		t.Fatalf("add after subscribe failed: %v", err)
	}

	if err := (&ProfileUnsubscribeCmd{}).Run(ctx); err != nil {
		t.Fatalf("unsubscribe failed: %v", err)
	}
	habits, err := ctx.Engine.ListHabits(bg, "alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(habits) != 4 {
		t.Errorf("expected existing habits to be kept, got %d", len(habits))
	}
	if ok, _ := ctx.Engine.CanCreateHabit(bg, "alice"); ok {
		t.Error("expected unsubscribed owner over the cap to be blocked")
	}
}
