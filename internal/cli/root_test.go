package cli

import (
	"testing"
	"time"

	"github.com/julianstephens/microhabits/internal/models"
)

func TestResolveOwner(t *testing.T) {
	got, err := ResolveOwner("  alice ")
	if err != nil {
		t.Fatalf("ResolveOwner() error = %v", err)
	}
	if got != "alice" {
		t.Errorf("ResolveOwner() = %q, want alice", got)
	}

	got, err = ResolveOwner("")
	if err != nil {
		t.Skipf("no current user available: %v", err)
	}
	if got == "" {
		t.Error("ResolveOwner(\"\") returned an empty owner")
	}
}

func TestFormatHabit(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		habit models.Habit
		want  string
	}{
		{
			name:  "pending without emoji",
			habit: models.Habit{Name: "Read"},
			want:  "[ ] Read (streak 0)",
		},
		{
			name: "completed with emoji",
			habit: models.Habit{
				Name:            "Drink water",
				Emoji:           "💧",
				Completed:       true,
				Streak:          4,
				LastCompletedAt: &now,
			},
			want: "[x] 💧 Drink water (streak 4)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatHabit(tt.habit); got != tt.want {
				t.Errorf("FormatHabit() = %q, want %q", got, tt.want)
			}
		})
	}
}
