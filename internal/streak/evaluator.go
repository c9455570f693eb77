// Package streak holds the pure rules that decide how a habit's completion
// flag and consecutive-day streak change. Nothing here performs I/O or reads
// the wall clock: callers pass the evaluation instant and the location whose
// midnight defines a day.
package streak

import (
	"time"

	"github.com/julianstephens/microhabits/internal/constants"
	"github.com/julianstephens/microhabits/internal/models"
	"github.com/julianstephens/microhabits/internal/utils"
)

// NeedsReset reports whether s is marked completed on a day before the local day of now.
func NeedsReset(s models.HabitState, now time.Time, loc *time.Location) bool {
	if !s.Completed {
		return false
	}
	if s.LastCompletedAt == nil {
		return true
	}
	return s.LastCompletedAt.Before(utils.StartOfDay(now, loc))
}

// Normalize clears a completion flag left over from a previous day. Streak and timestamps are kept.
func Normalize(s models.HabitState, now time.Time, loc *time.Location) models.HabitState {
	if NeedsReset(s, now, loc) {
		s.Completed = false
	}
	return s
}

// EvaluateToggle returns the state after the owner toggles the habit at now.
//
// Marking done increments the streak when the previous completion was today or
// yesterday and restarts it at 1 otherwise. Un-marking clears completed and
// last_completed_at but never decrements the streak; the undone instant is kept
// in RevokedAt so that re-marking on the same day leaves the streak where it was.
func EvaluateToggle(s models.HabitState, now time.Time, loc *time.Location) models.HabitState {
	s = Normalize(s, now, loc)

	if s.Completed {
		return models.HabitState{
			Completed: false,
			Streak:    s.Streak,
			RevokedAt: s.LastCompletedAt,
		}
	}

	completedAt := now
	return models.HabitState{
		Completed:       true,
		Streak:          nextStreak(s, now, loc),
		LastCompletedAt: &completedAt,
	}
}

func nextStreak(s models.HabitState, now time.Time, loc *time.Location) int {
	switch {
	case s.LastCompletedAt != nil:
		// A completion in the future (clock moved backwards) counts as today
		if utils.DaysBetween(*s.LastCompletedAt, now, loc) <= 1 {
			return s.Streak + 1
		}
		return 1
	case s.RevokedAt != nil:
		days := utils.DaysBetween(*s.RevokedAt, now, loc)
		if days <= 0 && s.Streak > 0 {
			// Same-day correction: today's completion was already counted
			return s.Streak
		}
		if days == 1 {
			return s.Streak + 1
		}
		return 1
	default:
		return 1
	}
}

// CanCreateHabit reports whether an owner holding ownerHabitCount live habits may add another.
func CanCreateHabit(ownerHabitCount int, isSubscribed bool) bool {
	return CanCreateHabitWithLimit(ownerHabitCount, isSubscribed, constants.FreeTierHabitLimit)
}

// CanCreateHabitWithLimit is CanCreateHabit with an explicit free-tier limit.
func CanCreateHabitWithLimit(ownerHabitCount int, isSubscribed bool, limit int) bool {
	return isSubscribed || ownerHabitCount < limit
}
