package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/julianstephens/microhabits/internal/errors"
	"github.com/julianstephens/microhabits/internal/models"
)

const habitColumns = "id, owner, name, emoji, completed, streak, last_completed_at, revoked_at, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(row rowScanner) (models.Habit, error) {
	var h models.Habit
	var emoji, lastCompletedAt, revokedAt sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&h.ID, &h.Owner, &h.Name, &emoji, &h.Completed, &h.Streak,
		&lastCompletedAt, &revokedAt, &createdAt, &updatedAt); err != nil {
		return models.Habit{}, err
	}
	h.Emoji = emoji.String

	var err error
	if h.LastCompletedAt, err = parseNullTime("last_completed_at", lastCompletedAt); err != nil {
		return models.Habit{}, err
	}
	if h.RevokedAt, err = parseNullTime("revoked_at", revokedAt); err != nil {
		return models.Habit{}, err
	}
	if h.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return models.Habit{}, err
	}
	if h.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return models.Habit{}, err
	}

	return h, nil
}

func (s *Store) ListHabits(ctx context.Context, owner string) ([]models.Habit, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE owner = ? ORDER BY created_at, id", owner)
	if err != nil {
		return nil, apperrors.Persistence("list habits", err)
	}
	defer rows.Close()

	habits := []models.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, apperrors.Persistence("list habits", err)
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Persistence("list habits", err)
	}

	return habits, nil
}

func (s *Store) GetHabit(ctx context.Context, id, owner string) (models.Habit, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE id = ? AND owner = ?", id, owner)

	h, err := scanHabit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Habit{}, fmt.Errorf("habit %s: %w", id, apperrors.ErrNotFound)
		}
		return models.Habit{}, apperrors.Persistence("get habit", err)
	}
	return h, nil
}

func (s *Store) CountHabits(ctx context.Context, owner string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM habits WHERE owner = ?", owner).Scan(&n); err != nil {
		return 0, apperrors.Persistence("count habits", err)
	}
	return n, nil
}

func (s *Store) InsertHabit(ctx context.Context, habit models.Habit) (models.Habit, error) {
	habit.UpdatedAt = s.now().UTC()
	habit.CreatedAt = habit.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO habits (`+habitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		habit.ID, habit.Owner, habit.Name, nullString(habit.Emoji), habit.Completed, habit.Streak,
		formatNullTime(habit.LastCompletedAt), formatNullTime(habit.RevokedAt),
		formatTime(habit.CreatedAt), formatTime(habit.UpdatedAt),
	)
	if err != nil {
		return models.Habit{}, apperrors.Persistence("insert habit", err)
	}

	return habit, nil
}

// UpdateHabit writes the patch as one UPDATE ... RETURNING statement. When the
// statement matches no row it checks whether the habit exists to tell a missing
// habit apart from a lost compare-and-swap.
func (s *Store) UpdateHabit(ctx context.Context, id, owner string, patch models.HabitPatch) (models.Habit, error) {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(s.now())}

	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Emoji != nil {
		sets = append(sets, "emoji = ?")
		args = append(args, nullString(*patch.Emoji))
	}
	if patch.State != nil {
		sets = append(sets, "completed = ?", "streak = ?", "last_completed_at = ?", "revoked_at = ?")
		args = append(args, patch.State.Completed, patch.State.Streak,
			formatNullTime(patch.State.LastCompletedAt), formatNullTime(patch.State.RevokedAt))
	}

	where := []string{"id = ?", "owner = ?"}
	args = append(args, id, owner)
	if patch.Expected != nil {
		where = append(where, "completed = ?", "streak = ?", "last_completed_at IS ?", "revoked_at IS ?")
		args = append(args, patch.Expected.Completed, patch.Expected.Streak,
			formatNullTime(patch.Expected.LastCompletedAt), formatNullTime(patch.Expected.RevokedAt))
	}

	query := "UPDATE habits SET " + strings.Join(sets, ", ") +
		" WHERE " + strings.Join(where, " AND ") +
		" RETURNING " + habitColumns

	h, err := scanHabit(s.db.QueryRowContext(ctx, query, args...))
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Habit{}, apperrors.Persistence("update habit", err)
	}

	// Nothing matched: either the habit is gone or its state moved on
	if _, getErr := s.GetHabit(ctx, id, owner); getErr != nil {
		return models.Habit{}, getErr
	}
	return models.Habit{}, fmt.Errorf("habit %s: %w", id, apperrors.ErrConflict)
}

func (s *Store) DeleteHabit(ctx context.Context, id, owner string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM habits WHERE id = ? AND owner = ?", id, owner)
	if err != nil {
		return apperrors.Persistence("delete habit", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Persistence("delete habit", err)
	}
	if n == 0 {
		return fmt.Errorf("habit %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// ResetStaleCompletions clears the completed flag with a single predicate UPDATE,
// so a toggle racing with it either lands before (and is reset) or after (and is kept).
func (s *Store) ResetStaleCompletions(ctx context.Context, owner string, before time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE habits SET completed = 0, updated_at = ?
		WHERE owner = ? AND completed = 1
		  AND (last_completed_at IS NULL OR last_completed_at < ?)
		RETURNING id`,
		formatTime(s.now()), owner, formatTime(before),
	)
	if err != nil {
		return nil, apperrors.Persistence("reset stale completions", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.Persistence("reset stale completions", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Persistence("reset stale completions", err)
	}

	return ids, nil
}
