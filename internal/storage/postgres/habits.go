package postgres

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
	var emoji sql.NullString
	var lastCompletedAt, revokedAt sql.NullTime

	if err := row.Scan(&h.ID, &h.Owner, &h.Name, &emoji, &h.Completed, &h.Streak,
		&lastCompletedAt, &revokedAt, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return models.Habit{}, err
	}
	h.Emoji = emoji.String
	h.LastCompletedAt = fromNullTime(lastCompletedAt)
	h.RevokedAt = fromNullTime(revokedAt)
	h.CreatedAt = h.CreatedAt.UTC()
	h.UpdatedAt = h.UpdatedAt.UTC()

	return h, nil
}

// args numbers bind parameters as they are appended
type args struct {
	values []any
}

func (a *args) add(v any) string {
	a.values = append(a.values, v)
	return fmt.Sprintf("$%d", len(a.values))
}

func (s *Store) ListHabits(ctx context.Context, owner string) ([]models.Habit, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE owner = $1 ORDER BY created_at, id", owner)
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
		"SELECT "+habitColumns+" FROM habits WHERE id = $1 AND owner = $2", id, owner)

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
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM habits WHERE owner = $1", owner).Scan(&n); err != nil {
		return 0, apperrors.Persistence("count habits", err)
	}
	return n, nil
}

func (s *Store) InsertHabit(ctx context.Context, habit models.Habit) (models.Habit, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO habits (`+habitColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+habitColumns,
		habit.ID, habit.Owner, habit.Name, nullString(habit.Emoji), habit.Completed, habit.Streak,
		pgNullTime(habit.LastCompletedAt), pgNullTime(habit.RevokedAt),
		pgTime(habit.CreatedAt), pgTime(s.now()),
	)

	h, err := scanHabit(row)
	if err != nil {
		return models.Habit{}, apperrors.Persistence("insert habit", err)
	}
	return h, nil
}

func (s *Store) UpdateHabit(ctx context.Context, id, owner string, patch models.HabitPatch) (models.Habit, error) {
	a := &args{}
	sets := []string{"updated_at = " + a.add(pgTime(s.now()))}

	if patch.Name != nil {
		sets = append(sets, "name = "+a.add(*patch.Name))
	}
	if patch.Emoji != nil {
		sets = append(sets, "emoji = "+a.add(nullString(*patch.Emoji)))
	}
	if patch.State != nil {
		sets = append(sets,
			"completed = "+a.add(patch.State.Completed),
			"streak = "+a.add(patch.State.Streak),
			"last_completed_at = "+a.add(pgNullTime(patch.State.LastCompletedAt)),
			"revoked_at = "+a.add(pgNullTime(patch.State.RevokedAt)),
		)
	}

	where := []string{"id = " + a.add(id), "owner = " + a.add(owner)}
	if patch.Expected != nil {
		where = append(where,
			"completed = "+a.add(patch.Expected.Completed),
			"streak = "+a.add(patch.Expected.Streak),
			"last_completed_at IS NOT DISTINCT FROM "+a.add(pgNullTime(patch.Expected.LastCompletedAt))+"::timestamptz",
			"revoked_at IS NOT DISTINCT FROM "+a.add(pgNullTime(patch.Expected.RevokedAt))+"::timestamptz",
		)
	}

	query := "UPDATE habits SET " + strings.Join(sets, ", ") +
		" WHERE " + strings.Join(where, " AND ") +
		" RETURNING " + habitColumns

	h, err := scanHabit(s.db.QueryRowContext(ctx, query, a.values...))
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Habit{}, apperrors.Persistence("update habit", err)
	}

	if _, getErr := s.GetHabit(ctx, id, owner); getErr != nil {
		return models.Habit{}, getErr
	}
	return models.Habit{}, fmt.Errorf("habit %s: %w", id, apperrors.ErrConflict)
}

func (s *Store) DeleteHabit(ctx context.Context, id, owner string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM habits WHERE id = $1 AND owner = $2", id, owner)
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

func (s *Store) ResetStaleCompletions(ctx context.Context, owner string, before time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE habits SET completed = FALSE, updated_at = $1
		WHERE owner = $2 AND completed
		  AND (last_completed_at IS NULL OR last_completed_at < $3)
		RETURNING id`,
		pgTime(s.now()), owner, before.UTC(),
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
