package sqlite

import (
	"context"
	"database/sql"
	"errors"

	apperrors "github.com/julianstephens/microhabits/internal/errors"
	"github.com/julianstephens/microhabits/internal/models"
)

// GetProfile returns the owner's profile. An owner without a row is a free-tier user.
func (s *Store) GetProfile(ctx context.Context, owner string) (models.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, full_name, is_pro, created_at, updated_at FROM profiles WHERE id = ?", owner)

	var p models.Profile
	var fullName sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&p.ID, &fullName, &p.IsPro, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Profile{ID: owner}, nil
		}
		return models.Profile{}, apperrors.Persistence("get profile", err)
	}
	p.FullName = fullName.String

	var err error
	if p.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return models.Profile{}, apperrors.Persistence("get profile", err)
	}
	if p.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return models.Profile{}, apperrors.Persistence("get profile", err)
	}

	return p, nil
}

func (s *Store) SaveProfile(ctx context.Context, profile models.Profile) error {
	now := formatTime(s.now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, full_name, is_pro, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			full_name = excluded.full_name,
			is_pro = excluded.is_pro,
			updated_at = excluded.updated_at`,
		profile.ID, profile.FullName, profile.IsPro, now, now,
	)
	if err != nil {
		return apperrors.Persistence("save profile", err)
	}
	return nil
}
