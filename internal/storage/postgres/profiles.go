package postgres

import (
	"context"
	"database/sql"
	"errors"

	apperrors "github.com/julianstephens/microhabits/internal/errors"
	"github.com/julianstephens/microhabits/internal/models"
)

func (s *Store) GetProfile(ctx context.Context, owner string) (models.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, full_name, is_pro, created_at, updated_at FROM profiles WHERE id = $1", owner)

	var p models.Profile
	var fullName sql.NullString
	if err := row.Scan(&p.ID, &fullName, &p.IsPro, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Profile{ID: owner}, nil
		}
		return models.Profile{}, apperrors.Persistence("get profile", err)
	}
	p.FullName = fullName.String

	return p, nil
}

func (s *Store) SaveProfile(ctx context.Context, profile models.Profile) error {
	now := pgTime(s.now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, full_name, is_pro, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			is_pro = EXCLUDED.is_pro,
			updated_at = EXCLUDED.updated_at`,
		profile.ID, profile.FullName, profile.IsPro, now,
	)
	if err != nil {
		return apperrors.Persistence("save profile", err)
	}
	return nil
}
