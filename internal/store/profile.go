package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/giftpool/internal/model"
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(s scanner) (*model.Profile, error) {
	var p model.Profile
	err := s.Scan(&p.ID, &p.Email, &p.DisplayName, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const profileCols = `id, email, display_name, avatar_url, created_at, updated_at`

// Upsert records the profile behind a verified token and links any
// participant rows already addressed to its email.
func (s *ProfileStore) Upsert(ctx context.Context, id, email, displayName string) (*model.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO profiles (id, email, display_name) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   email = excluded.email,
			   display_name = CASE WHEN excluded.display_name = '' THEN profiles.display_name ELSE excluded.display_name END,
			   updated_at = CURRENT_TIMESTAMP`,
			id, email, displayName,
		); err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE group_participants SET user_id = ? WHERE email = ? AND user_id IS NULL`,
			id, email,
		); err != nil {
			return fmt.Errorf("link participants: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *ProfileStore) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by email: %w", err)
	}
	return p, nil
}

// ListIDs returns every profile ID, for broadcasts.
func (s *ProfileStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM profiles ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list profile ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan profile id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
