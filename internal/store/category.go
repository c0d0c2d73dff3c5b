package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/giftpool/internal/model"
)

type CategoryStore struct {
	db *sql.DB
}

func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

func scanCategory(s scanner) (*model.Category, error) {
	var c model.Category
	var date string
	err := s.Scan(&c.ID, &c.UserID, &c.Title, &date, &c.Color, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	d, err := model.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("category %d: %w", c.ID, err)
	}
	c.Date = d
	return &c, nil
}

const categoryCols = `id, user_id, title, date, color, created_at`

func (s *CategoryStore) Create(ctx context.Context, userID, title string, date time.Time, color string) (*model.Category, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO gift_categories (user_id, title, date, color) VALUES (?, ?, ?, ?)`,
		userID, title, model.FormatDate(date), color,
	)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *CategoryStore) GetByID(ctx context.Context, id int64) (*model.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryCols+` FROM gift_categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (s *CategoryStore) ListByUser(ctx context.Context, userID string) ([]model.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categoryCols+` FROM gift_categories WHERE user_id = ? ORDER BY date ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// Delete removes the category if it belongs to userID. Deleting a missing
// category is not an error.
func (s *CategoryStore) Delete(ctx context.Context, userID string, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM gift_categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}
