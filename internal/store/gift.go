package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/giftpool/internal/model"
)

type GiftStore struct {
	db *sql.DB
}

func NewGiftStore(db *sql.DB) *GiftStore {
	return &GiftStore{db: db}
}

// GiftFields are the mutable attributes of a gift.
type GiftFields struct {
	Recipient string
	Name      string
	Price     *float64
	URL       *string
	ImageURL  *string
}

func scanGift(s scanner) (*model.Gift, error) {
	var g model.Gift
	var price sql.NullFloat64
	var url, imageURL sql.NullString
	var purchased int

	err := s.Scan(
		&g.ID, &g.UserID, &g.CategoryID, &g.Recipient, &g.Name,
		&price, &url, &imageURL, &purchased, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.Price = floatPtr(price)
	g.URL = stringPtr(url)
	g.ImageURL = stringPtr(imageURL)
	g.IsPurchased = purchased != 0
	return &g, nil
}

const giftCols = `id, user_id, category_id, recipient, name, price, url, image_url, is_purchased, created_at, updated_at`

func (s *GiftStore) Create(ctx context.Context, userID string, categoryID int64, f GiftFields) (*model.Gift, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO gifts (user_id, category_id, recipient, name, price, url, image_url) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, categoryID, f.Recipient, f.Name, nullFloat(f.Price), nullString(f.URL), nullString(f.ImageURL),
	)
	if err != nil {
		return nil, fmt.Errorf("insert gift: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *GiftStore) GetByID(ctx context.Context, id int64) (*model.Gift, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+giftCols+` FROM gifts WHERE id = ?`, id)
	g, err := scanGift(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get gift: %w", err)
	}
	return g, nil
}

func (s *GiftStore) ListByCategory(ctx context.Context, userID string, categoryID int64) ([]model.Gift, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+giftCols+` FROM gifts WHERE user_id = ? AND category_id = ? ORDER BY is_purchased ASC, created_at ASC, id ASC`,
		userID, categoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("list gifts: %w", err)
	}
	defer rows.Close()

	var gifts []model.Gift
	for rows.Next() {
		g, err := scanGift(rows)
		if err != nil {
			return nil, fmt.Errorf("scan gift: %w", err)
		}
		gifts = append(gifts, *g)
	}
	return gifts, rows.Err()
}

func (s *GiftStore) Update(ctx context.Context, userID string, id int64, f GiftFields) (*model.Gift, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE gifts SET recipient = ?, name = ?, price = ?, url = ?, image_url = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ?`,
		f.Recipient, f.Name, nullFloat(f.Price), nullString(f.URL), nullString(f.ImageURL), id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update gift: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}

func (s *GiftStore) SetPurchased(ctx context.Context, userID string, id int64, purchased bool) (*model.Gift, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE gifts SET is_purchased = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
		boolInt(purchased), id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("set purchased: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}

func (s *GiftStore) Delete(ctx context.Context, userID string, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM gifts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete gift: %w", err)
	}
	return nil
}
