package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/giftpool/internal/model"
)

// ReferenceStore reads seeded lookup tables.
type ReferenceStore struct {
	db *sql.DB
}

func NewReferenceStore(db *sql.DB) *ReferenceStore {
	return &ReferenceStore{db: db}
}

func (s *ReferenceStore) ListCurrencies(ctx context.Context) ([]model.Currency, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, name, symbol FROM currencies ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	defer rows.Close()

	var out []model.Currency
	for rows.Next() {
		var c model.Currency
		if err := rows.Scan(&c.Code, &c.Name, &c.Symbol); err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *ReferenceStore) CurrencyExists(ctx context.Context, code string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM currencies WHERE code = ?`, strings.ToUpper(code),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check currency: %w", err)
	}
	return n > 0, nil
}

func (s *ReferenceStore) ListCountries(ctx context.Context) ([]model.Country, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, name, currency_code FROM countries ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	defer rows.Close()

	var out []model.Country
	for rows.Next() {
		var c model.Country
		if err := rows.Scan(&c.Code, &c.Name, &c.CurrencyCode); err != nil {
			return nil, fmt.Errorf("scan country: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *ReferenceStore) ListPredefinedCategories(ctx context.Context) ([]model.PredefinedCategory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, color FROM predefined_categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list predefined categories: %w", err)
	}
	defer rows.Close()

	var out []model.PredefinedCategory
	for rows.Next() {
		var c model.PredefinedCategory
		if err := rows.Scan(&c.ID, &c.Title, &c.Color); err != nil {
			return nil, fmt.Errorf("scan predefined category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
