package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/giftpool/internal/model"
)

const defaultTier = "free"

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// CurrentTier returns the tier of the user's open subscription history row,
// or the free tier when there is none.
func (s *SubscriptionStore) CurrentTier(ctx context.Context, userID string) (*model.SubscriptionTier, error) {
	var t model.SubscriptionTier
	err := s.db.QueryRowContext(ctx,
		`SELECT t.id, t.name, t.max_groups, t.max_participants
		 FROM subscription_history h
		 JOIN subscription_tiers t ON t.id = h.tier_id
		 WHERE h.user_id = ? AND h.ended_at IS NULL
		 ORDER BY h.started_at DESC, h.id DESC
		 LIMIT 1`,
		userID,
	).Scan(&t.ID, &t.Name, &t.MaxGroups, &t.MaxParticipants)
	if err == sql.ErrNoRows {
		return s.GetTierByName(ctx, defaultTier)
	}
	if err != nil {
		return nil, fmt.Errorf("get current tier: %w", err)
	}
	return &t, nil
}

func (s *SubscriptionStore) GetTierByName(ctx context.Context, name string) (*model.SubscriptionTier, error) {
	var t model.SubscriptionTier
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, max_groups, max_participants FROM subscription_tiers WHERE name = ?`, name,
	).Scan(&t.ID, &t.Name, &t.MaxGroups, &t.MaxParticipants)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tier: %w", err)
	}
	return &t, nil
}

// SetTier closes the user's open history row and opens a new one.
func (s *SubscriptionStore) SetTier(ctx context.Context, userID string, tierID int64) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE subscription_history SET ended_at = CURRENT_TIMESTAMP WHERE user_id = ? AND ended_at IS NULL`,
			userID,
		); err != nil {
			return fmt.Errorf("close subscription history: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO subscription_history (user_id, tier_id) VALUES (?, ?)`, userID, tierID,
		); err != nil {
			return fmt.Errorf("insert subscription history: %w", err)
		}
		return nil
	})
}

// CheckLimits reports the user's tier limits and whether another group may
// be created. Limits of 0 are unlimited.
func (s *SubscriptionStore) CheckLimits(ctx context.Context, userID string) (*model.SubscriptionLimits, error) {
	tier, err := s.CurrentTier(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tier == nil {
		return nil, fmt.Errorf("check limits: tier %q not seeded", defaultTier)
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM gift_groups WHERE user_id = ?`, userID,
	).Scan(&count); err != nil {
		return nil, fmt.Errorf("count groups: %w", err)
	}

	return &model.SubscriptionLimits{
		Tier:            tier.Name,
		GroupCount:      count,
		MaxGroups:       tier.MaxGroups,
		MaxParticipants: tier.MaxParticipants,
		CanCreateGroup:  tier.MaxGroups == 0 || count < tier.MaxGroups,
	}, nil
}
