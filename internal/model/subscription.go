package model

import "time"

// SubscriptionTier limits are 0 for unlimited.
type SubscriptionTier struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	MaxGroups       int    `json:"max_groups"`
	MaxParticipants int    `json:"max_participants"`
}

type SubscriptionHistory struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"user_id"`
	TierID    int64      `json:"tier_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
}

type SubscriptionLimits struct {
	Tier            string `json:"tier"`
	GroupCount      int    `json:"group_count"`
	MaxGroups       int    `json:"max_groups"`
	MaxParticipants int    `json:"max_participants"`
	CanCreateGroup  bool   `json:"can_create_group"`
}

type Currency struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

type Country struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	CurrencyCode string `json:"currency_code"`
}
