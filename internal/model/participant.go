package model

import "time"

type ParticipationStatus string

const (
	StatusPending  ParticipationStatus = "pending"
	StatusAgreed   ParticipationStatus = "agreed"
	StatusDeclined ParticipationStatus = "declined"
)

func (s ParticipationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAgreed, StatusDeclined:
		return true
	}
	return false
}

// Participant is one row per (group, email). UserID is set once the email
// belongs to a known profile.
type Participant struct {
	ID                  int64               `json:"id"`
	GroupID             int64               `json:"group_id"`
	UserID              *string             `json:"user_id"`
	Email               string              `json:"email"`
	ContributionAmount  float64             `json:"contribution_amount"`
	ParticipationStatus ParticipationStatus `json:"participation_status"`
	AgreedAt            *time.Time          `json:"agreed_at"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
	// Synthetic marks an owner row reconstructed because none is stored.
	Synthetic bool `json:"synthetic,omitempty"`
}
