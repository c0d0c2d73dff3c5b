package model

import (
	"encoding/json"
	"time"
)

// Notification type constants
const (
	NotifTypeGroupInvite   = "group_invite"
	NotifTypeStatusChange  = "participant_status"
	NotifTypeGroupReminder = "group_reminder"
	NotifTypeBroadcast     = "broadcast"
	NotifTypeDirect        = "direct"
)

type NotificationStatus string

const (
	NotificationActive   NotificationStatus = "active"
	NotificationRead     NotificationStatus = "read"
	NotificationArchived NotificationStatus = "archived"
)

type Notification struct {
	ID             int64              `json:"id"`
	UserID         string             `json:"user_id"`
	Title          string             `json:"title"`
	Message        string             `json:"message"`
	Type           string             `json:"type"`
	Status         NotificationStatus `json:"status"`
	Priority       string             `json:"priority"`
	Category       string             `json:"category,omitempty"`
	RequiresAction bool               `json:"requires_action"`
	ActionURL      string             `json:"action_url,omitempty"`
	ActionText     string             `json:"action_text,omitempty"`
	Metadata       json.RawMessage    `json:"metadata,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      *time.Time         `json:"updated_at,omitempty"`
	ReadAt         *time.Time         `json:"read_at,omitempty"`
	ArchivedAt     *time.Time         `json:"archived_at,omitempty"`
}

// InviteMetadata is stored on group_invite notifications.
type InviteMetadata struct {
	GroupID      int64  `json:"group_id"`
	InviterID    string `json:"inviter_id"`
	InviterEmail string `json:"inviter_email"`
	GroupTitle   string `json:"group_title"`
}

// StatusChangeMetadata is stored on participant_status notifications.
type StatusChangeMetadata struct {
	GroupID int64               `json:"group_id"`
	Email   string              `json:"email"`
	Status  ParticipationStatus `json:"status"`
}
