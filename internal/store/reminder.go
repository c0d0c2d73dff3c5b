package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ReminderStore dedupes group date reminders.
type ReminderStore struct {
	db *sql.DB
}

func NewReminderStore(db *sql.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

func (s *ReminderStore) RecordSent(ctx context.Context, groupID int64, email string, daysBefore int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sent_reminders (group_id, participant_email, days_before) VALUES (?, ?, ?)`,
		groupID, strings.ToLower(email), daysBefore,
	)
	if err != nil {
		return fmt.Errorf("record sent reminder: %w", err)
	}
	return nil
}

func (s *ReminderStore) WasSent(ctx context.Context, groupID int64, email string, daysBefore int) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sent_reminders WHERE group_id = ? AND participant_email = ? AND days_before = ?`,
		groupID, strings.ToLower(email), daysBefore,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check sent reminder: %w", err)
	}
	return count > 0, nil
}

// CleanupSent deletes reminder records older than the given time.
func (s *ReminderStore) CleanupSent(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sent_reminders WHERE sent_at < ?`, before.UTC())
	if err != nil {
		return fmt.Errorf("cleanup sent reminders: %w", err)
	}
	return nil
}
