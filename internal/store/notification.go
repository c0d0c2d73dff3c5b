package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/giftpool/internal/model"
)

type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

// NewNotification holds the fields callers supply when creating a
// notification.
type NewNotification struct {
	UserID         string
	Title          string
	Message        string
	Type           string
	Priority       string
	Category       string
	RequiresAction bool
	ActionURL      string
	ActionText     string
	Metadata       json.RawMessage
}

func scanNotification(s scanner) (*model.Notification, error) {
	var n model.Notification
	var status, metadata string
	var requiresAction int
	var updatedAt, readAt, archivedAt sql.NullTime

	err := s.Scan(
		&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &status, &n.Priority,
		&n.Category, &requiresAction, &n.ActionURL, &n.ActionText, &metadata,
		&n.CreatedAt, &updatedAt, &readAt, &archivedAt,
	)
	if err != nil {
		return nil, err
	}
	n.Status = model.NotificationStatus(status)
	n.RequiresAction = requiresAction != 0
	if metadata != "" {
		n.Metadata = json.RawMessage(metadata)
	}
	n.UpdatedAt = timePtr(updatedAt)
	n.ReadAt = timePtr(readAt)
	n.ArchivedAt = timePtr(archivedAt)
	return &n, nil
}

const notificationCols = `id, user_id, title, message, type, status, priority, category, requires_action, action_url, action_text, metadata, created_at, updated_at, read_at, archived_at`

func insertNotification(ctx context.Context, q querier, n NewNotification) (int64, error) {
	priority := n.Priority
	if priority == "" {
		priority = "normal"
	}
	metadata := "{}"
	if len(n.Metadata) > 0 {
		metadata = string(n.Metadata)
	}
	result, err := q.ExecContext(ctx,
		`INSERT INTO mailbox_notifications (user_id, title, message, type, priority, category, requires_action, action_url, action_text, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Title, n.Message, n.Type, priority, n.Category,
		boolInt(n.RequiresAction), n.ActionURL, n.ActionText, metadata,
	)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return result.LastInsertId()
}

func (s *NotificationStore) Create(ctx context.Context, n NewNotification) (*model.Notification, error) {
	id, err := insertNotification(ctx, s.db, n)
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Broadcast creates one copy of n for every profile and returns the created
// rows. n.UserID is ignored.
func (s *NotificationStore) Broadcast(ctx context.Context, n NewNotification) ([]model.Notification, error) {
	var ids []int64
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id FROM profiles ORDER BY id`)
		if err != nil {
			return fmt.Errorf("list profiles: %w", err)
		}
		var users []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan profile id: %w", err)
			}
			users = append(users, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, userID := range users {
			n.UserID = userID
			id, err := insertNotification(ctx, tx, n)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Notification, 0, len(ids))
	for _, id := range ids {
		n, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if n != nil {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *NotificationStore) GetByID(ctx context.Context, id int64) (*model.Notification, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+notificationCols+` FROM mailbox_notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// ListActive returns the user's notifications that are not archived, newest
// first.
func (s *NotificationStore) ListActive(ctx context.Context, userID string) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+notificationCols+` FROM mailbox_notifications
		 WHERE user_id = ? AND status != 'archived'
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (s *NotificationStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mailbox_notifications WHERE user_id = ? AND status = 'active'`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// MarkRead moves an active notification to read. Read and archived
// notifications are left alone; the returned bool reports whether a row
// changed.
func (s *NotificationStore) MarkRead(ctx context.Context, userID string, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE mailbox_notifications
		 SET status = 'read', read_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ? AND status = 'active'`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, userID string) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE mailbox_notifications
		 SET status = 'read', read_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND status = 'active'`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// Archive moves an active or read notification to archived, stamping read_at
// if it was never read.
func (s *NotificationStore) Archive(ctx context.Context, userID string, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE mailbox_notifications
		 SET status = 'archived', read_at = COALESCE(read_at, CURRENT_TIMESTAMP),
		     archived_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ? AND status != 'archived'`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("archive notification: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Latest returns the most recent notification for userID, or across all
// users when userID is empty.
func (s *NotificationStore) Latest(ctx context.Context, userID string) (*model.Notification, error) {
	query := `SELECT ` + notificationCols + ` FROM mailbox_notifications`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY id DESC LIMIT 1`

	n, err := scanNotification(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest notification: %w", err)
	}
	return n, nil
}
