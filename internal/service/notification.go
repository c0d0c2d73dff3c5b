package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/dukerupert/giftpool/internal/apperr"
	"github.com/dukerupert/giftpool/internal/auth"
	"github.com/dukerupert/giftpool/internal/metrics"
	"github.com/dukerupert/giftpool/internal/model"
	"github.com/dukerupert/giftpool/internal/push"
	"github.com/dukerupert/giftpool/internal/realtime"
	"github.com/dukerupert/giftpool/internal/store"
)

const notificationsTable = "mailbox_notifications"

// Pusher delivers a notification to a user's registered devices.
type Pusher interface {
	NotifyUser(ctx context.Context, userID string, payload push.Payload)
}

// NotificationInput is the body of an admin notification.
type NotificationInput struct {
	Title      string `json:"title" validate:"required,max=200"`
	Message    string `json:"message" validate:"required,max=2000"`
	Priority   string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Category   string `json:"category" validate:"max=50"`
	ActionURL  string `json:"action_url" validate:"omitempty,max=2048"`
	ActionText string `json:"action_text" validate:"max=100"`
}

// DirectNotificationInput addresses a notification to one user by ID or
// email.
type DirectNotificationInput struct {
	NotificationInput
	UserID string `json:"user_id"`
	Email  string `json:"email" validate:"omitempty,email"`
}

type NotificationService struct {
	Base
	notifications *store.NotificationStore
	profiles      *store.ProfileStore
	broker        *realtime.Broker
	pusher        Pusher
	logger        *slog.Logger

	pending sync.WaitGroup
}

func NewNotificationService(base Base, notifications *store.NotificationStore, profiles *store.ProfileStore, broker *realtime.Broker, pusher Pusher, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		Base:          base,
		notifications: notifications,
		profiles:      profiles,
		broker:        broker,
		pusher:        pusher,
		logger:        logger,
	}
}

// GetActiveNotifications returns the caller's unarchived notifications,
// newest first. Without a user it returns an empty list.
func (s *NotificationService) GetActiveNotifications(ctx context.Context, sess auth.Session) ([]model.Notification, error) {
	if !sess.Valid() || s.db == nil {
		return []model.Notification{}, nil
	}
	list, err := call(ctx, s.Base, "list_notifications", func(ctx context.Context) ([]model.Notification, error) {
		return s.notifications.ListActive(ctx, sess.UserID)
	})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Notification{}
	}
	return list, nil
}

// GetUnreadCount returns 0 without a user.
func (s *NotificationService) GetUnreadCount(ctx context.Context, sess auth.Session) (int, error) {
	if !sess.Valid() || s.db == nil {
		return 0, nil
	}
	return call(ctx, s.Base, "get_unread_notification_count", func(ctx context.Context) (int, error) {
		return s.notifications.UnreadCount(ctx, sess.UserID)
	})
}

// MarkAsRead reports whether the notification moved from active to read.
func (s *NotificationService) MarkAsRead(ctx context.Context, sess auth.Session, id int64) (bool, error) {
	if !sess.Valid() || s.db == nil {
		return false, nil
	}
	changed, err := call(ctx, s.Base, "mark_notification_read", func(ctx context.Context) (bool, error) {
		return s.notifications.MarkRead(ctx, sess.UserID, id)
	})
	if err != nil || !changed {
		return false, err
	}
	s.publishChanged(ctx, id)
	return true, nil
}

// ArchiveNotification reports whether the notification was archived.
func (s *NotificationService) ArchiveNotification(ctx context.Context, sess auth.Session, id int64) (bool, error) {
	if !sess.Valid() || s.db == nil {
		return false, nil
	}
	changed, err := call(ctx, s.Base, "archive_notification", func(ctx context.Context) (bool, error) {
		return s.notifications.Archive(ctx, sess.UserID, id)
	})
	if err != nil || !changed {
		return false, err
	}
	s.publishChanged(ctx, id)
	return true, nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, sess auth.Session) (int, error) {
	if err := s.ready(sess); err != nil {
		return 0, err
	}
	n, err := call(ctx, s.Base, "mark_all_notifications_read", func(ctx context.Context) (int, error) {
		return s.notifications.MarkAllRead(ctx, sess.UserID)
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.broker.Publish(realtime.NotificationsTopic(sess.UserID), realtime.KindUpdate, notificationsTable,
			map[string]any{"user_id": sess.UserID, "status": model.NotificationRead, "count": n})
	}
	return n, nil
}

// Notify creates a notification, publishes it to the recipient's realtime
// topic and pushes it to their devices in the background.
func (s *NotificationService) Notify(ctx context.Context, n store.NewNotification) (*model.Notification, error) {
	if s.db == nil {
		return nil, apperr.ErrDBNotInitialized
	}
	created, err := call(ctx, s.Base, "create_notification", func(ctx context.Context) (*model.Notification, error) {
		return s.notifications.Create(ctx, n)
	})
	if err != nil {
		metrics.IncrementNotification(n.Type, "failed")
		return nil, err
	}
	metrics.IncrementNotification(n.Type, "created")
	s.delivered(ctx, *created)
	return created, nil
}

// SendToUser lets an admin notify one user.
func (s *NotificationService) SendToUser(ctx context.Context, sess auth.Session, in DirectNotificationInput) (*model.Notification, error) {
	if err := s.ready(sess); err != nil {
		return nil, err
	}
	if !sess.IsAdmin() {
		return nil, apperr.AccessDenied("only admins can send notifications")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	userID := strings.TrimSpace(in.UserID)
	if userID == "" && in.Email != "" {
		p, err := call(ctx, s.Base, "get_profile_by_email", func(ctx context.Context) (*model.Profile, error) {
			return s.profiles.GetByEmail(ctx, in.Email)
		})
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, apperr.NotFound("no user with that email")
		}
		userID = p.ID
	}
	if userID == "" {
		return nil, apperr.Validation("user_id or email is required")
	}

	return s.Notify(ctx, newNotification(userID, model.NotifTypeDirect, in.NotificationInput))
}

// Broadcast lets an admin notify every user.
func (s *NotificationService) Broadcast(ctx context.Context, sess auth.Session, in NotificationInput) ([]model.Notification, error) {
	if err := s.ready(sess); err != nil {
		return nil, err
	}
	if !sess.IsAdmin() {
		return nil, apperr.AccessDenied("only admins can broadcast notifications")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	created, err := call(ctx, s.Base, "send_broadcast_notification", func(ctx context.Context) ([]model.Notification, error) {
		return s.notifications.Broadcast(ctx, newNotification("", model.NotifTypeBroadcast, in))
	})
	if err != nil {
		metrics.IncrementNotification(model.NotifTypeBroadcast, "failed")
		return nil, err
	}
	for _, n := range created {
		metrics.IncrementNotification(n.Type, "created")
		s.delivered(ctx, n)
	}
	if created == nil {
		created = []model.Notification{}
	}
	return created, nil
}

// Latest returns the newest notification for userID, or overall when it is
// empty. Admin only.
func (s *NotificationService) Latest(ctx context.Context, sess auth.Session, userID string) (*model.Notification, error) {
	if err := s.ready(sess); err != nil {
		return nil, err
	}
	if !sess.IsAdmin() {
		return nil, apperr.AccessDenied("only admins can inspect notifications")
	}
	return call(ctx, s.Base, "debug_last_notification", func(ctx context.Context) (*model.Notification, error) {
		return s.notifications.Latest(ctx, userID)
	})
}

// Subscribe opens a stream of changes to the caller's notifications.
// Subscribing again with the same name cancels the earlier stream. Names
// are scoped to the caller.
func (s *NotificationService) Subscribe(ctx context.Context, sess auth.Session, name string) (*realtime.Subscription, error) {
	if !sess.Valid() {
		return nil, apperr.ErrMissingUser
	}
	topic := realtime.NotificationsTopic(sess.UserID)
	return s.broker.Subscribe(ctx, subscriptionName(sess, name, topic), topic), nil
}

// Wait blocks until background push deliveries finish.
func (s *NotificationService) Wait() {
	s.pending.Wait()
}

func (s *NotificationService) delivered(ctx context.Context, n model.Notification) {
	s.broker.Publish(realtime.NotificationsTopic(n.UserID), realtime.KindInsert, notificationsTable, n)
	if s.pusher == nil {
		return
	}
	payload := push.Payload{Title: n.Title, Body: n.Message, URL: n.ActionURL, Tag: n.Type}
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.pusher.NotifyUser(ctx, n.UserID, payload)
	}()
}

func (s *NotificationService) publishChanged(ctx context.Context, id int64) {
	n, err := s.notifications.GetByID(ctx, id)
	if err != nil || n == nil {
		s.logger.Warn("reload notification for realtime", "notification_id", id, "error", err)
		return
	}
	s.broker.Publish(realtime.NotificationsTopic(n.UserID), realtime.KindUpdate, notificationsTable, n)
}

func newNotification(userID, typ string, in NotificationInput) store.NewNotification {
	return store.NewNotification{
		UserID:     userID,
		Title:      strings.TrimSpace(in.Title),
		Message:    strings.TrimSpace(in.Message),
		Type:       typ,
		Priority:   in.Priority,
		Category:   in.Category,
		ActionURL:  in.ActionURL,
		ActionText: in.ActionText,
	}
}
