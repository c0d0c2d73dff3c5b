package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/giftpool/internal/auth"
	"github.com/dukerupert/giftpool/internal/config"
	"github.com/dukerupert/giftpool/internal/database"
	"github.com/dukerupert/giftpool/internal/email"
	"github.com/dukerupert/giftpool/internal/handler"
	"github.com/dukerupert/giftpool/internal/middleware"
	"github.com/dukerupert/giftpool/internal/push"
	"github.com/dukerupert/giftpool/internal/realtime"
	"github.com/dukerupert/giftpool/internal/retry"
	"github.com/dukerupert/giftpool/internal/service"
	"github.com/dukerupert/giftpool/internal/store"
	"github.com/dukerupert/giftpool/internal/thumbnail"
)

type Server struct {
	db            *sql.DB
	retry         *retry.Policy
	verifier      *auth.Verifier
	categoryH     *handler.CategoryHandler
	giftH         *handler.GiftHandler
	groupH        *handler.GroupHandler
	notificationH *handler.NotificationHandler
	pushH         *handler.PushHandler
	referenceH    *handler.ReferenceHandler
	groups        *service.GroupService
	notifications *service.NotificationService
	participants  *service.ParticipantService
	profileStore  *store.ProfileStore
	reminderStore *store.ReminderStore
	rateLimiter   *middleware.RateLimiter
	pushScheduler *push.Scheduler
	logger        *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	policy := retry.New(cfg.RetryMaxAttempts, cfg.RetryBaseDelay)
	base := service.NewBase(db, policy)
	broker := realtime.NewBroker(logger.With("component", "realtime"))

	profileStore := store.NewProfileStore(db)
	groupStore := store.NewGroupStore(db)
	participantStore := store.NewParticipantStore(db)
	reminderStore := store.NewReminderStore(db)
	referenceStore := store.NewReferenceStore(db)
	subscriptionStore := store.NewSubscriptionStore(db)
	pushStore := store.NewPushStore(db)

	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.FromEmail, pushStore, logger.With("component", "push"))
	emailClient := email.NewClient(cfg.PostmarkToken, cfg.FromEmail, cfg.BaseURL)

	notifications := service.NewNotificationService(base, store.NewNotificationStore(db), profileStore, broker, pushSvc, logger.With("component", "notifications"))
	categories := service.NewCategoryService(base, store.NewCategoryStore(db))
	gifts := service.NewGiftService(base, store.NewGiftStore(db), categories, thumbnail.NewResolver(cfg.ThumbnailLookup))
	groups := service.NewGroupService(base, service.GroupServiceConfig{
		Groups:        groupStore,
		Participants:  participantStore,
		Profiles:      profileStore,
		Subscriptions: subscriptionStore,
		Reference:     referenceStore,
		Notifier:      notifications,
		Mailer:        emailClient,
		Broker:        broker,
		Logger:        logger.With("component", "groups"),
	})
	participants := service.NewParticipantService(base, groups, participantStore, notifications, broker, logger.With("component", "participants"))

	var pushSched *push.Scheduler
	if cfg.ReminderDays > 0 {
		pushSched = push.NewScheduler(groupStore, participantStore, reminderStore, notifications, cfg.ReminderDays, logger.With("component", "reminders"))
	}

	return &Server{
		db:            db,
		retry:         policy,
		verifier:      auth.NewVerifier(cfg.JWTSecret, cfg.JWTAudience),
		categoryH:     handler.NewCategoryHandler(categories, gifts, logger.With("component", "category")),
		giftH:         handler.NewGiftHandler(gifts, logger.With("component", "gift")),
		groupH:        handler.NewGroupHandler(groups, participants, logger.With("component", "group")),
		notificationH: handler.NewNotificationHandler(notifications, groups, logger.With("component", "notification")),
		pushH:         handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler")),
		referenceH:    handler.NewReferenceHandler(referenceStore, subscriptionStore, logger.With("component", "reference")),
		groups:        groups,
		notifications: notifications,
		participants:  participants,
		profileStore:  profileStore,
		reminderStore: reminderStore,
		rateLimiter:   middleware.NewRateLimiter(),
		pushScheduler: pushSched,
		logger:        logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// ReminderStore returns the reminder store for cleanup tasks.
func (s *Server) ReminderStore() *store.ReminderStore {
	return s.reminderStore
}

// PushScheduler returns the contribution reminder scheduler, or nil when
// reminders are disabled.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

// Notifications returns the notification service so shutdown can wait for
// pending push deliveries.
func (s *Server) Notifications() *service.NotificationService {
	return s.notifications
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", promhttp.Handler())
	outerMux.HandleFunc("GET /api/shared/groups/{token}", s.rateLimitedHandler(s.groupH.Shared, middleware.ByIP, 30))

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.verifier, s.profileStore, s.logger.With("component", "auth"))
	outerMux.Handle("/", authMiddleware(protectedMux))

	// Apply request logging middleware
	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := database.Check(r.Context(), s.db, s.retry); err != nil {
		s.logger.Warn("health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc, keyFunc func(*http.Request) string, limit int) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, limit, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func adminOnly(h http.HandlerFunc) http.Handler {
	return middleware.RequireAdmin(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Categories and gifts
	mux.HandleFunc("GET /api/categories", s.categoryH.List)
	mux.HandleFunc("POST /api/categories", s.categoryH.Create)
	mux.HandleFunc("DELETE /api/categories/{id}", s.categoryH.Delete)
	mux.HandleFunc("GET /api/categories/{id}/gifts", s.categoryH.ListGifts)
	mux.HandleFunc("POST /api/categories/{id}/gifts", s.categoryH.CreateGift)
	mux.HandleFunc("PUT /api/gifts/{id}", s.giftH.Update)
	mux.HandleFunc("POST /api/gifts/{id}/purchased", s.giftH.SetPurchased)
	mux.HandleFunc("DELETE /api/gifts/{id}", s.giftH.Delete)

	// Group gifts
	mux.HandleFunc("GET /api/groups", s.groupH.List)
	mux.HandleFunc("POST /api/groups", s.rateLimitedHandler(s.groupH.Create, middleware.ByUser, 20))
	mux.HandleFunc("GET /api/groups/{id}", s.groupH.Get)
	mux.HandleFunc("PUT /api/groups/{id}", s.groupH.Update)
	mux.HandleFunc("DELETE /api/groups/{id}", s.groupH.Delete)
	mux.HandleFunc("POST /api/groups/{id}/copy", s.groupH.Copy)
	mux.HandleFunc("GET /api/groups/{id}/participants", s.groupH.Participants)
	mux.HandleFunc("PUT /api/groups/{id}/participants/status", s.groupH.UpdateStatus)
	mux.HandleFunc("POST /api/groups/{id}/contributions", s.groupH.Contributions)

	// Notifications
	mux.HandleFunc("GET /api/notifications", s.notificationH.List)
	mux.HandleFunc("GET /api/notifications/unread-count", s.notificationH.UnreadCount)
	mux.HandleFunc("POST /api/notifications/read-all", s.notificationH.MarkAllRead)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.notificationH.MarkRead)
	mux.HandleFunc("POST /api/notifications/{id}/archive", s.notificationH.Archive)
	mux.HandleFunc("POST /api/notifications/{id}/accept", s.notificationH.Accept)

	// Admin notification routes
	mux.Handle("POST /api/admin/notifications/broadcast", adminOnly(s.rateLimitedHandler(s.notificationH.Broadcast, middleware.ByUser, 5)))
	mux.Handle("POST /api/admin/notifications/user", adminOnly(s.notificationH.SendToUser))
	mux.Handle("GET /api/admin/notifications/latest", adminOnly(s.notificationH.Latest))

	// Reference data
	mux.HandleFunc("GET /api/currencies", s.referenceH.Currencies)
	mux.HandleFunc("GET /api/countries", s.referenceH.Countries)
	mux.HandleFunc("GET /api/predefined-categories", s.referenceH.PredefinedCategories)
	mux.HandleFunc("GET /api/subscription/limits", s.referenceH.Limits)

	// Push notification API routes
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)

	// WebSocket
	mux.HandleFunc("GET /ws", realtime.HandleWebSocket(s.openSubscriptions, s.logger.With("component", "websocket")))
}

// openSubscriptions streams the caller's notifications plus the participant
// feeds of any groups listed in ?groups=1,2 that they can view. ?name= names
// the stream; a newer connection by the same user with the same name
// replaces this one.
func (s *Server) openSubscriptions(ctx context.Context, r *http.Request) ([]*realtime.Subscription, error) {
	sess, ok := auth.FromContext(r.Context())
	if !ok || !sess.Valid() {
		return nil, errors.New("not authenticated")
	}
	ids, err := s.visibleGroupIDs(ctx, sess, r.URL.Query().Get("groups"))
	if err != nil {
		return nil, err
	}

	name := r.URL.Query().Get("name")
	sub, err := s.notifications.Subscribe(ctx, sess, name)
	if err != nil {
		return nil, err
	}
	subs := []*realtime.Subscription{sub}
	for _, id := range ids {
		sub, err := s.participants.SubscribeToParticipants(ctx, sess, id, name)
		if err != nil {
			return nil, fmt.Errorf("subscribe to group %d: %w", id, err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// visibleGroupIDs parses a comma separated id list and checks the caller
// can view every group in it.
func (s *Server) visibleGroupIDs(ctx context.Context, sess auth.Session, raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid group id %q", part)
		}
		g, err := s.groups.GetGroupByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load group %d: %w", id, err)
		}
		if g == nil {
			return nil, fmt.Errorf("group %d not found", id)
		}
		visible, err := s.groups.CanView(ctx, sess, g)
		if err != nil {
			return nil, fmt.Errorf("check group %d access: %w", id, err)
		}
		if !visible {
			return nil, fmt.Errorf("group %d not accessible", id)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
