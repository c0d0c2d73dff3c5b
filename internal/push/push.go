package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/dukerupert/giftpool/internal/metrics"
	"github.com/dukerupert/giftpool/internal/model"
	"github.com/dukerupert/giftpool/internal/store"
)

// ErrExpired is returned when a push subscription is no longer valid (410 Gone).
var ErrExpired = errors.New("push subscription expired")

const defaultSubscriber = "noreply@giftpool.app"

// Payload is the JSON sent to the push service.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Service handles sending web push notifications.
type Service struct {
	publicKey  string
	privateKey string
	subscriber string
	subs       *store.PushStore
	httpClient webpush.HTTPClient
	logger     *slog.Logger
}

// NewService creates a push service with VAPID keys. subscriber is the
// contact address sent to push services.
func NewService(publicKey, privateKey, subscriber string, subs *store.PushStore, logger *slog.Logger) *Service {
	if subscriber == "" {
		subscriber = defaultSubscriber
	}
	return &Service{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		subs:       subs,
		logger:     logger,
	}
}

// Configured reports whether VAPID keys are present.
func (s *Service) Configured() bool {
	return s != nil && s.publicKey != "" && s.privateKey != ""
}

// VAPIDPublicKey returns the VAPID public key for client-side subscription.
func (s *Service) VAPIDPublicKey() string {
	return s.publicKey
}

// Send sends a push notification to a subscription.
func (s *Service) Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		HTTPClient:      s.httpClient,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      s.subscriber,
		TTL:             86400,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		return ErrExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}

	return nil
}

// NotifyUser sends payload to every device the user registered. Expired
// subscriptions are removed; other failures are logged and skipped.
func (s *Service) NotifyUser(ctx context.Context, userID string, payload Payload) {
	if !s.Configured() || s.subs == nil {
		return
	}

	subs, err := s.subs.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Warn("list push subscriptions", "user_id", userID, "error", err)
		return
	}

	for _, sub := range subs {
		err := s.Send(ctx, &sub, payload)
		switch {
		case err == nil:
			metrics.IncrementPushDelivery("sent")
		case errors.Is(err, ErrExpired):
			metrics.IncrementPushDelivery("expired")
			if err := s.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
				s.logger.Warn("delete expired push subscription", "endpoint", sub.Endpoint, "error", err)
			}
		default:
			metrics.IncrementPushDelivery("failed")
			s.logger.Warn("send push", "user_id", userID, "subscription_id", sub.ID, "error", err)
		}
	}
}

// GenerateVAPIDKeys generates a new ECDSA P-256 key pair for VAPID.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDSA key: %w", err)
	}

	pubBytes := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	publicKey = base64.RawURLEncoding.EncodeToString(pubBytes)
	privateKey = base64.RawURLEncoding.EncodeToString(key.D.FillBytes(make([]byte, 32)))

	return publicKey, privateKey, nil
}
