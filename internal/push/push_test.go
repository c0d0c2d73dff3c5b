package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/giftpool/internal/model"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	// Public key should be base64url-encoded, 65 bytes uncompressed P-256 point
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	// Private key should be base64url-encoded, 32 bytes P-256 scalar
	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

// testSubscription returns a subscription with real browser-side keys
// pointing at endpoint.
func testSubscription(t *testing.T, endpoint string) *model.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		t.Fatalf("generate auth secret: %v", err)
	}
	return &model.PushSubscription{
		UserID:    "user-1",
		Endpoint:  endpoint,
		P256dhKey: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		AuthKey:   base64.RawURLEncoding.EncodeToString(auth),
	}
}

func testService(t *testing.T) *Service {
	t.Helper()
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}
	return NewService(pub, priv, "", nil, slog.Default())
}

func TestSendStatuses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
		fail    bool
	}{
		{"created", http.StatusCreated, nil, false},
		{"gone", http.StatusGone, ErrExpired, true},
		{"server error", http.StatusInternalServerError, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAuth string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			svc := testService(t)
			err := svc.Send(context.Background(), testSubscription(t, server.URL), Payload{Title: "Hi", Body: "There"})
			if tt.fail != (err != nil) {
				t.Fatalf("Send error = %v, want failure %v", err, tt.fail)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Send error = %v, want %v", err, tt.wantErr)
			}
			if !strings.HasPrefix(gotAuth, "vapid ") {
				t.Errorf("authorization = %q, want vapid scheme", gotAuth)
			}
		})
	}
}

func TestConfigured(t *testing.T) {
	if NewService("", "", "", nil, slog.Default()).Configured() {
		t.Error("service without keys should not be configured")
	}
	if !testService(t).Configured() {
		t.Error("service with keys should be configured")
	}
	var nilSvc *Service
	if nilSvc.Configured() {
		t.Error("nil service should not be configured")
	}
}

func TestReminderMessage(t *testing.T) {
	tests := []struct {
		days int
		want string
	}{
		{0, "Espresso is today. Your share is 30.00 USD."},
		{1, "Espresso is tomorrow. Your share is 30.00 USD."},
		{3, "Espresso is in 3 days. Your share is 30.00 USD."},
	}
	for _, tt := range tests {
		if got := reminderMessage("Espresso", tt.days, 30, "USD"); got != tt.want {
			t.Errorf("reminderMessage(%d) = %q, want %q", tt.days, got, tt.want)
		}
	}
}
