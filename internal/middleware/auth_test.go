package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/giftpool/internal/auth"
	"github.com/dukerupert/giftpool/internal/database"
	"github.com/dukerupert/giftpool/internal/store"
)

const testSecret = "test-secret"

func setupAuthMiddleware(t *testing.T) (func(http.Handler) http.Handler, *store.ProfileStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	profiles := store.NewProfileStore(db)
	return RequireAuth(auth.NewVerifier(testSecret, ""), profiles, slog.Default()), profiles
}

func signToken(t *testing.T, sub, email, role string, ttl time.Duration) string {
	t.Helper()
	claims := auth.Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestRequireAuthNoToken(t *testing.T) {
	mw, _ := setupAuthMiddleware(t)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/groups", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if rec.Header().Get("X-Reauth") != "1" {
		t.Error("expected X-Reauth header")
	}
	if body := decodeError(t, rec); body["code"] != "missing_user" {
		t.Errorf("code = %q, want missing_user", body["code"])
	}
}

func TestRequireAuthExpiredToken(t *testing.T) {
	mw, _ := setupAuthMiddleware(t)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/groups", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", "a@x.com", "", -time.Minute))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthNoEmail(t *testing.T) {
	mw, _ := setupAuthMiddleware(t)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/groups", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", "", "", time.Hour))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthValidToken(t *testing.T) {
	mw, profiles := setupAuthMiddleware(t)

	var got auth.Session
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/groups", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", "A@X.com", "", time.Hour))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got.UserID != "user-1" || got.Email != "a@x.com" {
		t.Errorf("session = %+v", got)
	}

	p, err := profiles.GetByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p == nil || p.Email != "a@x.com" {
		t.Errorf("profile = %+v, want upserted", p)
	}
}

func TestRequireAuthQueryToken(t *testing.T) {
	mw, _ := setupAuthMiddleware(t)

	reached := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest("GET", "/ws?access_token="+signToken(t, "user-1", "a@x.com", "", time.Hour), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !reached {
		t.Errorf("handler not reached, status = %d", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name string
		role string
		want int
	}{
		{"admin", auth.RoleAdmin, http.StatusOK},
		{"member", "member", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/admin/notifications/broadcast", nil)
			req = req.WithContext(auth.WithSession(req.Context(), auth.Session{UserID: "u", Email: "u@x.com", Role: tt.role}))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest("GET", "/api/groups/9", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "status=404") {
		t.Errorf("log output = %q", out)
	}
}
