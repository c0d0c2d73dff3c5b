package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/giftpool/internal/auth"
	"github.com/dukerupert/giftpool/internal/store"
)

// RequireAuth verifies the bearer token, records the caller's profile and
// populates the Session. Browsers cannot set headers on websocket upgrades,
// so an access_token query parameter is accepted as well.
func RequireAuth(verifier *auth.Verifier, profiles *store.ProfileStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				token = r.URL.Query().Get("access_token")
			}
			if token == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			sess, err := verifier.Verify(token)
			if err != nil {
				unauthorized(w, "session expired, please sign in again")
				return
			}
			if sess.Email == "" {
				unauthorized(w, "token has no email")
				return
			}

			if _, err := profiles.Upsert(r.Context(), sess.UserID, sess.Email, sess.DisplayName); err != nil {
				logger.Error("upsert profile", "user_id", sess.UserID, "error", err)
				writeError(w, http.StatusServiceUnavailable, "db_not_initialized", "profile store unavailable")
				return
			}

			ctx := auth.WithSession(r.Context(), sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks that the authenticated user has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "access_denied", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("X-Reauth", "1")
	writeError(w, http.StatusUnauthorized, "missing_user", msg)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
