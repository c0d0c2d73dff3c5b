package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/giftpool/internal/apperr"
	"github.com/dukerupert/giftpool/internal/auth"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps an error code to its HTTP status.
func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeMissingUser:
		return http.StatusUnauthorized
	case apperr.CodeAccessDenied:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeLimitExceeded:
		return http.StatusPaymentRequired
	case apperr.CodeTransient, apperr.CodeDBNotInitialized:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError writes err as {"error", "code"}. Server-side failures are
// logged; a missing user also gets the X-Reauth header.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	ae := apperr.From(err)
	status := statusFor(ae.Code)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", ae.Code, "error", err)
	}
	if ae.Code == apperr.CodeMissingUser {
		w.Header().Set("X-Reauth", "1")
	}
	writeJSON(w, status, map[string]string{"error": ae.Message, "code": string(ae.Code)})
}

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into v. An empty body leaves v unchanged.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.Validation("invalid JSON")
}

func parseIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id")
	}
	return id, nil
}

func session(r *http.Request) auth.Session {
	sess, _ := auth.FromContext(r.Context())
	return sess
}
