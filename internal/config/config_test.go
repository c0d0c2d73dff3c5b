package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configKeys = []string{
	"GIFTPOOL_PORT", "GIFTPOOL_DB_PATH", "GIFTPOOL_LOG_LEVEL", "GIFTPOOL_LOG_FORMAT",
	"GIFTPOOL_BASE_URL", "GIFTPOOL_JWT_SECRET", "GIFTPOOL_JWT_AUDIENCE", "GIFTPOOL_POSTMARK_TOKEN",
	"GIFTPOOL_FROM_EMAIL", "GIFTPOOL_VAPID_PUBLIC_KEY", "GIFTPOOL_VAPID_PRIVATE_KEY",
	"GIFTPOOL_REMINDER_DAYS", "GIFTPOOL_THUMBNAIL_LOOKUP", "GIFTPOOL_RETRY_MAX_ATTEMPTS",
	"GIFTPOOL_RETRY_BASE_DELAY",
}

// clearEnv unsets every config variable for the test and restores them
// afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func missingFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(missingFile(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DBPath != "giftpool.db" || cfg.LogLevel != "info" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.ReminderDays != 3 || cfg.RetryMaxAttempts != 3 || cfg.RetryBaseDelay != 100*time.Millisecond {
		t.Errorf("numeric defaults = %+v", cfg)
	}
	if cfg.ThumbnailLookup {
		t.Error("thumbnail lookup should default off")
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "GIFTPOOL_JWT_SECRET") {
		t.Errorf("Validate = %v, want missing secret error", err)
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	content := "GIFTPOOL_JWT_SECRET=from-file\nGIFTPOOL_PORT=9000\nGIFTPOOL_BASE_URL=https://gifts.example.com/\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("GIFTPOOL_PORT", "9100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWTSecret != "from-file" {
		t.Errorf("JWTSecret = %q, want from-file", cfg.JWTSecret)
	}
	if cfg.Port != "9100" {
		t.Errorf("Port = %q, environment should win over file", cfg.Port)
	}
	if cfg.BaseURL != "https://gifts.example.com" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.BaseURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := map[string]string{
		"GIFTPOOL_REMINDER_DAYS":      "soon",
		"GIFTPOOL_RETRY_MAX_ATTEMPTS": "many",
		"GIFTPOOL_THUMBNAIL_LOOKUP":   "maybe",
		"GIFTPOOL_RETRY_BASE_DELAY":   "fast",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)
			if _, err := Load(missingFile(t)); err == nil || !strings.Contains(err.Error(), key) {
				t.Errorf("Load error = %v, want error naming %s", err, key)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	base := Config{JWTSecret: "s", RetryMaxAttempts: 3, RetryBaseDelay: time.Millisecond, ReminderDays: 3}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config: %v", err)
	}

	bad := base
	bad.RetryMaxAttempts = 0
	bad.VAPIDPublicKey = "only-public"
	err := bad.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"GIFTPOOL_RETRY_MAX_ATTEMPTS", "VAPID"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %s", err, want)
		}
	}
}
