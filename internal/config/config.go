// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string
	BaseURL   string

	JWTSecret   string
	JWTAudience string

	PostmarkToken string
	FromEmail     string

	VAPIDPublicKey  string
	VAPIDPrivateKey string

	ReminderDays    int
	ThumbnailLookup bool

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment take precedence over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Port:            getenv("GIFTPOOL_PORT", "8080"),
		DBPath:          getenv("GIFTPOOL_DB_PATH", "giftpool.db"),
		LogLevel:        getenv("GIFTPOOL_LOG_LEVEL", "info"),
		LogFormat:       getenv("GIFTPOOL_LOG_FORMAT", "text"),
		BaseURL:         strings.TrimRight(getenv("GIFTPOOL_BASE_URL", "http://localhost:8080"), "/"),
		JWTSecret:       os.Getenv("GIFTPOOL_JWT_SECRET"),
		JWTAudience:     os.Getenv("GIFTPOOL_JWT_AUDIENCE"),
		PostmarkToken:   os.Getenv("GIFTPOOL_POSTMARK_TOKEN"),
		FromEmail:       getenv("GIFTPOOL_FROM_EMAIL", "noreply@giftpool.app"),
		VAPIDPublicKey:  os.Getenv("GIFTPOOL_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("GIFTPOOL_VAPID_PRIVATE_KEY"),
	}

	var err error
	if cfg.ReminderDays, err = intEnv("GIFTPOOL_REMINDER_DAYS", 3); err != nil {
		return nil, err
	}
	if cfg.RetryMaxAttempts, err = intEnv("GIFTPOOL_RETRY_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.ThumbnailLookup, err = boolEnv("GIFTPOOL_THUMBNAIL_LOOKUP", false); err != nil {
		return nil, err
	}
	if cfg.RetryBaseDelay, err = durationEnv("GIFTPOOL_RETRY_BASE_DELAY", 100*time.Millisecond); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports configuration the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("GIFTPOOL_JWT_SECRET is required"))
	}
	if c.RetryMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("GIFTPOOL_RETRY_MAX_ATTEMPTS must be positive, got %d", c.RetryMaxAttempts))
	}
	if c.RetryBaseDelay <= 0 {
		errs = append(errs, fmt.Errorf("GIFTPOOL_RETRY_BASE_DELAY must be positive, got %s", c.RetryBaseDelay))
	}
	if c.ReminderDays < 0 {
		errs = append(errs, fmt.Errorf("GIFTPOOL_REMINDER_DAYS must not be negative, got %d", c.ReminderDays))
	}
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		errs = append(errs, errors.New("GIFTPOOL_VAPID_PUBLIC_KEY and GIFTPOOL_VAPID_PRIVATE_KEY must be set together"))
	}
	return errors.Join(errs...)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
