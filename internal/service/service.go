// Package service holds the operations behind the HTTP API. Every call
// takes the caller's Session explicitly and runs its data access through the
// shared retry policy.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/giftpool/internal/apperr"
	"github.com/dukerupert/giftpool/internal/auth"
	"github.com/dukerupert/giftpool/internal/retry"
)

// Palette is the fixed set of pastel colours assigned to new categories and
// groups.
var Palette = []string{
	"#FFD1DC", // pink
	"#FFE5B4", // peach
	"#FFFACD", // lemon
	"#C1E1C1", // mint
	"#B5EAD7", // seafoam
	"#AEC6CF", // blue
	"#CBC3E3", // lavender
	"#E0BBE4", // lilac
	"#FDFD96", // yellow
	"#F8C8DC", // rose
}

func randomColor() string {
	return Palette[rand.IntN(len(Palette))]
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validateInput checks v's validate tags and turns the first failure into a
// validation error.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Wrap(apperr.CodeValidation, "invalid input", err)
	}
	return apperr.Validation(fieldMessage(verrs[0]))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "gt":
		return field + " must be greater than " + fe.Param()
	case "gte":
		return field + " must be at least " + fe.Param()
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	}
	return field + " is invalid"
}

// Base is embedded by every service: the database handle for the
// initialised check and the retry policy.
type Base struct {
	db    *sql.DB
	retry *retry.Policy
}

func NewBase(db *sql.DB, policy *retry.Policy) Base {
	if policy == nil {
		policy = retry.Default()
	}
	return Base{db: db, retry: policy}
}

// ready rejects calls with no user or no store.
func (b Base) ready(sess auth.Session) error {
	if b.db == nil {
		return apperr.ErrDBNotInitialized
	}
	if !sess.Valid() {
		return apperr.ErrMissingUser
	}
	return nil
}

// call runs fn under the retry policy and converts its error to the
// service error envelope.
func call[T any](ctx context.Context, b Base, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := retry.Value(ctx, b.retry, op, fn)
	if err != nil {
		var zero T
		return zero, apperr.From(err)
	}
	return v, nil
}

func exec(ctx context.Context, b Base, op string, fn func(ctx context.Context) error) error {
	if err := b.retry.Do(ctx, op, fn); err != nil {
		return apperr.From(err)
	}
	return nil
}

// subscriptionName scopes a realtime subscription name to the caller so one
// user can never replace another user's stream.
func subscriptionName(sess auth.Session, name, topic string) string {
	if name == "" {
		return sess.UserID + "/" + topic
	}
	return sess.UserID + "/" + name + "/" + topic
}

// normalizeEmails lowercases and trims emails, drops blanks and exclude,
// and removes duplicates while keeping the first occurrence's order.
func normalizeEmails(emails []string, exclude string) []string {
	exclude = strings.ToLower(strings.TrimSpace(exclude))
	seen := make(map[string]bool, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || e == exclude || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
