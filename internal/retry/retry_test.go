package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/giftpool/internal/apperr"
)

func TestDoRetriesTransientUpToMax(t *testing.T) {
	p := New(3, time.Millisecond)
	calls := 0
	err := p.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return errors.New("database is locked")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if err.Error() != "database is locked" {
		t.Errorf("err = %v, want the last underlying error", err)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	p := New(3, time.Millisecond)
	calls := 0
	err := p.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return apperr.Validation("bad input")
	})
	if apperr.CodeOf(err) != apperr.CodeValidation {
		t.Errorf("code = %q, want validation", apperr.CodeOf(err))
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoSucceedsAfterTransient(t *testing.T) {
	p := New(3, time.Millisecond)
	calls := 0
	err := p.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestValue(t *testing.T) {
	p := Default()
	got, err := Value(context.Background(), p, "test", func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
}

func TestNilPolicyRunsOnce(t *testing.T) {
	var p *Policy
	calls := 0
	p.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return errors.New("database is locked")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
