package auth

import (
	"context"
	"testing"
)

func TestWithSessionAndFromContext(t *testing.T) {
	s := Session{
		UserID: "user-1",
		Email:  "one@example.com",
		Role:   RoleAdmin,
	}

	ctx := WithSession(context.Background(), s)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected Session in context")
	}
	if got.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", got.UserID)
	}
	if got.Email != "one@example.com" {
		t.Errorf("Email = %q, want one@example.com", got.Email)
	}
	if !got.IsAdmin() {
		t.Error("expected admin session")
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing Session")
	}
}

func TestUserID(t *testing.T) {
	ctx := WithSession(context.Background(), Session{UserID: "u7"})
	if UserID(ctx) != "u7" {
		t.Errorf("UserID = %q, want u7", UserID(ctx))
	}
	if UserID(context.Background()) != "" {
		t.Error("expected empty user for missing context")
	}
}

func TestIsAdmin(t *testing.T) {
	if !IsAdmin(WithSession(context.Background(), Session{Role: RoleAdmin})) {
		t.Error("expected IsAdmin = true for admin role")
	}
	if IsAdmin(WithSession(context.Background(), Session{Role: "member"})) {
		t.Error("expected IsAdmin = false for member role")
	}
	if IsAdmin(context.Background()) {
		t.Error("expected IsAdmin = false for missing context")
	}
}

func TestSessionValid(t *testing.T) {
	if (Session{UserID: "u1"}).Valid() {
		t.Error("session without email should be invalid")
	}
	if !(Session{UserID: "u1", Email: "a@x.com"}).Valid() {
		t.Error("expected valid session")
	}
}
