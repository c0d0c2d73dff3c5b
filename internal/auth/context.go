package auth

import "context"

type contextKey struct{}

const RoleAdmin = "admin"

// Session identifies the caller of a service operation. It is passed
// explicitly to services; the context only carries it from middleware to
// handlers.
type Session struct {
	UserID      string
	Email       string
	DisplayName string
	Role        string
}

// Valid reports whether the session names a user with a known email.
func (s Session) Valid() bool {
	return s.UserID != "" && s.Email != ""
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

func UserID(ctx context.Context) string {
	s, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return s.UserID
}

func IsAdmin(ctx context.Context) bool {
	s, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return s.IsAdmin()
}
