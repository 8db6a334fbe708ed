// Package panel holds the request-scoped session and the failure taxonomy
// shared by the directory and audit log adapters.
package panel

import (
	"context"
)

// DefaultPageSize is used when a session carries no page size.
const DefaultPageSize = 50

// Session describes the authenticated administrator for one request.
type Session struct {
	Username    string // admin email
	GlobalAdmin bool
	Lang        string
	PageSize    int
}

// IsSelf reports whether email names the session's own account.
func (s *Session) IsSelf(email string) bool {
	return s != nil && s.Username != "" && s.Username == email
}

// CanManage reports whether the session may modify the account of email.
func (s *Session) CanManage(email string) bool {
	if s == nil {
		return false
	}
	return s.GlobalAdmin || s.IsSelf(email)
}

// Limit returns the page size, falling back to DefaultPageSize.
func (s *Session) Limit() int {
	if s == nil || s.PageSize <= 0 {
		return DefaultPageSize
	}
	return s.PageSize
}

// RequireGlobalAdmin fails with PERMISSION_DENIED unless the session is a
// global admin.
func RequireGlobalAdmin(s *Session) error {
	if s == nil || !s.GlobalAdmin {
		return NewError(KindPermissionDenied, "global admin required")
	}
	return nil
}

type sessionKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored in ctx, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}
