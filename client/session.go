package client

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/queryloom/queryloom/models"
)

// Session is the locally decoded identity behind an access token. The
// client does not hold the signing key, so claims are read without
// signature verification; the server re-validates on every request.
type Session struct {
	Token     string
	Email     string
	UserID    uint
	TenantID  string
	Role      string
	Status    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type sessionClaims struct {
	UserID   uint   `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	Status   string `json:"status"`
	jwt.RegisteredClaims
}

// NewSession decodes an access token into a Session
func NewSession(token string) (*Session, error) {
	var claims sessionClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	s := &Session{
		Token:    token,
		UserID:   claims.UserID,
		TenantID: claims.TenantID,
		Role:     claims.Role,
		Status:   claims.Status,
	}
	if claims.Subject != "" {
		s.Email = claims.Subject
	}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// IsExpired reports whether the token's expiry has passed
func (s *Session) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// IsAdmin reports whether the session carries the admin role
func (s *Session) IsAdmin() bool {
	return s.Role == models.UserRoleAdmin
}

// CanSubmitQueries reports whether the session's role may submit
// questions. Viewers are read-only.
func (s *Session) CanSubmitQueries() bool {
	return s.Role == models.UserRoleAdmin || s.Role == models.UserRoleUser
}
