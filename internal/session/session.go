// Package session owns the authenticated user session: the access token, the
// user profile and job counters, and the persisted copy of the token.
package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/suqaba/suqaba-cli/internal/models"
)

// Session is an authenticated user. A nil *Session means "not logged in".
//
// Sessions are immutable once published by the Manager; a refresh publishes
// a new value rather than editing the old one.
type Session struct {
	UserID      string
	DisplayName string
	Email       string
	Token       string
	JobCounts   models.JobCounts

	epoch uint64
}

// BearerToken implements api.Credential. It is safe to call on a nil session.
func (s *Session) BearerToken() string {
	if s == nil {
		return ""
	}
	return s.Token
}

// Epoch identifies the credential generation this session belongs to.
func (s *Session) Epoch() uint64 {
	if s == nil {
		return 0
	}
	return s.epoch
}

func newSession(token string, user *models.User, epoch uint64) *Session {
	return &Session{
		UserID:      user.ID,
		DisplayName: user.Name,
		Email:       user.Email,
		Token:       token,
		JobCounts:   user.JobCounts,
		epoch:       epoch,
	}
}

// withProfile returns a copy of s carrying user's profile and counters.
func (s *Session) withProfile(user *models.User) *Session {
	next := *s
	next.UserID = user.ID
	next.DisplayName = user.Name
	next.Email = user.Email
	next.JobCounts = user.JobCounts
	return &next
}

// tokenExpired reports whether token is a JWT whose exp claim is not after now.
// The signature is not checked. Opaque or unparseable tokens are left for the
// server to judge.
func tokenExpired(token string, now time.Time) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.Time.After(now)
}
