// Package auth turns bearer credentials into principals.
//
// Three credential formats are accepted on the same Authorization header:
//
//   - Google OAuth access tokens, issued by the Google login flow and stored
//     on the user row
//   - session JWTs, issued by TokenService on email/password login (or by
//     Supabase when it is configured as the session authority)
//   - raw user UUIDs, kept for legacy internal callers
//
// There is no tag on the token saying which format it is, so Resolver
// tries them in a fixed order. See resolver.go.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/velric/velric-server/internal/model"
)

// sessionAudience is both the audience and role Supabase stamps on
// end-user sessions; tokens we mint carry the same so either authority's
// tokens look alike to clients.
const sessionAudience = "authenticated"

// SessionUser is what a verified session token says about its holder.
type SessionUser struct {
	ID          string
	Email       string
	Name        string
	AvatarURL   string
	IsRecruiter bool
	CreatedAt   time.Time
}

// TokenService issues and verifies HS256 session JWTs.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenService creates a TokenService. The secret should be at least 32
// bytes of random data in production: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret, issuer string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if issuer == "" {
		return nil, errors.New("auth: JWT issuer is required")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: session TTL must be positive")
	}
	return &TokenService{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

type userMetadata struct {
	Name        string `json:"name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	IsRecruiter bool   `json:"is_recruiter"`
}

// sessionClaims mirrors the payload of a Supabase access token.
type sessionClaims struct {
	Email        string       `json:"email"`
	Role         string       `json:"role"`
	UserMetadata userMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

// Issue signs a session token for user valid for the configured TTL.
func (s *TokenService) Issue(user *model.User) (string, error) {
	return s.IssueWithDuration(user, s.ttl)
}

// IssueWithDuration signs a session token with a custom lifetime. Tests use
// a negative duration to mint expired tokens.
func (s *TokenService) IssueWithDuration(user *model.User, d time.Duration) (string, error) {
	now := time.Now()

	meta := userMetadata{IsRecruiter: user.IsRecruiter}
	if user.Name != nil {
		meta.Name = *user.Name
	}
	if user.ProfileImage != nil {
		meta.AvatarURL = *user.ProfileImage
	}

	c := sessionClaims{
		Email:        user.Email,
		Role:         sessionAudience,
		UserMetadata: meta,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{sessionAudience},
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// VerifySession checks signature, algorithm, issuer, audience and expiry.
// The context is unused; it is there so TokenService and SupabaseVerifier
// satisfy the same interface.
func (s *TokenService) VerifySession(_ context.Context, tokenStr string) (*SessionUser, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&sessionClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(sessionAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.New("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, errors.New("auth: token has no subject")
	}

	su := &SessionUser{
		ID:          c.Subject,
		Email:       c.Email,
		Name:        c.UserMetadata.Name,
		AvatarURL:   c.UserMetadata.AvatarURL,
		IsRecruiter: c.UserMetadata.IsRecruiter,
	}
	if c.IssuedAt != nil {
		su.CreatedAt = c.IssuedAt.Time.UTC()
	}
	return su, nil
}
