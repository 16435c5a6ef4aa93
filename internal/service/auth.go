package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/oauth2"

	"github.com/velric/velric-server/internal/apperror"
	"github.com/velric/velric-server/internal/auth"
	"github.com/velric/velric-server/internal/model"
	"github.com/velric/velric-server/internal/repository"
)

// invalidCredentials is deliberately the same for unknown email and wrong
// password.
const invalidCredentials = "invalid email or password"

// SessionIssuer mints session tokens. *auth.TokenService implements it.
type SessionIssuer interface {
	Issue(user *model.User) (string, error)
}

// GoogleExchanger completes the Google OAuth code flow.
// *auth.GoogleProvider implements it.
type GoogleExchanger interface {
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, *oauth2.Token, error)
}

type AuthService struct {
	users     repository.UserRepository
	tokens    SessionIssuer
	passwords *auth.PasswordService
	google    GoogleExchanger
	logger    *slog.Logger
}

// NewAuthService wires the dependencies. google may be nil when Google
// login is not configured.
func NewAuthService(
	users repository.UserRepository,
	tokens SessionIssuer,
	passwords *auth.PasswordService,
	google GoogleExchanger,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		google:    google,
		logger:    logger,
	}
}

// AuthResult bundles the user and the credentials handed to the client.
// GoogleAccessToken is only set by the Google flow; clients may present
// either token as a bearer credential.
type AuthResult struct {
	User              *model.User
	Token             string
	GoogleAccessToken string
}

type SignupInput struct {
	Email       string
	Password    string
	Name        string
	IsRecruiter bool
}

// Signup creates an email/password account and logs it in.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		IsRecruiter:  in.IsRecruiter,
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		user.Name = &name
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user signed up",
		slog.String("userID", user.ID),
		slog.Bool("recruiter", user.IsRecruiter),
	)
	return s.issue(user)
}

// Login checks an email/password pair and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	return s.issue(user)
}

// CompleteGoogleLogin handles the OAuth callback. The account is matched
// by email and created on first login. The Google tokens are stored so the
// access token resolves by exact match on later requests.
func (s *AuthService) CompleteGoogleLogin(ctx context.Context, code string) (*AuthResult, error) {
	if s.google == nil {
		return nil, apperror.ValidationFailed("provider", "google login is not configured")
	}
	if code == "" {
		return nil, apperror.ValidationFailed("code", "authorization code is required")
	}

	gu, token, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.Unauthorized("google login failed")
	}

	user, err := s.users.GetUserByEmail(ctx, gu.Email)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		user = &model.User{Email: gu.Email}
		if gu.Name != "" {
			user.Name = &gu.Name
		}
		if gu.Picture != "" {
			user.ProfileImage = &gu.Picture
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: creating google user: %w", err)
		}
		s.logger.Info("user signed up via google", slog.String("userID", user.ID))
	case err != nil:
		return nil, fmt.Errorf("service/auth: looking up google user: %w", err)
	}

	tokens := model.GoogleTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if err := s.users.UpdateGoogleTokens(ctx, user.ID, tokens); err != nil {
		return nil, fmt.Errorf("service/auth: storing google tokens: %w", err)
	}
	user.GoogleAccessToken = &token.AccessToken

	s.logger.Info("user authenticated via google", slog.String("userID", user.ID))

	res, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	res.GoogleAccessToken = token.AccessToken
	return res, nil
}

// Me returns the full row behind a principal. A principal synthesized from
// a session without a profile row comes back as a bare user.
func (s *AuthService) Me(ctx context.Context, p *model.Principal) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, p.ID)
	if errors.Is(err, apperror.ErrNotFound) {
		return &model.User{
			ID:           p.ID,
			Email:        p.Email,
			Name:         p.Name,
			IsRecruiter:  p.IsRecruiter,
			CreatedAt:    p.CreatedAt,
			ProfileImage: p.ProfileImage,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", p.ID, err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.ValidationFailed("email", "email is not valid")
	}
	return email, nil
}
