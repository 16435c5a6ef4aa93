package auth

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/velric/velric-server/internal/apperror"
	"github.com/velric/velric-server/internal/model"
)

// googleTokenPrefix starts every Google OAuth access token issued today.
const googleTokenPrefix = "ya29."

// googleTokenMinLen: longer tokens are also tried as Google tokens.
const googleTokenMinLen = 100

// healTimeout bounds a shared verify-and-heal run, which outlives the
// request that started it.
const healTimeout = 10 * time.Second

var uuidPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// UserStore is the slice of repository.UserRepository the resolver needs.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByGoogleAccessToken(ctx context.Context, token string) (*model.User, error)
	UpdateGoogleAccessToken(ctx context.Context, id, token string) error
}

// GoogleVerifier reports the Google account an access token belongs to.
type GoogleVerifier interface {
	UserInfo(ctx context.Context, accessToken string) (*GoogleUser, error)
}

// SessionVerifier validates a session JWT. TokenService and
// SupabaseVerifier both implement it.
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (*SessionUser, error)
}

// Authenticator maps a bearer token to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Principal, bool)
}

// Resolver tries each credential format in a fixed order and returns the
// first principal found:
//
//  1. Google access token (only when the token looks like one)
//     a. exact match against the stored google_access_token
//     b. ask Google for the email, match by email, store the new token
//  2. session JWT, falling back to a principal built from the claims when
//     the user row does not exist yet
//  3. raw user UUID
//
// A failing strategy never fails the whole resolution; the next one runs.
type Resolver struct {
	users    UserStore
	google   GoogleVerifier
	sessions SessionVerifier
	logger   *slog.Logger

	// heals collapses concurrent verify-and-heal runs for the same token
	// into one Google call and one write.
	heals singleflight.Group
}

var _ Authenticator = (*Resolver)(nil)

// NewResolver fails when the user store or session verifier is missing.
// google may be nil, in which case step 1b is skipped.
func NewResolver(users UserStore, google GoogleVerifier, sessions SessionVerifier, logger *slog.Logger) (*Resolver, error) {
	if users == nil {
		return nil, errors.New("auth: resolver needs a user store")
	}
	if sessions == nil {
		return nil, errors.New("auth: resolver needs a session verifier")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{users: users, google: google, sessions: sessions, logger: logger}, nil
}

// Authenticate returns (nil, false) for an empty token without touching any
// backend.
func (r *Resolver) Authenticate(ctx context.Context, token string) (*model.Principal, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, false
	}

	if looksLikeGoogleToken(token) {
		if p, ok := r.byStoredGoogleToken(ctx, token); ok {
			return p, true
		}
		if p, ok := r.byVerifiedGoogleToken(ctx, token); ok {
			return p, true
		}
	}

	if p, ok := r.bySession(ctx, token); ok {
		return p, true
	}

	if uuidPattern.MatchString(token) {
		if p, ok := r.byUserID(ctx, token); ok {
			return p, true
		}
	}

	return nil, false
}

func looksLikeGoogleToken(token string) bool {
	return strings.HasPrefix(token, googleTokenPrefix) || len(token) > googleTokenMinLen
}

func (r *Resolver) byStoredGoogleToken(ctx context.Context, token string) (*model.Principal, bool) {
	u, err := r.users.GetUserByGoogleAccessToken(ctx, token)
	if err != nil {
		r.logMiss(ctx, "google token lookup", err)
		return nil, false
	}
	return u.Principal(), true
}

func (r *Resolver) byVerifiedGoogleToken(ctx context.Context, token string) (*model.Principal, bool) {
	if r.google == nil {
		return nil, false
	}

	// The shared run is detached from the request that started it; each
	// caller stops waiting when its own context ends.
	ch := r.heals.DoChan(token, func() (any, error) {
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), healTimeout)
		defer cancel()

		gu, err := r.google.UserInfo(hctx, token)
		if err != nil {
			return nil, err
		}
		u, err := r.users.GetUserByEmail(hctx, gu.Email)
		if err != nil {
			return nil, err
		}
		if err := r.users.UpdateGoogleAccessToken(hctx, u.ID, token); err != nil {
			r.logger.WarnContext(hctx, "storing refreshed google token failed",
				"user_id", u.ID, "error", err)
		}
		return u, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			r.logMiss(ctx, "google token verification", res.Err)
			return nil, false
		}
		return res.Val.(*model.User).Principal(), true
	case <-ctx.Done():
		r.logMiss(ctx, "google token verification", ctx.Err())
		return nil, false
	}
}

func (r *Resolver) bySession(ctx context.Context, token string) (*model.Principal, bool) {
	su, err := r.sessions.VerifySession(ctx, token)
	if err != nil {
		r.logMiss(ctx, "session verification", err)
		return nil, false
	}

	u, err := r.users.GetUserByID(ctx, su.ID)
	switch {
	case err == nil:
		return u.Principal(), true
	case errors.Is(err, apperror.ErrNotFound):
		// Signed up with the session authority but no profile row yet.
		return sessionPrincipal(su), true
	default:
		r.logger.ErrorContext(ctx, "fetching profile for session failed",
			"user_id", su.ID, "error", err)
		return nil, false
	}
}

func (r *Resolver) byUserID(ctx context.Context, token string) (*model.Principal, bool) {
	// Ids are stored in canonical lower case.
	id, err := uuid.Parse(token)
	if err != nil {
		return nil, false
	}
	u, err := r.users.GetUserByID(ctx, id.String())
	if err != nil {
		// The error names the id, which is the bearer token here.
		r.logger.Log(ctx, missLevel(err), "auth strategy did not resolve", "strategy", "user id lookup")
		return nil, false
	}
	return u.Principal(), true
}

// logMiss records why a strategy did not resolve. Not-found is the normal
// outcome of trying each strategy in turn and stays at debug.
func (r *Resolver) logMiss(ctx context.Context, strategy string, err error) {
	r.logger.Log(ctx, missLevel(err), "auth strategy did not resolve", "strategy", strategy, "error", err)
}

func missLevel(err error) slog.Level {
	if errors.Is(err, apperror.ErrNotFound) || errors.Is(err, context.Canceled) {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func sessionPrincipal(su *SessionUser) *model.Principal {
	p := &model.Principal{
		ID:          su.ID,
		Email:       su.Email,
		IsRecruiter: su.IsRecruiter,
		CreatedAt:   su.CreatedAt,
	}
	if su.Name != "" {
		name := su.Name
		p.Name = &name
	}
	if su.AvatarURL != "" {
		avatar := su.AvatarURL
		p.ProfileImage = &avatar
	}
	return p
}

// SessionVerifiers tries each verifier in order and returns the first
// success. It lets locally issued tokens and Supabase sessions coexist.
type SessionVerifiers []SessionVerifier

func (vs SessionVerifiers) VerifySession(ctx context.Context, token string) (*SessionUser, error) {
	errs := make([]error, 0, len(vs))
	for _, v := range vs {
		su, err := v.VerifySession(ctx, token)
		if err == nil {
			return su, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("auth: no session verifier configured")
	}
	return nil, errors.Join(errs...)
}
