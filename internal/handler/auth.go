package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/velric/velric-server/internal/auth"
	"github.com/velric/velric-server/internal/model"
	"github.com/velric/velric-server/internal/service"
)

const oauthStateCookie = "oauth_state"

// AuthService is the slice of *service.AuthService the handler uses.
type AuthService interface {
	Signup(ctx context.Context, in service.SignupInput) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	CompleteGoogleLogin(ctx context.Context, code string) (*service.AuthResult, error)
	Me(ctx context.Context, p *model.Principal) (*model.User, error)
}

// LoginURLer builds the provider's consent page URL for a state value.
// *auth.GoogleProvider implements it.
type LoginURLer interface {
	AuthURL(state string) string
}

// AuthHandler serves signup, login, the Google OAuth round trip and /api/me.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignup         → create an email/password account, return a session token
//   - HandleLogin          → check credentials, return a session token
//   - HandleGoogleLogin    → redirect the browser to Google's consent page
//   - HandleGoogleCallback → exchange the code, return both tokens
//   - HandleMe             → return the authenticated principal's profile
type AuthHandler struct {
	auth   AuthService
	google LoginURLer
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. google may be nil when Google
// login is not configured; the Google routes then answer 404.
func NewAuthHandler(svc AuthService, google LoginURLer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, google: google, logger: logger}
}

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	IsRecruiter bool   `json:"is_recruiter"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Success           bool             `json:"success"`
	Message           string           `json:"message,omitempty"`
	User              *model.Principal `json:"user"`
	AccessToken       string           `json:"access_token"`
	GoogleAccessToken string           `json:"google_access_token,omitempty"`
}

func newAuthResponse(res *service.AuthResult, message string) authResponse {
	return authResponse{
		Success:           true,
		Message:           message,
		User:              res.User.Principal(),
		AccessToken:       res.Token,
		GoogleAccessToken: res.GoogleAccessToken,
	}
}

// HandleSignup creates an account.
//
// HTTP: POST /api/auth/signup
// REQUEST BODY: {"email": "...", "password": "...", "name": "...", "is_recruiter": false}
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Signup(r.Context(), service.SignupInput{
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		IsRecruiter: req.IsRecruiter,
	})
	if err != nil {
		h.logFailure("signup failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newAuthResponse(res, "Account created"))
}

// HandleLogin exchanges credentials for a session token.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logFailure("login failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newAuthResponse(res, "Login successful"))
}

// HandleGoogleLogin redirects the browser to Google.
//
// HTTP: GET /auth/google/login
//
// The random state is kept in a short-lived HttpOnly cookie and checked on
// the callback, which proves the round trip started here.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		http.NotFound(w, r)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the OAuth flow.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter against the cookie (CSRF check)
//  2. Exchange the code, find or create the user, store the Google tokens
//  3. Return the session JWT and the Google access token; either works as a
//     bearer token afterwards
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		http.NotFound(w, r)
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("google callback: state mismatch")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid OAuth state"})
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: user denied authorization", slog.String("error", errParam))
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authorization was denied"})
		return
	}

	res, err := h.auth.CompleteGoogleLogin(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.logFailure("google login failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newAuthResponse(res, "Login successful"))
}

// HandleMe returns the caller's profile.
//
// HTTP: GET /api/me
// Auth: RequireAuth
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: auth.UnauthorizedMessage})
		return
	}

	user, err := h.auth.Me(r.Context(), p)
	if err != nil {
		h.logger.Error("fetching current user failed",
			slog.String("userID", p.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

func (h *AuthHandler) logFailure(msg string, err error) {
	h.logger.Info(msg, slog.String("error", err.Error()))
}
