package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SupabaseVerifier asks a Supabase project whether a session token is
// valid. It is used in place of TokenService when SUPABASE_URL and
// SUPABASE_ANON_KEY are configured.
type SupabaseVerifier struct {
	baseURL string
	anonKey string
	client  *http.Client
}

// NewSupabaseVerifier returns an error when either credential is missing.
// A nil client means a client with a 10 second timeout.
func NewSupabaseVerifier(baseURL, anonKey string, client *http.Client) (*SupabaseVerifier, error) {
	if baseURL == "" || anonKey == "" {
		return nil, errors.New("auth: supabase url and anon key are required")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SupabaseVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client:  client,
	}, nil
}

type supabaseUser struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
	UserMetadata struct {
		Name        string `json:"name"`
		FullName    string `json:"full_name"`
		AvatarURL   string `json:"avatar_url"`
		IsRecruiter bool   `json:"is_recruiter"`
	} `json:"user_metadata"`
}

// VerifySession calls GET {url}/auth/v1/user. Any non-200 answer means the
// token is not a live session.
func (v *SupabaseVerifier) VerifySession(ctx context.Context, token string) (*SessionUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building supabase request: %w", err)
	}
	req.Header.Set("apikey", v.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling supabase: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: supabase rejected token: status %d", resp.StatusCode)
	}

	var u supabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("auth: decoding supabase user: %w", err)
	}
	if u.ID == "" {
		return nil, errors.New("auth: supabase user has no id")
	}

	name := u.UserMetadata.Name
	if name == "" {
		name = u.UserMetadata.FullName
	}
	return &SessionUser{
		ID:          u.ID,
		Email:       u.Email,
		Name:        name,
		AvatarURL:   u.UserMetadata.AvatarURL,
		IsRecruiter: u.UserMetadata.IsRecruiter,
		CreatedAt:   u.CreatedAt,
	}, nil
}
