package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultGoogleUserInfoURL is Google's v2 userinfo endpoint.
const DefaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleUser is the subset of the userinfo response we use.
type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleProvider wraps golang.org/x/oauth2 for the Google Authorization
// Code flow and doubles as the access-token verifier for Resolver.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider builds the provider. An empty userInfoURL means
// DefaultGoogleUserInfoURL; tests point it at an httptest server.
func NewGoogleProvider(clientID, clientSecret, callbackURL, userInfoURL string) *GoogleProvider {
	if userInfoURL == "" {
		userInfoURL = DefaultGoogleUserInfoURL
	}
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: userInfoURL,
	}
}

// AuthURL returns the consent URL. Offline access makes Google return a
// refresh token on first consent.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades the callback code for tokens and fetches the profile
// those tokens belong to.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleUser, *oauth2.Token, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: exchanging google code: %w", err)
	}

	user, err := p.fetchUser(ctx, p.config.Client(ctx, token))
	if err != nil {
		return nil, nil, err
	}
	return user, token, nil
}

// UserInfo verifies an access token by asking Google who it belongs to.
// A rejected token or a profile without an email is an error.
func (p *GoogleProvider) UserInfo(ctx context.Context, accessToken string) (*GoogleUser, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return p.fetchUser(ctx, oauth2.NewClient(ctx, src))
}

func (p *GoogleProvider) fetchUser(ctx context.Context, client *http.Client) (*GoogleUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building google userinfo request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: fetching google user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: google userinfo returned status %d", resp.StatusCode)
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("auth: decoding google user: %w", err)
	}
	if user.Email == "" {
		return nil, errors.New("auth: google user has no email")
	}
	return &user, nil
}
