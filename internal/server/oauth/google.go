// Package oauth wraps the external identity-provider exchange. The auth core
// consumes it as an opaque function that turns an authorization code into a
// verified profile; the redirect/consent mechanics live with the provider.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Profile is the verified identity returned by the provider.
type Profile struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Exchanger turns an authorization code into a verified profile.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*Profile, error)
	AuthURL() string
}

const (
	googleAuthEndpoint     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenEndpoint    = "https://oauth2.googleapis.com/token"
	googleUserinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// GoogleExchanger implements Exchanger against Google's OAuth2 endpoints.
type GoogleExchanger struct {
	clientID     string
	clientSecret string
	redirectURI  string
	client       *http.Client

	// endpoint overrides for tests
	tokenEndpoint    string
	userinfoEndpoint string
}

// NewGoogleExchanger builds an exchanger from client credentials.
func NewGoogleExchanger(clientID, clientSecret, redirectURI string) *GoogleExchanger {
	return &GoogleExchanger{
		clientID:         clientID,
		clientSecret:     clientSecret,
		redirectURI:      redirectURI,
		client:           &http.Client{Timeout: 10 * time.Second},
		tokenEndpoint:    googleTokenEndpoint,
		userinfoEndpoint: googleUserinfoEndpoint,
	}
}

// AuthURL returns the consent-screen URL the frontend redirects users to.
func (g *GoogleExchanger) AuthURL() string {
	params := url.Values{
		"client_id":     {g.clientID},
		"redirect_uri":  {g.redirectURI},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"access_type":   {"offline"},
		"prompt":        {"consent"},
	}
	return googleAuthEndpoint + "?" + params.Encode()
}

// Exchange trades the authorization code for an access token, then fetches
// the user's profile with it.
func (g *GoogleExchanger) Exchange(ctx context.Context, code string) (*Profile, error) {
	form := url.Values{
		"client_id":     {g.clientID},
		"client_secret": {g.clientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {g.redirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("token exchange: %s: %s", resp.Status, body)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("token exchange: decode: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token exchange: empty access token")
	}

	return g.fetchProfile(ctx, tokenResp.AccessToken)
}

func (g *GoogleExchanger) fetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userinfoEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("userinfo: %s: %s", resp.Status, body)
	}

	profile := &Profile{}
	if err := json.NewDecoder(resp.Body).Decode(profile); err != nil {
		return nil, fmt.Errorf("userinfo: decode: %w", err)
	}
	return profile, nil
}
