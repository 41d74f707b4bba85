package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/clipvault/backend/internal/identity"
)

const (
	defaultGoogleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultGoogleTokenURL    = "https://oauth2.googleapis.com/token"
	defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// ErrExchangeFailed indicates the provider rejected the authorization code.
var ErrExchangeFailed = errors.New("authorization code exchange failed")

// GoogleConfig configures the Google OAuth client. The URL fields are
// overridable so tests can point the client at a local server.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// GoogleClient performs the Google OAuth code exchange and profile fetch.
type GoogleClient struct {
	cfg    GoogleConfig
	client *http.Client
}

// NewGoogleClient constructs a GoogleClient for the given configuration.
func NewGoogleClient(cfg GoogleConfig, client *http.Client) *GoogleClient {
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultGoogleAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultGoogleTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultGoogleUserInfoURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &GoogleClient{cfg: cfg, client: client}
}

// LoginURL builds the consent-screen URL the browser is redirected to.
func (c *GoogleClient) LoginURL(state string) string {
	params := url.Values{
		"client_id":     {c.cfg.ClientID},
		"redirect_uri":  {c.cfg.RedirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
		"access_type":   {"offline"},
	}
	return c.cfg.AuthURL + "?" + params.Encode()
}

type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type googleUserInfo struct {
	Sub     string `json:"sub"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Exchange trades an authorization code for the provider profile of the
// user who granted it. The identity is namespaced as "google@<sub>".
func (c *GoogleClient) Exchange(ctx context.Context, code string) (identity.ProviderProfile, error) {
	token, err := c.exchangeToken(ctx, code)
	if err != nil {
		return identity.ProviderProfile{}, err
	}

	info, err := c.fetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		return identity.ProviderProfile{}, err
	}

	if info.Sub == "" {
		return identity.ProviderProfile{}, fmt.Errorf("%w: profile missing subject", ErrExchangeFailed)
	}

	return identity.ProviderProfile{
		Identity: "google@" + info.Sub,
		Name:     info.Name,
		Picture:  info.Picture,
	}, nil
}

func (c *GoogleClient) exchangeToken(ctx context.Context, code string) (googleTokenResponse, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"redirect_uri":  {c.cfg.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return googleTokenResponse{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return googleTokenResponse{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return googleTokenResponse{}, fmt.Errorf("%w: status %d: %s", ErrExchangeFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var token googleTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return googleTokenResponse{}, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return googleTokenResponse{}, fmt.Errorf("%w: empty access token", ErrExchangeFailed)
	}

	return token, nil
}

func (c *GoogleClient) fetchUserInfo(ctx context.Context, accessToken string) (googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.UserInfoURL, nil)
	if err != nil {
		return googleUserInfo{}, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return googleUserInfo{}, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return googleUserInfo{}, fmt.Errorf("%w: userinfo status %d", ErrExchangeFailed, resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return googleUserInfo{}, fmt.Errorf("decode userinfo response: %w", err)
	}

	return info, nil
}
