package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Errors
var (
	ErrExchangeFailed  = errors.New("authorization code exchange failed")
	ErrProfileFailed   = errors.New("fetching user profile failed")
	ErrEmailUnverified = errors.New("provider email is not verified")
)

// GoogleUserInfoURL is the OpenID Connect userinfo endpoint
const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// maxProfileBytes bounds the userinfo response body
const maxProfileBytes = 1 << 20

// Profile is the identity returned by a provider
type Profile struct {
	Subject string
	Email   string
	Name    string
}

// Provider is an OAuth2 identity provider
type Provider interface {
	// Name identifies the provider on stored users
	Name() string
	// AuthCodeURL returns the consent page URL carrying state
	AuthCodeURL(state string) string
	// Exchange trades an authorization code for the user's profile
	Exchange(ctx context.Context, code string) (*Profile, error)
}

// Config holds Google client credentials
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint and UserInfoURL override Google's defaults
	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

// GoogleProvider implements Provider for Google sign-in
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
	logger      *slog.Logger
}

// Ensure GoogleProvider implements Provider
var _ Provider = (*GoogleProvider)(nil)

// NewGoogleProvider creates a Google provider. httpClient may be nil.
func NewGoogleProvider(cfg Config, httpClient *http.Client, logger *slog.Logger) *GoogleProvider {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" || endpoint.TokenURL == "" {
		endpoint = endpoints.Google
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = GoogleUserInfoURL
	}

	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "profile", "email"},
		},
		userInfoURL: userInfoURL,
		httpClient:  httpClient,
		logger:      logger,
	}
}

// Name returns "google"
func (p *GoogleProvider) Name() string {
	return "google"
}

// AuthCodeURL returns Google's consent page URL
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades code for a token and fetches the userinfo profile
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		p.logger.Warn("oauth exchange failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}

	client := p.config.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileFailed, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrProfileFailed, resp.StatusCode)
	}

	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes)).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileFailed, err)
	}

	if info.Sub == "" || info.Email == "" {
		return nil, fmt.Errorf("%w: incomplete profile", ErrProfileFailed)
	}
	if !info.EmailVerified {
		return nil, ErrEmailUnverified
	}

	return &Profile{
		Subject: info.Sub,
		Email:   info.Email,
		Name:    info.Name,
	}, nil
}
