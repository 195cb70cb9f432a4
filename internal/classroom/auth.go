package classroom

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested by the web client's code flow.
var Scopes = []string{
	"https://www.googleapis.com/auth/classroom.courses.readonly",
	"https://www.googleapis.com/auth/classroom.coursework.me.readonly",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// RedirectPostMessage is the redirect URI used by Google Identity Services popups.
const RedirectPostMessage = "postmessage"

type AuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// TokenURL overrides Google's token endpoint.
	TokenURL string
}

// Grant is the result of an authorization-code exchange.
type Grant struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Auth exchanges codes and refreshes access tokens.
type Auth struct {
	oauth  *oauth2.Config
	client *http.Client
	now    func() time.Time
}

// NewAuth builds an Auth. client carries timeouts and retries; nil uses http.DefaultClient.
func NewAuth(cfg AuthConfig, client *http.Client) *Auth {
	endpoint := google.Endpoint
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	redirect := cfg.RedirectURL
	if redirect == "" {
		redirect = RedirectPostMessage
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Auth{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirect,
			Endpoint:     endpoint,
			Scopes:       Scopes,
		},
		client: client,
		now:    time.Now,
	}
}

// Configured reports whether a client id and secret are present.
func (a *Auth) Configured() bool {
	return a != nil && a.oauth.ClientID != "" && a.oauth.ClientSecret != ""
}

func (a *Auth) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.client)
}

// Exchange trades an authorization code for tokens. Google only returns a
// refresh token on the first consent (access_type=offline, prompt=consent).
func (a *Auth) Exchange(ctx context.Context, code string) (Grant, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Grant{}, errors.New("exchange: code is required")
	}
	tok, err := a.oauth.Exchange(a.withClient(ctx), code)
	if err != nil {
		return Grant{}, classifyTokenError("exchange", err)
	}
	if tok.AccessToken == "" {
		return Grant{}, fmt.Errorf("exchange: %w: no access_token", ErrMalformed)
	}
	return Grant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    a.expiresIn(tok),
	}, nil
}

// Refresh returns a fresh access token for refreshToken.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", fmt.Errorf("refresh: %w: empty refresh token", ErrAuthExpired)
	}
	ts := a.oauth.TokenSource(a.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := ts.Token()
	if err != nil {
		return "", classifyTokenError("refresh", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("refresh: %w: no access_token", ErrMalformed)
	}
	return tok.AccessToken, nil
}

func (a *Auth) expiresIn(tok *oauth2.Token) int64 {
	if tok.ExpiresIn > 0 {
		return tok.ExpiresIn
	}
	if tok.Expiry.IsZero() {
		return 0
	}
	return int64(math.Round(tok.Expiry.Sub(a.now()).Seconds()))
}
