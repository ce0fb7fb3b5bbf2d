// Package discord implements the parts of the Discord OAuth2 flow the dashboard needs.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/fuomag9/cheez-dashboard/internal/config"
)

const (
	// DefaultBaseURL is the root of Discord's HTTP API
	DefaultBaseURL = "https://discord.com/api"

	// CallbackPath is where the provider sends the user back with a code
	CallbackPath = "/api/auth/discord/callback"

	inviteScopes = "bot applications.commands"
)

// ErrUpstream marks failures talking to Discord: network errors, timeouts,
// unexpected statuses and unparsable bodies.
var ErrUpstream = errors.New("discord request failed")

// ProviderError is an OAuth2 error body returned by the token endpoint
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("discord oauth error %s: %s", e.Code, e.Description)
	}
	return "discord oauth error " + e.Code
}

// Message returns the text to echo back to the client
func (e *ProviderError) Message() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Code
}

// User is the profile returned by the current-user endpoint
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator,omitempty"`
	GlobalName    string `json:"global_name,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	Email         string `json:"email,omitempty"`
}

// Options configures a Client
type Options struct {
	ClientID          string
	ClientSecret      string
	Scopes            []string
	InvitePermissions string
	BaseURL           string
	HTTPClient        *http.Client
	Timeout           time.Duration
}

// Client talks to Discord's OAuth2 and user endpoints
type Client struct {
	clientID     string
	clientSecret string
	scopes       []string
	permissions  string
	baseURL      string
	httpClient   *http.Client
	timeout      time.Duration
}

// NewClient creates a Discord client. An empty client ID is allowed; the
// operations that need one report [config.ErrMissingClientID].
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		scopes:       opts.Scopes,
		permissions:  opts.InvitePermissions,
		baseURL:      strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient:   opts.HTTPClient,
		timeout:      opts.Timeout,
	}
}

// NewClientFromConfig creates a client from application configuration,
// deriving the client ID from the bot token when it is not set explicitly.
func NewClientFromConfig(cfg config.DiscordConfig) *Client {
	return NewClient(Options{
		ClientID:          cfg.ResolveClientID(),
		ClientSecret:      cfg.ClientSecret,
		Scopes:            cfg.Scopes,
		InvitePermissions: cfg.InvitePermissions,
		Timeout:           cfg.HTTPTimeout,
	})
}

// ClientID returns the resolved application ID, empty when unconfigured
func (c *Client) ClientID() string {
	return c.clientID
}

// RedirectURI returns the callback URL registered with Discord for host.
// It must be identical in the authorization request and the code exchange.
func RedirectURI(host string) string {
	return "https://" + host + CallbackPath
}

func (c *Client) oauth2Config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       c.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.baseURL + "/oauth2/authorize",
			TokenURL:  c.baseURL + "/oauth2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthorizationURL returns the provider URL that starts the authorization-code flow
func (c *Client) AuthorizationURL(redirectURI string) (string, error) {
	if c.clientID == "" {
		return "", config.ErrMissingClientID
	}
	return c.oauth2Config(redirectURI).AuthCodeURL(""), nil
}

// InviteURL returns the URL that adds the bot to a guild
func (c *Client) InviteURL() (string, error) {
	if c.clientID == "" {
		return "", config.ErrMissingClientID
	}

	params := url.Values{}
	params.Set("client_id", c.clientID)
	params.Set("permissions", c.permissions)
	params.Set("scope", inviteScopes)

	return c.baseURL + "/oauth2/authorize?" + params.Encode(), nil
}

// ExchangeCode exchanges an authorization code for an access token.
//
// An error body from the token endpoint is returned as a [*ProviderError];
// every other failure wraps [ErrUpstream].
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	if c.clientID == "" {
		return nil, config.ErrMissingClientID
	}
	if c.clientSecret == "" {
		return nil, config.ErrMissingClientSecret
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauth2Config(redirectURI).Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
			return nil, &ProviderError{
				Code:        retrieveErr.ErrorCode,
				Description: retrieveErr.ErrorDescription,
			}
		}
		return nil, fmt.Errorf("%w: token exchange: %v", ErrUpstream, err)
	}

	return token, nil
}

// CurrentUser fetches the profile of the user the token belongs to
func (c *Client) CurrentUser(ctx context.Context, token *oauth2.Token) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/@me", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user request: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: user request: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: user request returned status %d: %s", ErrUpstream, resp.StatusCode, string(body))
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("%w: failed to decode user: %v", ErrUpstream, err)
	}

	if user.ID == "" {
		return nil, fmt.Errorf("%w: user response missing id", ErrUpstream)
	}

	return &user, nil
}
