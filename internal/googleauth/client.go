// Package googleauth is a thin client for Google's token refresh and
// introspection endpoints.
//
// It translates provider-specific failures into the sentinel taxonomy the
// lifecycle manager works with: invalid_grant-style rejections become
// errs.ErrRefreshRejected, everything transport-shaped (including timeouts)
// becomes errs.ErrProviderUnavailable. The two must never be conflated:
// one needs user action, the other just a retry.
package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/jobpilot/jobpilot/internal/errs"
	"github.com/jobpilot/jobpilot/internal/model"
)

// SendScope is the delegated permission required to send mail on the
// user's behalf.
const SendScope = "https://www.googleapis.com/auth/gmail.send"

const defaultIntrospectURL = "https://www.googleapis.com/oauth2/v1/tokeninfo"

// Client wraps the two upstream operations as typed calls.
type Client struct {
	conf          *oauth2.Config
	httpClient    *http.Client
	timeout       time.Duration
	introspectURL string
}

// New constructs a provider client authenticating with the process-wide
// OAuth client id/secret. All network calls are bounded by timeout.
func New(clientID, clientSecret string, timeout time.Duration) *Client {
	return &Client{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
		},
		httpClient:    &http.Client{Timeout: timeout},
		timeout:       timeout,
		introspectURL: defaultIntrospectURL,
	}
}

// Refresh exchanges a refresh token for a new access token
// (grant_type=refresh_token). RefreshToken in the result is set only when
// the provider rotated it.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*model.RefreshedToken, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	src := c.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, mapRefreshErr(err)
	}

	out := &model.RefreshedToken{AccessToken: tok.AccessToken}
	if !tok.Expiry.IsZero() {
		out.ExpiresIn = int64(time.Until(tok.Expiry).Round(time.Second).Seconds())
	}
	if tok.RefreshToken != "" && tok.RefreshToken != refreshToken {
		out.RefreshToken = tok.RefreshToken
	}
	return out, nil
}

func mapRefreshErr(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		// invalid_grant means the consent was revoked or expired; anything
		// else from the token endpoint is treated as transient so we never
		// tell a user to reconnect over a provider hiccup.
		if rerr.ErrorCode == "invalid_grant" {
			return fmt.Errorf("%w: %s", errs.ErrRefreshRejected, rerr.ErrorCode)
		}
		return fmt.Errorf("%w: token endpoint status %d", errs.ErrProviderUnavailable, rerr.Response.StatusCode)
	}
	return fmt.Errorf("%w: %v", errs.ErrProviderUnavailable, err)
}

// tokenInfoResponse mirrors the fields of the tokeninfo endpoint we use.
type tokenInfoResponse struct {
	Scope     string `json:"scope"`
	Email     string `json:"email"`
	ExpiresIn int64  `json:"expires_in"`
	ErrorDesc string `json:"error_description"`
}

// Introspect asks the provider what an access token is good for: granted
// scopes, the account email, and remaining lifetime.
func (c *Client) Introspect(ctx context.Context, accessToken string) (*model.TokenInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.introspectURL + "?access_token=" + url.QueryEscape(accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	var info tokenInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil && resp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("%w: decode tokeninfo: %v", errs.ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return &model.TokenInfo{Scope: info.Scope, Email: info.Email, ExpiresIn: info.ExpiresIn}, nil
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: tokeninfo status %d", errs.ErrProviderUnavailable, resp.StatusCode)
	default:
		// 4xx from tokeninfo means the token itself is not valid.
		return nil, fmt.Errorf("%w: %s", errs.ErrRefreshRejected, info.ErrorDesc)
	}
}
