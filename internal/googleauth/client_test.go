package googleauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jobpilot/jobpilot/internal/errs"
)

func newTestClient(timeout time.Duration) *Client {
	return New("client-id", "client-secret", timeout)
}

func TestRefresh_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		require.Equal(t, "old-refresh", r.Form.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "new-access",
			"token_type":   "Bearer",
			"expires_in":   3599,
		})
	}))
	defer srv.Close()

	c := newTestClient(time.Second)
	c.conf.Endpoint.TokenURL = srv.URL

	got, err := c.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	require.Equal(t, "new-access", got.AccessToken)
	require.InDelta(t, 3599, got.ExpiresIn, 5)
	// not rotated
	require.Empty(t, got.RefreshToken)
}

func TestRefresh_Rotation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "rotated-refresh",
		})
	}))
	defer srv.Close()

	c := newTestClient(time.Second)
	c.conf.Endpoint.TokenURL = srv.URL

	got, err := c.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	require.Equal(t, "rotated-refresh", got.RefreshToken)
}

func TestRefresh_InvalidGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_grant",
			"error_description": "Token has been expired or revoked.",
		})
	}))
	defer srv.Close()

	c := newTestClient(time.Second)
	c.conf.Endpoint.TokenURL = srv.URL

	_, err := c.Refresh(context.Background(), "revoked")
	require.ErrorIs(t, err, errs.ErrRefreshRejected)
	require.NotErrorIs(t, err, errs.ErrProviderUnavailable)
}

func TestRefresh_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(time.Second)
	c.conf.Endpoint.TokenURL = srv.URL

	_, err := c.Refresh(context.Background(), "rt")
	require.ErrorIs(t, err, errs.ErrProviderUnavailable)
}

func TestRefresh_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClient(50 * time.Millisecond)
	c.conf.Endpoint.TokenURL = srv.URL

	// A timed-out refresh is transient, never a reauth signal.
	_, err := c.Refresh(context.Background(), "rt")
	require.ErrorIs(t, err, errs.ErrProviderUnavailable)
	require.NotErrorIs(t, err, errs.ErrRefreshRejected)
}

func TestIntrospect_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "tok", r.URL.Query().Get("access_token"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"scope":      "openid email " + SendScope,
			"email":      "user@example.com",
			"expires_in": 3400,
		})
	}))
	defer srv.Close()

	c := newTestClient(time.Second)
	c.introspectURL = srv.URL

	info, err := c.Introspect(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, "user@example.com", info.Email)
	require.Contains(t, info.Scope, SendScope)
	require.EqualValues(t, 3400, info.ExpiresIn)
}

func TestIntrospect_InvalidToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error_description": "Invalid Value"})
	}))
	defer srv.Close()

	c := newTestClient(time.Second)
	c.introspectURL = srv.URL

	_, err := c.Introspect(context.Background(), "bad")
	require.ErrorIs(t, err, errs.ErrRefreshRejected)
}

func TestIntrospect_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(time.Second)
	c.introspectURL = srv.URL

	_, err := c.Introspect(context.Background(), "tok")
	require.ErrorIs(t, err, errs.ErrProviderUnavailable)
}
