package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/berfenger/solarcharge2mqtt/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(url string) *Client {
	return NewClient(config.FleetConfig{
		ProxyBase:            url,
		OAuthBase:            url,
		VIN:                  "5YJ3E1EA7KF000001",
		ClientId:             "client-id",
		ClientSecret:         "client-secret",
		RequestTimeoutMillis: 5000,
	}, zap.Must(zap.NewDevelopment()))
}

func TestSetChargingAmps(t *testing.T) {
	require := require.New(t)

	var gotAuth, gotPath string
	var gotBody setChargingAmpsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":{"result":true,"reason":""}}`))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).SetChargingAmps(context.Background(), "token-1", 14)
	require.NoError(err)
	assert.Equal(t, "Bearer token-1", gotAuth)
	assert.Equal(t, "/api/1/vehicles/5YJ3E1EA7KF000001/command/set_charging_amps", gotPath)
	assert.Equal(t, 14, gotBody.ChargingAmps)
}

func TestSetChargingAmpsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":{"result":false,"reason":"vehicle asleep"}}`))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).SetChargingAmps(context.Background(), "token-1", 14)
	require.ErrorIs(t, err, ErrCommandRejected)
	assert.Contains(t, err.Error(), "vehicle asleep")
}

func TestSetChargingAmpsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).SetChargingAmps(context.Background(), "token-1", 14)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "slow down", apiErr.Body)
}

func TestRefresh(t *testing.T) {
	require := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(TOKEN_PATH, r.URL.Path)
		require.NoError(r.ParseForm())
		require.Equal("refresh_token", r.PostForm.Get("grant_type"))
		require.Equal("client-id", r.PostForm.Get("client_id"))
		require.Equal("client-secret", r.PostForm.Get("client_secret"))
		require.Equal("refresh-1", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-2","refresh_token":"refresh-2","id_token":"id-2","expires_in":28800,"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Refresh(context.Background(), "refresh-1")
	require.NoError(err)
	assert.Equal(t, "access-2", resp.AccessToken)
	assert.Equal(t, "refresh-2", resp.RefreshToken)
	assert.Equal(t, "id-2", resp.IdToken)
	assert.Equal(t, int64(28800), resp.ExpiresIn)
}

func TestRefreshInvalidGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"refresh token revoked"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Refresh(context.Background(), "refresh-1")
	var oauthErr *OAuthError
	require.True(t, errors.As(err, &oauthErr))
	assert.Equal(t, http.StatusUnauthorized, oauthErr.StatusCode)
	assert.True(t, oauthErr.ReauthorizationRequired())
	assert.Equal(t, "invalid_grant: refresh token revoked", oauthErr.Error())
}

func TestRefreshServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Refresh(context.Background(), "refresh-1")
	var oauthErr *OAuthError
	require.True(t, errors.As(err, &oauthErr))
	assert.False(t, oauthErr.ReauthorizationRequired())
	assert.Equal(t, "oauth: http 502", oauthErr.Error())
}
