package fleet

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/berfenger/solarcharge2mqtt/internal/config"
	"github.com/berfenger/solarcharge2mqtt/internal/core/port"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	SET_CHARGING_AMPS_PATH = "/api/1/vehicles/{vin}/command/set_charging_amps"
	TOKEN_PATH             = "/oauth2/v3/token"
)

var ErrCommandRejected = errors.New("vehicle command rejected")

// APIError is a non-2xx answer from the vehicle command proxy
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fleet api: http %d: %s", e.StatusCode, e.Body)
}

// OAuthError is an error answer from the token endpoint
type OAuthError struct {
	StatusCode  int
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("oauth: http %d", e.StatusCode)
}

// ReauthorizationRequired reports whether the refresh token can no longer be used
func (e *OAuthError) ReauthorizationRequired() bool {
	return e.Code == "login_required" || e.Code == "invalid_grant"
}

type setChargingAmpsRequest struct {
	ChargingAmps int `json:"charging_amps"`
}

type commandResponse struct {
	Response struct {
		Result bool   `json:"result"`
		Reason string `json:"reason"`
	} `json:"response"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	IdToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
}

// Client talks to the vehicle command proxy and the OAuth token endpoint
type Client struct {
	cfg    config.FleetConfig
	proxy  *resty.Client
	oauth  *resty.Client
	logger *zap.Logger
}

func NewClient(cfg config.FleetConfig, logger *zap.Logger) *Client {
	proxy := resty.New().
		SetBaseURL(cfg.ProxyBase).
		SetTimeout(cfg.RequestTimeout())
	if cfg.InsecureSkipVerify {
		proxy.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	oauth := resty.New().
		SetBaseURL(cfg.OAuthBase).
		SetTimeout(cfg.RequestTimeout())
	return &Client{
		cfg:    cfg,
		proxy:  proxy,
		oauth:  oauth,
		logger: logger,
	}
}

func (c *Client) SetChargingAmps(ctx context.Context, accessToken string, amps int) error {
	resp, err := c.proxy.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetPathParam("vin", c.cfg.VIN).
		SetBody(setChargingAmpsRequest{ChargingAmps: amps}).
		SetResult(&commandResponse{}).
		Post(SET_CHARGING_AMPS_PATH)
	if err != nil {
		return fmt.Errorf("set charging amps: %w", err)
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	result, ok := resp.Result().(*commandResponse)
	if !ok || !result.Response.Result {
		reason := "no result"
		if ok && result.Response.Reason != "" {
			reason = result.Response.Reason
		}
		return fmt.Errorf("%w: %s", ErrCommandRejected, reason)
	}
	c.logger.Debug("fleet: set charging amps accepted", zap.Int("amps", amps))
	return nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*port.TokenResponse, error) {
	resp, err := c.oauth.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"client_id":     c.cfg.ClientId,
			"client_secret": c.cfg.ClientSecret,
			"refresh_token": refreshToken,
		}).
		SetResult(&tokenResponse{}).
		SetError(&OAuthError{}).
		Post(TOKEN_PATH)
	if err != nil {
		return nil, fmt.Errorf("token refresh: %w", err)
	}
	if resp.IsError() {
		oauthErr, ok := resp.Error().(*OAuthError)
		if !ok {
			oauthErr = &OAuthError{}
		}
		oauthErr.StatusCode = resp.StatusCode()
		return nil, oauthErr
	}
	token, ok := resp.Result().(*tokenResponse)
	if !ok || token.AccessToken == "" {
		return nil, fmt.Errorf("token refresh: response without access_token")
	}
	return &port.TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		IdToken:      token.IdToken,
		ExpiresIn:    token.ExpiresIn,
	}, nil
}

// ensure interface compliance
var (
	_ port.CommandIssuer  = (*Client)(nil)
	_ port.TokenRefresher = (*Client)(nil)
)
