package port

import (
	"context"
	"time"

	"github.com/berfenger/solarcharge2mqtt/internal/core/domain"
)

// CommandIssuer sends the charging current setpoint to the vehicle
type CommandIssuer interface {
	SetChargingAmps(ctx context.Context, accessToken string, amps int) error
}

type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	IdToken      string
	ExpiresIn    int64
}

// TokenRefresher exchanges a refresh token using the OAuth2 refresh-token grant
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// CredentialRepository persists the merged token and command counter record
type CredentialRepository interface {
	Load(ctx context.Context) (domain.CredentialRecord, error)
	Save(ctx context.Context, record domain.CredentialRecord) error
}

// Notifier delivers human readable state transitions. It must not block.
type Notifier interface {
	Notify(text string)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// ChargeControlLogic is the control loop driven once per telemetry snapshot
type ChargeControlLogic interface {
	Tick(ctx context.Context, telemetry domain.Telemetry) domain.TickResult
	Status() domain.ControllerStatus
	SetEnabled(enabled bool) bool
}
