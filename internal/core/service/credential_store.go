package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/solarcharge2mqtt/internal/core/domain"
	"github.com/berfenger/solarcharge2mqtt/internal/core/port"

	"go.uber.org/zap"
)

var ErrCredentialsNotLoaded = errors.New("credential record not loaded")

// reauthorizationError is implemented by refresh errors that need a new authorization-code flow
type reauthorizationError interface {
	ReauthorizationRequired() bool
}

// CredentialStore caches the persisted credential record and keeps the access token fresh
type CredentialStore struct {
	repo      port.CredentialRepository
	refresher port.TokenRefresher
	notifier  port.Notifier
	clock     port.Clock
	margin    time.Duration
	record    domain.CredentialRecord
	loaded    bool
	logger    *zap.Logger
}

func NewCredentialStore(repo port.CredentialRepository, refresher port.TokenRefresher, notifier port.Notifier,
	clock port.Clock, margin time.Duration, logger *zap.Logger) *CredentialStore {
	return &CredentialStore{
		repo:      repo,
		refresher: refresher,
		notifier:  notifier,
		clock:     clock,
		margin:    margin,
		logger:    logger,
	}
}

// Load replaces the cached record with the persisted one
func (s *CredentialStore) Load(ctx context.Context) (domain.CredentialRecord, error) {
	rec, err := s.repo.Load(ctx)
	if err != nil {
		return domain.CredentialRecord{}, err
	}
	s.record = rec
	s.loaded = true
	return rec, nil
}

func (s *CredentialStore) Record() domain.CredentialRecord {
	return s.record
}

// GetValid returns the cached access token while now < expiresAt - margin, refreshing it otherwise.
// counter is merged into the record written after a refresh.
func (s *CredentialStore) GetValid(ctx context.Context, counter int) (string, error) {
	if !s.loaded {
		return "", ErrCredentialsNotLoaded
	}
	now := s.clock.Now()
	if now.Before(s.record.ExpiresAtTime().Add(-s.margin)) {
		return s.record.AccessToken, nil
	}
	return s.refresh(ctx, counter, now)
}

func (s *CredentialStore) refresh(ctx context.Context, counter int, now time.Time) (string, error) {
	s.logger.Info("charge_control@token: access token expires soon, refreshing",
		zap.Time("expires_at", s.record.ExpiresAtTime()))
	s.notifier.Notify("Access token expires soon, refreshing")

	resp, err := s.refresher.Refresh(ctx, s.record.RefreshToken)
	if err != nil {
		s.logger.Error("charge_control@token: refresh failed", zap.Error(err))
		s.notifier.Notify(fmt.Sprintf("Token refresh failed: %s", err))
		var reauth reauthorizationError
		if errors.As(err, &reauth) && reauth.ReauthorizationRequired() {
			s.notifier.Notify("Refresh token expired or invalid, OAuth authorization required")
		}
		return "", fmt.Errorf("token refresh: %w", err)
	}

	refreshToken := resp.RefreshToken
	if refreshToken == "" {
		// refresh tokens are not always rotated
		refreshToken = s.record.RefreshToken
	}
	rec := domain.CredentialRecord{
		AccessToken:  resp.AccessToken,
		RefreshToken: refreshToken,
		IdToken:      resp.IdToken,
		ExpiresIn:    resp.ExpiresIn,
		ExpiresAt:    now.Add(time.Duration(resp.ExpiresIn) * time.Second).UnixMilli(),
	}.Touch(counter, now)
	s.record = rec

	if err := s.repo.Save(ctx, rec); err != nil {
		s.logger.Error("charge_control@token: could not persist refreshed token", zap.Error(err))
		s.notifier.Notify(fmt.Sprintf("Refreshed token could not be saved: %s", err))
	}

	s.logger.Info("charge_control@token: token refreshed", zap.Time("expires_at", rec.ExpiresAtTime()))
	s.notifier.Notify(fmt.Sprintf("Token refreshed, expires at %s", rec.ExpiresAtTime().UTC().Format(time.RFC3339)))
	return rec.AccessToken, nil
}

// Persist writes the cached record merged with counter and the current time
func (s *CredentialStore) Persist(ctx context.Context, counter int) error {
	if !s.loaded {
		return ErrCredentialsNotLoaded
	}
	s.record = s.record.Touch(counter, s.clock.Now())
	return s.repo.Save(ctx, s.record)
}
