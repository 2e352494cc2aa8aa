package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/berfenger/solarcharge2mqtt/internal/core/domain"
	"github.com/berfenger/solarcharge2mqtt/internal/core/port"
)

type fakeClock struct {
	mtx sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type fakeIssuer struct {
	calls  []int
	tokens []string
	err    error
}

func (f *fakeIssuer) SetChargingAmps(_ context.Context, accessToken string, amps int) error {
	f.calls = append(f.calls, amps)
	f.tokens = append(f.tokens, accessToken)
	return f.err
}

type fakeRefresher struct {
	resp  *port.TokenResponse
	err   error
	calls []string
}

func (f *fakeRefresher) Refresh(_ context.Context, refreshToken string) (*port.TokenResponse, error) {
	f.calls = append(f.calls, refreshToken)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type memoryRepository struct {
	record  domain.CredentialRecord
	loadErr error
	saveErr error
	saved   []domain.CredentialRecord
}

func (r *memoryRepository) Load(context.Context) (domain.CredentialRecord, error) {
	if r.loadErr != nil {
		return domain.CredentialRecord{}, r.loadErr
	}
	return r.record, nil
}

func (r *memoryRepository) Save(_ context.Context, record domain.CredentialRecord) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.record = record
	r.saved = append(r.saved, record)
	return nil
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Notify(text string) {
	n.messages = append(n.messages, text)
}

type reauthError struct{}

func (reauthError) Error() string {
	return "invalid_grant"
}

func (reauthError) ReauthorizationRequired() bool {
	return true
}

var errCommandRejected = errors.New("command rejected")
