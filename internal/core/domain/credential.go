package domain

import (
	"time"
)

const ISO8601_MILLIS = "2006-01-02T15:04:05.000Z07:00"

// CredentialRecord is the persisted OAuth token pair together with the
// daily command counter. Both are written as one document.
type CredentialRecord struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IdToken      string `json:"id_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	DailyCounter int    `json:"dailyCounter"`
	LastUpdate   string `json:"lastUpdate"`
}

func (r CredentialRecord) ExpiresAtTime() time.Time {
	return time.UnixMilli(r.ExpiresAt)
}

// LastUpdateTime parses lastUpdate. ok is false when the field is empty or malformed.
func (r CredentialRecord) LastUpdateTime() (time.Time, bool) {
	if r.LastUpdate == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, r.LastUpdate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Touch stamps the record with the counter and the update time
func (r CredentialRecord) Touch(counter int, now time.Time) CredentialRecord {
	r.DailyCounter = counter
	r.LastUpdate = now.UTC().Format(ISO8601_MILLIS)
	return r
}
