package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("storage closed")
)

// Config configures storage.
type Config struct {
	Driver      string
	Path        string        // sqlite database file or file-store prefix
	DSN         string        // postgres only
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Keys is the Web Push credential pair of a subscription.
type Keys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Subscription is one push recipient.
//
// LastAnsweredDate is an ISO calendar date (YYYY-MM-DD); empty means the user
// never answered a check-in.
type Subscription struct {
	Endpoint         string    `json:"endpoint"`
	Keys             Keys      `json:"keys"`
	LastAnsweredDate string    `json:"last_answered_date,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// AnsweredOn reports whether the subscription already answered on date.
func (s Subscription) AnsweredOn(date string) bool {
	return s.LastAnsweredDate != "" && s.LastAnsweredDate == date
}

// Store is the persistence API used by the jobs, the push pipeline and the HTTP layer.
type Store interface {
	// ListAll returns every subscription. Order is unspecified.
	ListAll(ctx context.Context) ([]Subscription, error)
	// Upsert creates or replaces the credentials for endpoint.
	// An existing LastAnsweredDate is preserved.
	Upsert(ctx context.Context, endpoint string, keys Keys) error
	// MarkAnswered sets LastAnsweredDate; it reports false if endpoint is unknown.
	MarkAnswered(ctx context.Context, endpoint, date string) (bool, error)
	// Remove deletes endpoint. Removing an unknown endpoint is not an error.
	Remove(ctx context.Context, endpoint string) error
	Close() error
}
