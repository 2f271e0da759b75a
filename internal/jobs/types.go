package jobs

import (
	"context"
	"time"

	"puasapush/internal/calendar"
	"puasapush/internal/push"
	"puasapush/internal/storage"
)

const (
	CheckinJobName = "checkin-every-10-min"
	SummaryJobName = "summary-72h-post-ramadan"

	// SummaryDelay is how long after the last observance day the summary is due.
	SummaryDelay = 72 * time.Hour
	// DefaultCadence is the scheduler tick period; the summary is eligible for one tick.
	DefaultCadence = 10 * time.Minute
)

// Lister reads every subscription.
type Lister interface {
	ListAll(ctx context.Context) ([]storage.Subscription, error)
}

// Deliverer fans a payload out to recipients.
type Deliverer interface {
	Deliver(ctx context.Context, recipients []storage.Subscription, payload push.Payload) push.Result
}

// WindowSource yields the observance window.
type WindowSource interface {
	Get(ctx context.Context, now time.Time) (calendar.Window, error)
}

// Clock returns the current time.
type Clock func() time.Time
