package app

import (
	"time"

	"puasapush/internal/calendar"
	"puasapush/internal/push"
)

// Option overrides a collaborator built from config.
type Option func(*options)

type options struct {
	transport push.Transport
	fetcher   calendar.Fetcher
	now       func() time.Time
}

// WithTransport replaces the Web Push transport.
func WithTransport(t push.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithFetcher replaces the observance calendar source.
func WithFetcher(f calendar.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithClock replaces the wall clock used by the jobs and the HTTP layer.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}
