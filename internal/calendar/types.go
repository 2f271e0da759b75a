package calendar

import (
	"context"
	"errors"
	"time"
)

// ErrFetch wraps every failure of the upstream date-window source.
var ErrFetch = errors.New("observance window fetch failed")

// Range is an observance start/end date pair, as returned by a Fetcher.
type Range struct {
	Start  Date
	End    Date
	Source string
}

func (r Range) valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && !r.Start.After(r.End)
}

// Fetcher obtains the observance window for a year from an upstream source.
type Fetcher interface {
	FetchWindow(ctx context.Context, year int) (Range, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, year int) (Range, error)

func (f FetcherFunc) FetchWindow(ctx context.Context, year int) (Range, error) { return f(ctx, year) }

// Window is the cached observance window plus provenance.
// This is also the on-disk cache file layout.
type Window struct {
	StartDate Date      `json:"startDate"`
	EndDate   Date      `json:"endDate"`
	FetchedAt time.Time `json:"fetchedAt"`
	Stale     bool      `json:"stale"`
	SourceURL string    `json:"sourceUrl"`
}

// Covers reports whether either boundary falls in the given year.
func (w Window) Covers(year int) bool {
	return w.StartDate.Year == year || w.EndDate.Year == year
}
