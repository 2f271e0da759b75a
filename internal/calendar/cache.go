package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	logx "puasapush/pkg/logx"
)

const (
	DefaultTTL          = 24 * time.Hour
	DefaultFetchTimeout = 30 * time.Second
)

type CacheConfig struct {
	// Path of the JSON cache file. Empty keeps the cache in memory only.
	Path         string
	TTL          time.Duration
	FetchTimeout time.Duration
}

// Cache holds the observance window with a TTL and falls back to the last
// known window when a refresh fails.
type Cache struct {
	mu sync.Mutex

	cfg     CacheConfig
	fetcher Fetcher
	log     logx.Logger

	entry *Window
}

// NewCache builds the cache and loads the persisted window, if any.
func NewCache(cfg CacheConfig, fetcher Fetcher, log logx.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Cache{cfg: cfg, fetcher: fetcher, log: log}

	if path := strings.TrimSpace(cfg.Path); path != "" {
		w, err := readCacheFile(path)
		switch {
		case err == nil:
			c.entry = &w
			log.Debug("observance cache loaded", logx.String("start", w.StartDate.String()), logx.String("end", w.EndDate.String()))
		case errors.Is(err, errCorruptCacheFile):
			log.Warn("observance cache file ignored", logx.String("path", path), logx.Err(err))
		}
	}
	return c
}

// Get returns the observance window as of now.
//
// A fresh entry (younger than the TTL and covering now's year) is returned
// as-is. Otherwise one fetch is attempted; on failure the previous entry is
// returned with Stale set, and only when nothing is cached is an error
// (wrapping ErrFetch) returned.
func (c *Cache) Get(ctx context.Context, now time.Time) (Window, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entry != nil && c.freshLocked(now) {
		w := *c.entry
		w.Stale = false
		return w, nil
	}

	w, err := c.refreshLocked(ctx, now)
	if err == nil {
		return w, nil
	}
	if c.entry != nil {
		c.entry.Stale = true
		c.log.Warn("observance refresh failed; serving stale window",
			logx.String("start", c.entry.StartDate.String()),
			logx.String("end", c.entry.EndDate.String()),
			logx.Time("fetched_at", c.entry.FetchedAt),
			logx.Err(err),
		)
		return *c.entry, nil
	}
	return Window{}, err
}

// Peek returns the cached entry without triggering a fetch.
func (c *Cache) Peek() (Window, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return Window{}, false
	}
	return *c.entry, true
}

func (c *Cache) freshLocked(now time.Time) bool {
	return now.Sub(c.entry.FetchedAt) <= c.cfg.TTL && c.entry.Covers(now.Year())
}

func (c *Cache) refreshLocked(ctx context.Context, now time.Time) (Window, error) {
	fctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	r, err := c.fetcher.FetchWindow(fctx, now.Year())
	if err != nil {
		return Window{}, fmt.Errorf("%w: year %d: %v", ErrFetch, now.Year(), err)
	}
	if !r.valid() {
		return Window{}, fmt.Errorf("%w: invalid range %s..%s", ErrFetch, r.Start, r.End)
	}

	w := Window{
		StartDate: r.Start,
		EndDate:   r.End,
		FetchedAt: now,
		SourceURL: r.Source,
	}
	c.entry = &w
	if path := strings.TrimSpace(c.cfg.Path); path != "" {
		if err := writeCacheFile(path, w); err != nil {
			c.log.Warn("observance cache write failed", logx.String("path", path), logx.Err(err))
		}
	}
	c.log.Info("observance window refreshed",
		logx.String("start", w.StartDate.String()),
		logx.String("end", w.EndDate.String()),
		logx.Duration("took", time.Since(start)),
	)
	return w, nil
}
