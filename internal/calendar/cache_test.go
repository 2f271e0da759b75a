package calendar

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	logx "puasapush/pkg/logx"
)

var kl = time.FixedZone("MYT", 8*3600)

type fakeFetcher struct {
	calls atomic.Int32
	r     Range
	err   error
}

func (f *fakeFetcher) FetchWindow(_ context.Context, year int) (Range, error) {
	f.calls.Add(1)
	if f.err != nil {
		return Range{}, f.err
	}
	return f.r, nil
}

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func seedCache(t *testing.T, path string, w Window) {
	t.Helper()
	if err := writeCacheFile(path, w); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
}

func TestCacheFreshness(t *testing.T) {
	t.Parallel()
	fetchedAt := time.Date(2025, 3, 1, 8, 0, 0, 0, kl)

	cases := []struct {
		name      string
		fetchedAt time.Time
		now       time.Time
		wantFetch bool
	}{
		{"within ttl", fetchedAt, fetchedAt.Add(23*time.Hour + 59*time.Minute), false},
		{"exactly ttl", fetchedAt, fetchedAt.Add(24 * time.Hour), false},
		{"past ttl", fetchedAt, fetchedAt.Add(25 * time.Hour), true},
		{"new year within ttl", time.Date(2025, 12, 31, 23, 0, 0, 0, kl), time.Date(2026, 1, 1, 0, 10, 0, 0, kl), true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "cache.json")
			seedCache(t, path, Window{
				StartDate: mustDate(t, "2025-03-01"),
				EndDate:   mustDate(t, "2025-03-30"),
				FetchedAt: tc.fetchedAt,
			})
			f := &fakeFetcher{r: Range{Start: mustDate(t, "2025-03-02"), End: mustDate(t, "2025-03-31")}}
			c := NewCache(CacheConfig{Path: path}, f, logx.Nop())

			w, err := c.Get(context.Background(), tc.now)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got := f.calls.Load() == 1; got != tc.wantFetch {
				t.Fatalf("fetched = %v, want %v", got, tc.wantFetch)
			}
			if w.Stale {
				t.Fatal("window should not be stale")
			}
			if tc.wantFetch && !w.FetchedAt.Equal(tc.now) {
				t.Fatalf("FetchedAt = %v, want %v", w.FetchedAt, tc.now)
			}
		})
	}
}

func TestCacheStaleFallback(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "cache.json")
	fetchedAt := time.Date(2025, 2, 1, 8, 0, 0, 0, kl)
	seedCache(t, path, Window{
		StartDate: mustDate(t, "2025-03-01"),
		EndDate:   mustDate(t, "2025-03-30"),
		FetchedAt: fetchedAt,
	})
	f := &fakeFetcher{err: errors.New("connection refused")}
	c := NewCache(CacheConfig{Path: path}, f, logx.Nop())

	w, err := c.Get(context.Background(), time.Date(2025, 3, 5, 9, 0, 0, 0, kl))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !w.Stale || w.StartDate.String() != "2025-03-01" || w.EndDate.String() != "2025-03-30" {
		t.Fatalf("window = %+v", w)
	}
	if !w.FetchedAt.Equal(fetchedAt) {
		t.Fatalf("FetchedAt changed: %v", w.FetchedAt)
	}

	// The file keeps the last good fetch.
	onDisk, err := readCacheFile(path)
	if err != nil {
		t.Fatalf("readCacheFile: %v", err)
	}
	if onDisk.Stale {
		t.Fatal("stale flag must not be persisted")
	}
}

func TestCacheNoDataAndFetchFailure(t *testing.T) {
	t.Parallel()
	for _, body := range []string{"", "{not json", `{"startDate":"2025-03-30","endDate":"2025-03-01","fetchedAt":"2025-03-01T00:00:00Z"}`} {
		dir := t.TempDir()
		path := filepath.Join(dir, "cache.json")
		if body != "" {
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
		}
		c := NewCache(CacheConfig{Path: path}, &fakeFetcher{err: errors.New("timeout")}, logx.Nop())
		_, err := c.Get(context.Background(), time.Date(2025, 3, 5, 9, 0, 0, 0, kl))
		if !errors.Is(err, ErrFetch) {
			t.Fatalf("body %q: err = %v, want ErrFetch", body, err)
		}
		if _, ok := c.Peek(); ok {
			t.Fatalf("body %q: nothing should be cached", body)
		}
	}
}

func TestCacheRejectsInvertedRange(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{r: Range{Start: mustDate(t, "2025-03-30"), End: mustDate(t, "2025-03-01")}}
	c := NewCache(CacheConfig{}, f, logx.Nop())
	if _, err := c.Get(context.Background(), time.Date(2025, 3, 5, 9, 0, 0, 0, kl)); !errors.Is(err, ErrFetch) {
		t.Fatalf("err = %v, want ErrFetch", err)
	}
}

func TestCachePersistsRefresh(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	now := time.Date(2025, 3, 5, 9, 0, 0, 0, kl)
	f := &fakeFetcher{r: Range{Start: mustDate(t, "2025-03-01"), End: mustDate(t, "2025-03-30"), Source: "test"}}

	if _, err := NewCache(CacheConfig{Path: path}, f, logx.Nop()).Get(context.Background(), now); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind: %v", err)
	}

	// A new cache on the same file serves without fetching.
	f2 := &fakeFetcher{err: errors.New("must not be called")}
	w, err := NewCache(CacheConfig{Path: path}, f2, logx.Nop()).Get(context.Background(), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if f2.calls.Load() != 0 || w.SourceURL != "test" || w.EndDate.String() != "2025-03-30" {
		t.Fatalf("reloaded window = %+v (calls=%d)", w, f2.calls.Load())
	}
}

func TestDateJSONAndOrdering(t *testing.T) {
	t.Parallel()
	a := mustDate(t, "2025-03-01")
	b := mustDate(t, "2025-03-30")
	if !a.Before(b) || !b.After(a) || a.After(b) {
		t.Fatal("ordering mismatch")
	}
	raw, err := a.MarshalJSON()
	if err != nil || string(raw) != `"2025-03-01"` {
		t.Fatalf("MarshalJSON = %s, %v", raw, err)
	}
	if _, err := ParseDate("2025-3-1"); err == nil {
		t.Fatal("expected strict ISO parsing")
	}
}
