package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"puasapush/internal/calendar"
	"puasapush/internal/jobs"
	"puasapush/internal/push"
	"puasapush/internal/storage"
)

type recordingTransport struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingTransport) Send(_ context.Context, sub storage.Subscription, _ []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sub.Endpoint)
	return nil
}

func (r *recordingTransport) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	for _, k := range []string{"VAPID_PUBLIC_KEY", "VAPID_PRIVATE_KEY", "FASTING_DB_PATH", "DATABASE_URL", "CORS_ORIGINS", "FRONTEND_BASE_URL"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	body := `{
  "logging": {"level": "error"},
  "scheduler": {"timezone": "Asia/Kuala_Lumpur", "spec": "*/10 * * * *"},
  "calendar": {"cache_path": "` + filepath.ToSlash(filepath.Join(dir, "ramadan.json")) + `"},
  "push": {"vapid_public_key": "pub", "vapid_private_key": "priv"},
  "storage": {"driver": "file", "path": "` + filepath.ToSlash(filepath.Join(dir, "subs")) + `"},
  "http": {"addr": "127.0.0.1:0"},
  "frontend_base_url": "https://puasa.example"` + extra + `
}`
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func fixedWindow() calendar.Fetcher {
	return calendar.FetcherFunc(func(context.Context, int) (calendar.Range, error) {
		return calendar.Range{
			Start: calendar.Date{Year: 2025, Month: 3, Day: 1},
			End:   calendar.Date{Year: 2025, Month: 3, Day: 30},
		}, nil
	})
}

func post(t *testing.T, h http.Handler, path, body string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestCheckinFlowEndToEnd(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kuala_Lumpur")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	now := time.Date(2025, 3, 5, 9, 15, 0, 0, loc)
	tr := &recordingTransport{}

	a, err := NewApp(writeConfig(t, ""),
		WithTransport(push.TransportFunc(tr.Send)),
		WithFetcher(fixedWindow()),
		WithClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	defer a.Stop(context.Background(), StopAppStop)

	h := a.Handler()
	if code := post(t, h, "/subscribe", `{"subscription":{"endpoint":"https://push.example/a","keys":{"p256dh":"p","auth":"a"}}}`); code != http.StatusOK {
		t.Fatalf("subscribe = %d", code)
	}

	if err := a.RunOnce(context.Background(), jobs.CheckinJobName); err != nil {
		t.Fatalf("RunOnce checkin: %v", err)
	}
	if got := tr.count(); got != 1 {
		t.Fatalf("sent = %d, want 1", got)
	}

	if code := post(t, h, "/checkin", `{"endpoint":"https://push.example/a","date":"2025-03-05","status":"fasting"}`); code != http.StatusOK {
		t.Fatalf("checkin = %d", code)
	}
	if err := a.RunOnce(context.Background(), jobs.CheckinJobName); err != nil {
		t.Fatalf("RunOnce checkin again: %v", err)
	}
	if got := tr.count(); got != 1 {
		t.Fatalf("answered subscriber was reminded again: sent = %d", got)
	}

	// Mid-observance the summary is not due.
	if err := a.RunOnce(context.Background(), jobs.SummaryJobName); err != nil {
		t.Fatalf("RunOnce summary: %v", err)
	}
	if got := tr.count(); got != 1 {
		t.Fatalf("summary fired early: sent = %d", got)
	}

	if err := a.RunOnce(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestStartStop(t *testing.T) {
	a, err := NewApp(writeConfig(t, ""),
		WithTransport(push.TransportFunc(func(context.Context, storage.Subscription, []byte) error { return nil })),
		WithFetcher(fixedWindow()),
	)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-a.Done():
		t.Fatalf("app stopped early: %v", a.Err())
	case <-time.After(100 * time.Millisecond):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Stop(ctx, StopAppStop); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-a.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	if err := a.Err(); err != nil {
		t.Fatalf("Err = %v", err)
	}
}

func TestNewAppRejectsBadWindows(t *testing.T) {
	_, err := NewApp(writeConfig(t, `,
  "checkin": {"windows": ["19:30-17:00"]}`))
	if err == nil || !strings.Contains(err.Error(), "checkin.windows") {
		t.Fatalf("err = %v, want checkin.windows error", err)
	}
}

func TestNewAppRejectsBadSchedule(t *testing.T) {
	path := writeConfig(t, "")
	b, _ := os.ReadFile(path)
	b = []byte(strings.Replace(string(b), `"*/10 * * * *"`, `"sometimes"`, 1))
	if err := os.WriteFile(path, b, 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if _, err := NewApp(path); err == nil || !strings.Contains(err.Error(), "scheduler.spec") {
		t.Fatalf("err = %v, want scheduler.spec error", err)
	}
}
