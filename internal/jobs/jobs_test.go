package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"puasapush/internal/calendar"
	"puasapush/internal/push"
	"puasapush/internal/storage"
	logx "puasapush/pkg/logx"
)

var myt = mustLoad("Asia/Kuala_Lumpur")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("MYT", 8*3600)
	}
	return loc
}

type memStore struct {
	subs []storage.Subscription
	err  error
}

func (m *memStore) ListAll(context.Context) ([]storage.Subscription, error) {
	if m.err != nil {
		return nil, m.err
	}
	return append([]storage.Subscription(nil), m.subs...), nil
}

type recordingDeliverer struct {
	mu      sync.Mutex
	batches [][]storage.Subscription
	payload []push.Payload
}

func (r *recordingDeliverer) Deliver(_ context.Context, recipients []storage.Subscription, p push.Payload) push.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, recipients)
	r.payload = append(r.payload, p)
	return push.Result{Success: len(recipients)}
}

func (r *recordingDeliverer) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

type fixedWindow struct {
	w   calendar.Window
	err error
}

func (f fixedWindow) Get(context.Context, time.Time) (calendar.Window, error) { return f.w, f.err }

func defaultWindows(t *testing.T) []ClockWindow {
	t.Helper()
	ws, err := ParseWindows([]string{"08:00-11:00", "13:00-16:00", "17:00-19:30"})
	if err != nil {
		t.Fatalf("ParseWindows: %v", err)
	}
	return ws
}

func at(s string) Clock {
	return func() time.Time {
		t, err := time.ParseInLocation("2006-01-02 15:04:05", s, myt)
		if err != nil {
			panic(err)
		}
		return t
	}
}

func TestCheckinScenario(t *testing.T) {
	t.Parallel()
	store := &memStore{subs: []storage.Subscription{
		{Endpoint: "A"},
		{Endpoint: "B", LastAnsweredDate: "2025-03-05"},
	}}
	d := &recordingDeliverer{}
	job := NewCheckinJob(CheckinConfig{Windows: defaultWindows(t), FrontendBaseURL: "https://puasa.example", Location: myt},
		store, d, at("2025-03-05 09:15:00"), logx.Nop())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d.calls() != 1 || len(d.batches[0]) != 1 || d.batches[0][0].Endpoint != "A" {
		t.Fatalf("batches = %+v", d.batches)
	}
	p := d.payload[0]
	if p.Tag != "checkin-2025-03-05" || p.URL != "https://puasa.example/?view=checkin&date=2025-03-05" {
		t.Fatalf("payload = %+v", p)
	}
}

func TestCheckinOutsideWindowsNeverDispatches(t *testing.T) {
	t.Parallel()
	ws := defaultWindows(t)
	store := &memStore{subs: []storage.Subscription{{Endpoint: "A"}}}

	start := time.Date(2025, 3, 5, 0, 0, 0, 0, myt)
	for i := 0; i < 24*6; i++ {
		now := start.Add(time.Duration(i) * 10 * time.Minute)
		d := &recordingDeliverer{}
		job := NewCheckinJob(CheckinConfig{Windows: ws, Location: myt}, store, d, func() time.Time { return now }, logx.Nop())
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("Run at %v: %v", now, err)
		}
		want := insideAny(ws, now)
		if (d.calls() == 1) != want {
			t.Fatalf("at %s dispatched=%v, inside=%v", now.Format("15:04"), d.calls() == 1, want)
		}
	}
}

func TestCheckinWindowBoundaries(t *testing.T) {
	t.Parallel()
	ws := defaultWindows(t)
	cases := map[string]bool{
		"07:59:59": false,
		"08:00:00": true,
		"11:00:00": true,
		"11:00:01": false,
		"12:50:00": false,
		"19:30:00": true,
		"19:30:01": false,
		"19:40:00": false,
	}
	for clock, want := range cases {
		now, _ := time.ParseInLocation("2006-01-02 15:04:05", "2025-03-05 "+clock, myt)
		if got := insideAny(ws, now); got != want {
			t.Fatalf("%s inside = %v, want %v", clock, got, want)
		}
	}
}

func TestCheckinAnsweredTodayIsNeverSelected(t *testing.T) {
	t.Parallel()
	store := &memStore{subs: []storage.Subscription{
		{Endpoint: "B", LastAnsweredDate: "2025-03-05"},
		{Endpoint: "C", LastAnsweredDate: "2025-03-05"},
	}}
	start := time.Date(2025, 3, 5, 8, 0, 0, 0, myt)
	d := &recordingDeliverer{}
	for i := 0; i < 70; i++ {
		now := start.Add(time.Duration(i) * 10 * time.Minute)
		job := NewCheckinJob(CheckinConfig{Windows: defaultWindows(t), Location: myt}, store, d, func() time.Time { return now }, logx.Nop())
		_ = job.Run(context.Background())
	}
	if d.calls() != 0 {
		t.Fatalf("dispatched %d batches to answered subscribers", d.calls())
	}

	// Yesterday's answer does not suppress today's reminder.
	store.subs[0].LastAnsweredDate = "2025-03-04"
	job := NewCheckinJob(CheckinConfig{Windows: defaultWindows(t), Location: myt}, store, d, at("2025-03-05 13:00:00"), logx.Nop())
	_ = job.Run(context.Background())
	if d.calls() != 1 || d.batches[0][0].Endpoint != "B" {
		t.Fatalf("batches = %+v", d.batches)
	}
}

func TestCheckinStoreErrorAbortsRun(t *testing.T) {
	t.Parallel()
	d := &recordingDeliverer{}
	job := NewCheckinJob(CheckinConfig{Windows: defaultWindows(t), Location: myt},
		&memStore{err: errors.New("database is locked")}, d, at("2025-03-05 09:00:00"), logx.Nop())
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected store error")
	}
	if d.calls() != 0 {
		t.Fatal("no dispatch on store error")
	}
}

func TestSummarySingleShot(t *testing.T) {
	t.Parallel()
	end, _ := calendar.ParseDate("2025-03-30")
	src := fixedWindow{w: calendar.Window{StartDate: calendar.Date{Year: 2025, Month: 3, Day: 1}, EndDate: end}}
	store := &memStore{subs: []storage.Subscription{{Endpoint: "A", LastAnsweredDate: "2025-03-30"}, {Endpoint: "B"}}}

	var fired []time.Time
	start := time.Date(2025, 3, 30, 0, 0, 0, 0, myt)
	for now := start; now.Before(start.Add(7 * 24 * time.Hour)); now = now.Add(10 * time.Minute) {
		now := now
		d := &recordingDeliverer{}
		job := NewSummaryJob(SummaryConfig{FrontendBaseURL: "https://puasa.example", Location: myt}, store, src, d, func() time.Time { return now }, logx.Nop())
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if d.calls() > 0 {
			fired = append(fired, now)
			if len(d.batches[0]) != 2 {
				t.Fatalf("summary must go to every subscriber, got %d", len(d.batches[0]))
			}
			if p := d.payload[0]; p.Tag != "summary-2025-03-30" || p.URL != "https://puasa.example/?view=summary" {
				t.Fatalf("payload = %+v", p)
			}
		}
	}
	want := time.Date(2025, 4, 3, 0, 0, 0, 0, myt)
	if len(fired) != 1 || !fired[0].Equal(want) {
		t.Fatalf("fired at %v, want exactly %v", fired, want)
	}
}

func TestSummaryDueWindowBounds(t *testing.T) {
	t.Parallel()
	end, _ := calendar.ParseDate("2025-03-30")
	src := fixedWindow{w: calendar.Window{EndDate: end}}
	store := &memStore{subs: []storage.Subscription{{Endpoint: "A"}}}
	cases := map[string]bool{
		"2025-04-02 23:59:58": false,
		"2025-04-02 23:59:59": true,
		"2025-04-03 00:09:58": true,
		"2025-04-03 00:09:59": false,
		"2025-04-03 00:10:00": false,
	}
	for clock, want := range cases {
		d := &recordingDeliverer{}
		_ = NewSummaryJob(SummaryConfig{Location: myt}, store, src, d, at(clock), logx.Nop()).Run(context.Background())
		if (d.calls() == 1) != want {
			t.Fatalf("%s dispatched = %v, want %v", clock, d.calls() == 1, want)
		}
	}
}

func TestSummarySkipsWithoutWindow(t *testing.T) {
	t.Parallel()
	d := &recordingDeliverer{}
	src := fixedWindow{err: calendar.ErrFetch}
	job := NewSummaryJob(SummaryConfig{Location: myt}, &memStore{subs: []storage.Subscription{{Endpoint: "A"}}}, src, d, at("2025-04-03 00:00:00"), logx.Nop())
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("cache failure must not fail the tick: %v", err)
	}
	if d.calls() != 0 {
		t.Fatal("no dispatch without a window")
	}
}

func TestParseWindowErrors(t *testing.T) {
	t.Parallel()
	for _, bad := range []string{"08:00", "11:00-08:00", "8-9", "08:00-25:00"} {
		if _, err := ParseWindow(bad); err == nil {
			t.Fatalf("ParseWindow(%q): expected error", bad)
		}
	}
	w, err := ParseWindow(" 17:00-19:30 ")
	if err != nil || w.String() != "17:00-19:30" {
		t.Fatalf("ParseWindow = %v, %v", w, err)
	}
}
