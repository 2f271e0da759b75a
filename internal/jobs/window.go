package jobs

import (
	"fmt"
	"strings"
	"time"

	"puasapush/internal/task/scheduler"
)

// ClockWindow is an inclusive time-of-day range, in seconds since midnight.
type ClockWindow struct {
	Start int
	End   int
}

// ParseWindow parses "HH:MM-HH:MM".
func ParseWindow(s string) (ClockWindow, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return ClockWindow{}, fmt.Errorf("invalid window %q, expected HH:MM-HH:MM", s)
	}
	fh, fm, err := scheduler.ParseHHMM(from)
	if err != nil {
		return ClockWindow{}, fmt.Errorf("window %q: %w", s, err)
	}
	th, tm, err := scheduler.ParseHHMM(to)
	if err != nil {
		return ClockWindow{}, fmt.Errorf("window %q: %w", s, err)
	}
	w := ClockWindow{Start: fh*3600 + fm*60, End: th*3600 + tm*60}
	if w.Start > w.End {
		return ClockWindow{}, fmt.Errorf("window %q ends before it starts", s)
	}
	return w, nil
}

func ParseWindows(specs []string) ([]ClockWindow, error) {
	out := make([]ClockWindow, 0, len(specs))
	for _, s := range specs {
		w, err := ParseWindow(s)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// Contains reports whether t's wall clock (at second precision) is in the window.
func (w ClockWindow) Contains(t time.Time) bool {
	sec := t.Hour()*3600 + t.Minute()*60 + t.Second()
	return w.Start <= sec && sec <= w.End
}

func (w ClockWindow) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.Start/3600, w.Start%3600/60, w.End/3600, w.End%3600/60)
}

func insideAny(ws []ClockWindow, t time.Time) bool {
	for _, w := range ws {
		if w.Contains(t) {
			return true
		}
	}
	return false
}
