package jobs

import (
	"context"
	"fmt"
	"time"

	"puasapush/internal/calendar"
	"puasapush/internal/push"
	logx "puasapush/pkg/logx"
)

type SummaryConfig struct {
	FrontendBaseURL string
	Location        *time.Location
	// Cadence is the eligibility window after the due time; it should equal
	// the scheduler tick period so exactly one tick qualifies.
	Cadence time.Duration
}

// SummaryJob sends the post-observance summary prompt once. A missed due
// tick is not caught up.
type SummaryJob struct {
	cfg     SummaryConfig
	store   Lister
	window  WindowSource
	deliver Deliverer
	now     Clock
	log     logx.Logger
}

func NewSummaryJob(cfg SummaryConfig, store Lister, window WindowSource, d Deliverer, now Clock, log logx.Logger) *SummaryJob {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Cadence <= 0 {
		cfg.Cadence = DefaultCadence
	}
	if now == nil {
		now = time.Now
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &SummaryJob{cfg: cfg, store: store, window: window, deliver: d, now: now, log: log}
}

// SummaryDue returns the instant the summary for an observance ending on end becomes due.
func SummaryDue(end calendar.Date, loc *time.Location) time.Time {
	return end.At(23, 59, 59, loc).Add(SummaryDelay)
}

func (j *SummaryJob) Run(ctx context.Context) error {
	now := j.now().In(j.cfg.Location)
	w, err := j.window.Get(ctx, now)
	if err != nil {
		j.log.Warn("summary: observance window unavailable; skipping", logx.Err(err))
		return nil
	}

	due := SummaryDue(w.EndDate, j.cfg.Location)
	if now.Before(due) || !now.Before(due.Add(j.cfg.Cadence)) {
		return nil
	}

	subs, err := j.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("summary: list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	res := j.deliver.Deliver(ctx, subs, SummaryPayload(j.cfg.FrontendBaseURL, w.EndDate.String()))
	j.log.Info("summary prompt sent",
		logx.String("end_date", w.EndDate.String()),
		logx.Bool("stale_window", w.Stale),
		logx.Int("success", res.Success),
		logx.Int("failed", res.Failed),
	)
	return nil
}

func SummaryPayload(frontend, endDate string) push.Payload {
	return push.Payload{
		Title: "Ringkasan Ramadan",
		Body:  "Semak ringkasan puasa anda dan rancang ganti sebelum Ramadan seterusnya.",
		URL:   frontend + "/?view=summary",
		Tag:   "summary-" + endDate,
	}
}
