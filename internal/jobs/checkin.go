package jobs

import (
	"context"
	"fmt"
	"time"

	"puasapush/internal/push"
	"puasapush/internal/storage"
	logx "puasapush/pkg/logx"
)

type CheckinConfig struct {
	Windows         []ClockWindow
	FrontendBaseURL string
	Location        *time.Location
}

// CheckinJob reminds subscribers who have not answered today's check-in.
type CheckinJob struct {
	cfg     CheckinConfig
	store   Lister
	deliver Deliverer
	now     Clock
	log     logx.Logger
}

func NewCheckinJob(cfg CheckinConfig, store Lister, d Deliverer, now Clock, log logx.Logger) *CheckinJob {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if now == nil {
		now = time.Now
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &CheckinJob{cfg: cfg, store: store, deliver: d, now: now, log: log}
}

// Run performs one tick. Outside the windows it does nothing; a store error
// aborts the tick and is returned.
func (j *CheckinJob) Run(ctx context.Context) error {
	now := j.now().In(j.cfg.Location)
	if !insideAny(j.cfg.Windows, now) {
		return nil
	}

	today := now.Format("2006-01-02")
	subs, err := j.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("checkin: list subscriptions: %w", err)
	}
	pending := make([]storage.Subscription, 0, len(subs))
	for _, s := range subs {
		if !s.AnsweredOn(today) {
			pending = append(pending, s)
		}
	}
	if len(pending) == 0 {
		j.log.Debug("checkin: everyone answered", logx.String("date", today), logx.Int("subscriptions", len(subs)))
		return nil
	}

	res := j.deliver.Deliver(ctx, pending, CheckinPayload(j.cfg.FrontendBaseURL, today))
	j.log.Info("checkin reminders sent",
		logx.String("date", today),
		logx.Int("pending", len(pending)),
		logx.Int("success", res.Success),
		logx.Int("failed", res.Failed),
	)
	return nil
}

// CheckinPayload builds the reminder for date (YYYY-MM-DD). The tag collapses
// repeated reminders of one day into a single visible notification.
func CheckinPayload(frontend, date string) push.Payload {
	return push.Payload{
		Title: "Check-in puasa",
		Body:  "Sudah jawab check-in puasa hari ini?",
		URL:   fmt.Sprintf("%s/?view=checkin&date=%s", frontend, date),
		Tag:   "checkin-" + date,
	}
}
