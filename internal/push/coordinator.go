package push

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"puasapush/internal/storage"
	logx "puasapush/pkg/logx"
)

type CoordinatorConfig struct {
	// Workers bounds concurrent sends. Zero means 16.
	Workers int
	// RatePerSec caps sends per second. Zero disables the limiter.
	RatePerSec int
}

// Coordinator fans a payload out to many recipients.
type Coordinator struct {
	dispatcher *Dispatcher
	store      Remover
	log        logx.Logger

	workers int
	limiter *rate.Limiter
}

func NewCoordinator(cfg CoordinatorConfig, d *Dispatcher, store Remover, log logx.Logger) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = 16
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Coordinator{dispatcher: d, store: store, log: log, workers: cfg.Workers}
	if cfg.RatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return c
}

// Deliver dispatches payload to every recipient exactly once. A failure for
// one recipient never stops the others. Endpoints reported gone are removed
// from the store before Deliver returns.
func (c *Coordinator) Deliver(ctx context.Context, recipients []storage.Subscription, payload Payload) Result {
	var res Result
	if len(recipients) == 0 {
		return res
	}
	batch := uuid.NewString()
	log := c.log.With(logx.String("batch", batch), logx.String("tag", payload.Tag))

	body, err := payload.Encode()
	if err != nil {
		log.Error("push payload encode failed", logx.Err(err))
		res.Failed = len(recipients)
		return res
	}

	start := time.Now()
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(c.workers)
	for _, sub := range recipients {
		sub := sub
		g.Go(func() error {
			out := c.deliverOne(ctx, sub, body)
			pruned := false
			if out.PermanentFailure {
				if err := c.store.Remove(ctx, sub.Endpoint); err != nil {
					log.Warn("push prune failed", logx.String("endpoint", shortEndpoint(sub.Endpoint)), logx.Err(err))
				} else {
					pruned = true
				}
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case out.Succeeded:
				res.Success++
			default:
				res.Failed++
				if pruned {
					res.Pruned++
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	fields := []logx.Field{
		logx.Int("total", len(recipients)),
		logx.Int("success", res.Success),
		logx.Int("failed", res.Failed),
		logx.Int("pruned", res.Pruned),
		logx.Duration("dur", time.Since(start)),
	}
	if res.Failed > 0 {
		log.Warn("push batch finished with failures", fields...)
	} else {
		log.Info("push batch finished", fields...)
	}
	return res
}

func (c *Coordinator) deliverOne(ctx context.Context, sub storage.Subscription, body []byte) Outcome {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Outcome{RecipientID: sub.Endpoint, Err: err}
		}
	}
	out := c.dispatcher.Dispatch(ctx, sub, body)
	if out.Err != nil {
		c.log.Debug("push send failed",
			logx.String("endpoint", shortEndpoint(sub.Endpoint)),
			logx.Bool("permanent", out.PermanentFailure),
			logx.Err(out.Err),
		)
	}
	return out
}

func shortEndpoint(s string) string {
	if len(s) <= 50 {
		return s
	}
	return s[:50]
}
