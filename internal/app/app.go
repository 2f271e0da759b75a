package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"puasapush/internal/calendar"
	"puasapush/internal/config"
	"puasapush/internal/httpapi"
	"puasapush/internal/jobs"
	"puasapush/internal/observability/pprof"
	"puasapush/internal/push"
	"puasapush/internal/runtime/supervisor"
	"puasapush/internal/storage"
	"puasapush/internal/task/scheduler"
	logx "puasapush/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store storage.Store
	cache *calendar.Cache
	coord *push.Coordinator
	sched *scheduler.Service
	http  *httpapi.Server
	pprof *pprof.Service
}

// NewApp loads the config at cfgPath and wires every component. Nothing runs
// until Start.
func NewApp(cfgPath string, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.now == nil {
		o.now = time.Now
	}

	cfgm := config.NewConfigManager(cfgPath)
	cfgm.SetValidator(func(ctx context.Context, cfg *config.Config) error {
		if err := config.Validate(ctx, cfg); err != nil {
			return err
		}
		return validateRuntime(cfg)
	})
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{cfgPath: cfgPath, cfgm: cfgm, log: log.With(logx.String("comp", "app")), logs: logSvc}
	if err := a.wire(cfg, o); err != nil {
		if a.store != nil {
			_ = a.store.Close()
		}
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(cfg *config.Config, o options) error {
	root := a.logs.Logger()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return err
	}
	store, err := storage.Open(sc, root.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.store = store
	a.log.Info("storage enabled", logx.String("driver", sc.Driver))

	cc, err := mapCalendarConfig(cfg)
	if err != nil {
		return err
	}
	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = newCalendarFetcher(cfg, cc.FetchTimeout)
	}
	a.cache = calendar.NewCache(cc, fetcher, root.With(logx.String("comp", "calendar")))

	transport := o.transport
	if transport == nil {
		transport = newWebPush(cfg)
	}
	sendTimeout, err := mapSendTimeout(cfg)
	if err != nil {
		return err
	}
	a.coord = push.NewCoordinator(push.CoordinatorConfig{
		Workers:    cfg.Push.Workers,
		RatePerSec: cfg.Push.RatePerSec,
	}, push.NewDispatcher(transport, sendTimeout), store, root.With(logx.String("comp", "push")))

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return err
	}
	a.sched = scheduler.New(schedCfg, root.With(logx.String("comp", "scheduler")))
	loc := a.sched.Location()

	windows, err := mapWindows(cfg)
	if err != nil {
		return err
	}
	cadence, err := a.sched.Period(cfg.Scheduler.Spec, o.now())
	if err != nil {
		return fmt.Errorf("scheduler.spec: %w", err)
	}

	jobLog := root.With(logx.String("comp", "jobs"))
	checkin := jobs.NewCheckinJob(jobs.CheckinConfig{
		Windows:         windows,
		FrontendBaseURL: cfg.FrontendBaseURL,
		Location:        loc,
	}, store, a.coord, o.now, jobLog.With(logx.String("job", jobs.CheckinJobName)))
	summary := jobs.NewSummaryJob(jobs.SummaryConfig{
		FrontendBaseURL: cfg.FrontendBaseURL,
		Location:        loc,
		Cadence:         cadence,
	}, store, a.cache, a.coord, o.now, jobLog.With(logx.String("job", jobs.SummaryJobName)))

	if _, err := a.sched.AddSchedule(jobs.CheckinJobName, cfg.Scheduler.Spec, 0, checkin.Run); err != nil {
		return err
	}
	if _, err := a.sched.AddSchedule(jobs.SummaryJobName, cfg.Scheduler.Spec, 0, summary.Run); err != nil {
		return err
	}

	srv, err := httpapi.New(httpapi.Config{
		Addr:        cfg.HTTP.Addr,
		CORSOrigins: cfg.HTTP.CORSOrigins,
	}, httpapi.Deps{
		Store:     store,
		Window:    a.cache,
		Scheduler: a.sched,
		Public: httpapi.PublicConfig{
			Timezone:        loc.String(),
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
			FrontendBaseURL: cfg.FrontendBaseURL,
		},
		Now: o.now,
	}, root.With(logx.String("comp", "http")))
	if err != nil {
		return err
	}
	a.http = srv
	a.pprof = pprof.New(mapPprofConfig(cfg), root.With(logx.String("comp", "pprof")))
	return nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Handler exposes the HTTP router.
func (a *App) Handler() http.Handler {
	return a.http.Handler()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
	} else {
		a.log.Warn("scheduler disabled; reminders will not be sent")
	}

	a.sup.Go("http", a.http.Run)
	if a.pprof.Enabled() {
		// Profiling is optional; failures restart it without stopping the app.
		a.sup.GoRestart("pprof", a.pprof.Run, 500*time.Millisecond, 10*time.Second)
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		a.reloadLoop(c, sub)
		return nil
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch, time.Second, 30*time.Second)

	a.log.Info("app started")
	return nil
}

// RunOnce executes the named job immediately under ctx without starting the
// scheduler loop.
func (a *App) RunOnce(ctx context.Context, name string) error {
	ran, err := a.sched.RunNow(ctx, name)
	if err != nil {
		return err
	}
	if !ran {
		return fmt.Errorf("job %q not found or already running", name)
	}
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}

			sections, _ := config.SummarizeConfigChange(lastApplied, newCfg)
			lastApplied = newCfg
			if len(sections) == 0 {
				a.log.Debug("config reload received, but no effective changes detected")
				continue
			}
			if pending := config.RestartRequired(sections); len(pending) > 0 {
				a.log.Warn("config changed; restart required for changes to take effect",
					logx.String("sections", strings.Join(pending, ",")))
			}
			a.logs.Apply(mapLogConfig(newCfg))
			a.log.Debug("logging config applied", logx.String("level", newCfg.Logging.Level))
		}
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		_ = a.closeStorage()
		if a.logs != nil {
			_ = a.logs.Close()
		}
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel first so the HTTP server and watchers start unwinding immediately.
	a.sup.Cancel()

	// step bounds each shutdown stage so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("scheduler", 5*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("supervisor", 5*time.Second, func(c context.Context) error {
		err := a.sup.Wait(c)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	step("storage", 2*time.Second, func(context.Context) error { return a.closeStorage() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func (a *App) closeStorage() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}
