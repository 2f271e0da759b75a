package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/coreos/go-systemd/v22/daemon"

	"puasapush/internal/app"
	"puasapush/internal/config"
	logx "puasapush/pkg/logx"
)

func main() {
	var (
		cfgPath string
		envPath string
		runJob  string
	)
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config json/yaml")
	flag.StringVar(&envPath, "env", ".env", "optional dotenv file loaded before the config")
	flag.StringVar(&runJob, "run", "", "run one job by name and exit (checkin-every-10-min, summary-72h-post-ramadan)")
	flag.Parse()

	bootLog := logx.NewConsole("info").With(logx.String("comp", "main"))

	if err := config.LoadDotEnv(envPath); err != nil {
		bootLog.Error("load env failed", logx.Err(err))
		os.Exit(1)
	}

	a, err := app.NewApp(cfgPath)
	if err != nil {
		bootLog.Error("init failed", logx.Err(err))
		os.Exit(1)
	}

	if runJob != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		err := a.RunOnce(ctx, runJob)
		cancel()
		_ = a.Stop(context.Background(), app.StopRunOnce)
		if err != nil {
			bootLog.Error("job failed", logx.String("job", runJob), logx.Err(err))
			os.Exit(1)
		}
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := a.Start(context.Background()); err != nil {
		bootLog.Error("start failed", logx.Err(err))
		os.Exit(1)
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	reason := app.StopUnknown
	select {
	case sig := <-sigCh:
		reason = app.StopSIGINT
		if sig == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-a.Done():
		reason = app.StopFatalError
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = a.Stop(ctx, reason)

	if reason == app.StopFatalError {
		if err := a.Err(); err != nil {
			bootLog.Error("stopped on fatal error", logx.Err(err))
		}
		os.Exit(1)
	}
}
