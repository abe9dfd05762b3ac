package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/fusiond/internal/builder"
	"github.com/danmuck/fusiond/internal/config"
	"github.com/danmuck/fusiond/internal/logging"
	"github.com/danmuck/fusiond/internal/nuctl"
	"github.com/danmuck/fusiond/internal/reconciler"
	"github.com/danmuck/fusiond/internal/scheduler"
	"github.com/danmuck/fusiond/internal/tools"
)

func main() {
	logger := logging.InitLogger("fusiond")

	path := "fusiond.toml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration unusable")
	}

	gateway := nuctl.New(nuctl.Config{
		Namespace:  cfg.Nuctl.Namespace,
		Registry:   cfg.Nuctl.Registry,
		Kubeconfig: cfg.Nuctl.Kubeconfig,
		Platform:   cfg.Nuctl.Platform,
	}, tools.ExecRunner{})
	// An unreachable platform CLI at startup is fatal.
	if err := gateway.Probe(); err != nil {
		logger.Fatal().Err(err).Msg("deployment gateway unavailable")
	}

	rec := reconciler.New(gateway, builder.NewFuser(cfg.Build.Dir), cfg.Server.Address)

	var sched *scheduler.Scheduler
	if cfg.Schedule.Path != "" {
		strategy, err := scheduler.LoadStaticStrategy(cfg.Schedule.Path)
		if err != nil {
			logger.Fatal().Err(err).Msg("reconfiguration schedule unusable")
		}
		sched = scheduler.New(rec, strategy)
		sched.Start()
		logger.Info().Str("schedule", cfg.Schedule.Path).Msg("reconfiguration scheduler started")
	}

	logger.Info().Str("address", cfg.Server.Address).Msg("fusiond running")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	if sched != nil {
		sched.Stop()
	}
	logger.Info().Msg("fusiond shut down")
}
