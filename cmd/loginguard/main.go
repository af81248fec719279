package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loginguard/internal/api"
	"loginguard/internal/baseline"
	"loginguard/internal/blocklist"
	"loginguard/internal/config"
	"loginguard/internal/dispatch"
	"loginguard/internal/engine"
	"loginguard/internal/ingest"
	"loginguard/internal/logging"
	"loginguard/internal/metrics"
	"loginguard/internal/model"
	"loginguard/internal/storage"
)

const version = "0.1.0"

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (yaml or json)")
	flag.Parse()

	var cfgMgr *config.Manager
	if configPath != "" {
		m, err := config.NewManager(config.ResolvePath(configPath))
		if err != nil {
			logging.NewLogger("info").Error("failed to load config", "path", configPath, "err", err)
			os.Exit(1)
		}
		cfgMgr = m
	} else {
		cfgMgr = config.NewStaticManager(config.DefaultConfig())
	}
	cfg := cfgMgr.Get()

	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("failed to open storage", "driver", cfg.Storage.Driver, "err", err)
		os.Exit(1)
	}
	if store != nil {
		if err := store.Init(ctx); err != nil {
			logger.Error("failed to init storage", "err", err)
			os.Exit(1)
		}
		defer store.Close()
		logger.Info("storage enabled", "driver", cfg.Storage.Driver)
	}

	stats := metrics.NewStore(0)
	gate := blocklist.NewGate(store, logger)
	baselines := baseline.NewManager(cfg.Detection.DefaultNormalHours)
	registry := dispatch.NewRegistry(cfg.Dispatch.SubscriberBuffer, logger)
	dispatcher := dispatch.NewDispatcher(registry, store, logger, cfg.Dispatch.QueueSize)
	go dispatcher.Run(ctx)

	eng := engine.NewEngine(cfg, logger, baselines, gate, dispatcher, store, stats)

	events := make(chan model.Login, cfg.Ingest.ChannelBuffer)
	eng.Start(ctx, events)
	ingest.StartKafka(ctx, cfgMgr, events, logger)

	srv := api.NewServer(cfgMgr, eng, dispatcher, gate, baselines, stats, logger, version)
	api.Start(ctx, srv)

	go cfgMgr.Watch(3*time.Second,
		func(c *config.Config) {
			eng.UpdateConfig(c)
			logger.Info("config reloaded")
		},
		func(err error) {
			logger.Warn("config reload failed", "err", err)
		},
		ctx.Done(),
	)

	<-ctx.Done()
	logger.Info("shutting down")
}
