package main

import (
	"context"
	"flag"
	"os"
	"time"

	"tqbridge/internal/bootstrap"
	"tqbridge/internal/broker"
	"tqbridge/internal/cache"
	"tqbridge/internal/reconciler"
	"tqbridge/internal/service"
	"tqbridge/internal/store"
	"tqbridge/internal/tradinghours"
	"tqbridge/internal/universe"
	"tqbridge/pkg/logging"
)

var configFile = flag.String("config", "", "Path to configuration file")

func main() {
	flag.Parse()

	app, err := bootstrap.NewApp("position_reconciler", *configFile)
	if err != nil {
		logging.Fatal("bootstrap failed", "error", err)
	}
	cfg := app.Cfg

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	positionCache, err := cache.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, app.Logger)
	if err != nil {
		app.Logger.Fatal("redis connect failed", "error", err)
	}
	defer positionCache.Close()

	orderStore, err := store.Open(ctx, cfg.Database.DSN, app.Logger)
	if err != nil {
		app.Logger.Fatal("database open failed", "error", err)
	}
	defer orderStore.Close()

	calendar, err := tradinghours.NewCalendar()
	if err != nil {
		app.Logger.Fatal("timezone load failed", "error", err)
	}

	loader := universe.NewLoader(orderStore, cfg.Timing.UniverseRefreshIntervalDuration(), app.Logger)
	worker := reconciler.New(cfg.TQ.PortfolioID, positionCache, loader,
		cfg.Timing.PositionLoopIntervalDuration(), cfg.Timing.PositionTTLDuration(), app.Logger)

	skeleton := service.New(service.Options{
		ServiceName:     "position_reconciler",
		BlockTimeout:    cfg.Timing.BlockTimeoutDuration(),
		BlockCounterMax: cfg.Timing.BlockCounterMax,
	}, broker.Factory(cfg.TQ, app.Logger), worker, calendar, app.Logger)

	if err := app.Run(skeleton); err != nil {
		os.Exit(1)
	}
}
