package main

import (
	"context"
	"flag"
	"os"
	"time"

	"tqbridge/internal/bootstrap"
	"tqbridge/internal/broker"
	"tqbridge/internal/bus"
	"tqbridge/internal/cache"
	"tqbridge/internal/core"
	"tqbridge/internal/monitor"
	"tqbridge/internal/service"
	"tqbridge/internal/tradinghours"
	"tqbridge/pkg/logging"
)

var configFile = flag.String("config", "", "Path to configuration file")

func main() {
	flag.Parse()

	app, err := bootstrap.NewApp("position_monitor", *configFile)
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

	publisher, err := bus.NewPublisher(cfg.RabbitMQ.URL, core.InternalExchange, "direct", app.Logger)
	if err != nil {
		app.Logger.Fatal("bus connect failed", "error", err)
	}
	defer publisher.Close()

	calendar, err := tradinghours.NewCalendar()
	if err != nil {
		app.Logger.Fatal("timezone load failed", "error", err)
	}

	worker := monitor.NewPositionMonitor(cfg.TQ.PortfolioID,
		monitor.NewEventPublisher(publisher, app.Logger),
		positionCache, cfg.Timing.PositionTTLDuration(), app.Logger)

	skeleton := service.New(service.Options{
		ServiceName:     "position_monitor",
		BlockTimeout:    cfg.Timing.BlockTimeoutDuration(),
		BlockCounterMax: cfg.Timing.BlockCounterMax,
	}, broker.Factory(cfg.TQ, app.Logger), worker, calendar, app.Logger)

	if err := app.Run(skeleton); err != nil {
		os.Exit(1)
	}
}
