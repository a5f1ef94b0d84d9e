package main

import (
	"context"
	"flag"
	"os"
	"time"

	"tqbridge/internal/bootstrap"
	"tqbridge/internal/broker"
	"tqbridge/internal/cache"
	"tqbridge/internal/core"
	"tqbridge/internal/service"
	"tqbridge/internal/store"
	"tqbridge/internal/submitter"
	"tqbridge/internal/tradinghours"
	"tqbridge/pkg/logging"
)

var configFile = flag.String("config", "", "Path to configuration file")

func main() {
	flag.Parse()

	app, err := bootstrap.NewApp("order_submitter", *configFile)
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

	worker := submitter.New(cfg.TQ.PortfolioID, positionCache, orderStore, calendar,
		cfg.Timing.SessionEndBufferDuration(), cfg.Timing.OrderExpireAllowMaxDuration(), app.Logger)

	skeleton := service.New(service.Options{
		ServiceName:     "order_submitter",
		BusURL:          cfg.RabbitMQ.URL,
		ExchangeName:    core.ExternalOrderExchange,
		ExchangeKind:    "topic",
		QueueName:       core.ExternalOrderSubmitQueue,
		RoutingKey:      core.PortfolioRoutingKey(cfg.TQ.PortfolioID),
		DeferredAck:     true,
		BlockTimeout:    cfg.Timing.BlockTimeoutDuration(),
		BlockCounterMax: cfg.Timing.BlockCounterMax,
		ReconnectDelay:  cfg.Timing.BusReconnectDelayDuration(),
	}, broker.Factory(cfg.TQ, app.Logger), worker, calendar, app.Logger)

	if err := app.Run(skeleton); err != nil {
		os.Exit(1)
	}
}
