package main

import (
	"context"
	"flag"
	"os"
	"time"

	"tqbridge/internal/bootstrap"
	"tqbridge/internal/bus"
	"tqbridge/internal/cache"
	"tqbridge/internal/core"
	"tqbridge/internal/handler"
	"tqbridge/pkg/logging"
)

var configFile = flag.String("config", "", "Path to configuration file")

func main() {
	flag.Parse()

	app, err := bootstrap.NewApp("account_handler", *configFile)
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

	consumer := bus.NewConsumer(bus.ConsumerOptions{
		URL:            cfg.RabbitMQ.URL,
		Exchange:       core.InternalExchange,
		ExchangeKind:   "direct",
		Queue:          core.InternalAccountUpdatesQueue,
		RoutingKey:     core.RoutingKeyAccountUpdates,
		ReconnectDelay: cfg.Timing.BusReconnectDelayDuration(),
	}, app.Logger)

	runner := handler.NewRunner(consumer,
		handler.NewAccountHandler(positionCache, cfg.Timing.AccountTTLDuration(), app.Logger), app.Logger)

	if err := app.Run(runner); err != nil {
		os.Exit(1)
	}
}
