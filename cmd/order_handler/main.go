package main

import (
	"context"
	"flag"
	"os"
	"time"

	"tqbridge/internal/bootstrap"
	"tqbridge/internal/bus"
	"tqbridge/internal/core"
	"tqbridge/internal/handler"
	"tqbridge/internal/store"
	"tqbridge/pkg/logging"
)

var configFile = flag.String("config", "", "Path to configuration file")

func main() {
	flag.Parse()

	app, err := bootstrap.NewApp("order_handler", *configFile)
	if err != nil {
		logging.Fatal("bootstrap failed", "error", err)
	}
	cfg := app.Cfg

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	orderStore, err := store.Open(ctx, cfg.Database.DSN, app.Logger)
	if err != nil {
		app.Logger.Fatal("database open failed", "error", err)
	}
	defer orderStore.Close()

	consumer := bus.NewConsumer(bus.ConsumerOptions{
		URL:            cfg.RabbitMQ.URL,
		Exchange:       core.InternalExchange,
		ExchangeKind:   "direct",
		Queue:          core.InternalOrderUpdatesQueue,
		RoutingKey:     core.RoutingKeyOrderUpdates,
		ReconnectDelay: cfg.Timing.BusReconnectDelayDuration(),
	}, app.Logger)

	runner := handler.NewRunner(consumer, handler.NewOrderHandler(orderStore, app.Logger), app.Logger)

	if err := app.Run(runner); err != nil {
		os.Exit(1)
	}
}
