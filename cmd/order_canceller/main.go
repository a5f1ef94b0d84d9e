package main

import (
	"flag"
	"os"

	"tqbridge/internal/bootstrap"
	"tqbridge/internal/broker"
	"tqbridge/internal/canceller"
	"tqbridge/internal/core"
	"tqbridge/internal/service"
	"tqbridge/internal/tradinghours"
	"tqbridge/pkg/logging"
)

var configFile = flag.String("config", "", "Path to configuration file")

func main() {
	flag.Parse()

	app, err := bootstrap.NewApp("order_canceller", *configFile)
	if err != nil {
		logging.Fatal("bootstrap failed", "error", err)
	}
	cfg := app.Cfg

	calendar, err := tradinghours.NewCalendar()
	if err != nil {
		app.Logger.Fatal("timezone load failed", "error", err)
	}

	worker := canceller.New(cfg.TQ.PortfolioID, core.CancelPerOrderTimeout, app.Logger)

	skeleton := service.New(service.Options{
		ServiceName:     "order_canceller",
		BusURL:          cfg.RabbitMQ.URL,
		ExchangeName:    core.ExternalOrderExchange,
		ExchangeKind:    "topic",
		QueueName:       core.ExternalOrderCancelQueue,
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
