package main

import (
	"flag"
	"os"

	"tqbridge/internal/bootstrap"
	"tqbridge/internal/broker"
	"tqbridge/internal/bus"
	"tqbridge/internal/core"
	"tqbridge/internal/monitor"
	"tqbridge/internal/service"
	"tqbridge/internal/tradinghours"
	"tqbridge/pkg/logging"
)

var configFile = flag.String("config", "", "Path to configuration file")

func main() {
	flag.Parse()

	app, err := bootstrap.NewApp("account_monitor", *configFile)
	if err != nil {
		logging.Fatal("bootstrap failed", "error", err)
	}
	cfg := app.Cfg

	publisher, err := bus.NewPublisher(cfg.RabbitMQ.URL, core.InternalExchange, "direct", app.Logger)
	if err != nil {
		app.Logger.Fatal("bus connect failed", "error", err)
	}
	defer publisher.Close()

	calendar, err := tradinghours.NewCalendar()
	if err != nil {
		app.Logger.Fatal("timezone load failed", "error", err)
	}

	worker := monitor.NewAccountMonitor(cfg.TQ.PortfolioID,
		monitor.NewEventPublisher(publisher, app.Logger), app.Logger)

	skeleton := service.New(service.Options{
		ServiceName:     "account_monitor",
		BlockTimeout:    cfg.Timing.BlockTimeoutDuration(),
		BlockCounterMax: cfg.Timing.BlockCounterMax,
	}, broker.Factory(cfg.TQ, app.Logger), worker, calendar, app.Logger)

	if err := app.Run(skeleton); err != nil {
		os.Exit(1)
	}
}
