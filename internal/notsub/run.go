package notsub

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"restaurant-orders/internal/notify/broker"
	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/xpkg/config"
	"restaurant-orders/internal/xpkg/logger"
)

type params struct {
	configPath string
	cfg        *config.Config
}

// Execute tails the notification exchange and prints every order event.
func Execute(ctx context.Context, mylog logger.Logger, args []string) error {
	newCtx, close := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer close()

	params, err := parseParams(args)
	if err != nil {
		if !errors.Is(err, core.ErrHelp) {
			mylog.Action("command_parse_failed").Error("Invalid command received", err)
		}
		return err
	}
	mylog.Action("command_parse_completed").Debug("Received params", "config_path", params.configPath)

	if err = validateParams(params); err != nil {
		mylog.Action("command_validation_failed").Error("Invalid command received", err)
		return err
	}

	printer := NewPrinter(os.Stdout, mylog)
	mb, err := broker.NewRabbitMQ(params.cfg.RMQ, printer, mylog)
	if err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return err
	}
	mylog.Action("mb_connected").Info("Listening for order notifications", "exchange", params.cfg.RMQ.Exchange)

	runErr := mb.Run(newCtx)

	mylog.Action("graceful_shutdown_started").Info("Shutting down")
	if err := mb.Close(); err != nil {
		mylog.Action("mb_close_failed").Error("Failed to close message broker", err)
		return errors.Join(runErr, err)
	}
	mylog.Action("graceful_shutdown_completed").Info("Successfully shutted down", "printed", printer.Count())
	return runErr
}

func parseParams(args []string) (*params, error) {
	fs := flag.NewFlagSet("notification-subscriber", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")

	if err := fs.Parse(args); err != nil {
		return nil, core.ErrParseCmd
	}
	if *showHelp {
		fs.Usage()
		return nil, core.ErrHelp
	}
	return &params{configPath: *configPath}, nil
}

func validateParams(params *params) error {
	cfg, err := config.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	params.cfg = cfg
	return nil
}
