package order

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"restaurant-orders/internal/order/api/http"
	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/xpkg/config"
	"restaurant-orders/internal/xpkg/logger"
	"restaurant-orders/internal/xpkg/observability"
)

const serviceName = "order-service"

type params struct {
	orderParams *core.OrderParams
	portSet     bool
	cfg         *config.Config
}

// Execute starts order service
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
	if err = validateParams(params); err != nil {
		mylog.Action("command_validation_failed").Error("Invalid command received", err)
		return err
	}
	mylog.Action("command_validation_completed").Info("Successfully validate params")

	shutdownTracing, err := observability.SetupTracing(newCtx, serviceName, params.cfg.Telemetry)
	if err != nil {
		mylog.Action("tracing_setup_failed").Error("Failed to set up tracing, continuing without export", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	server := http.NewServer(newCtx, context.Background(), params.cfg, params.orderParams, mylog)

	// Run server in goroutine
	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- server.Run()
	}()

	// Wait for signal or server crash
	select {
	case <-newCtx.Done():
		mylog.Action("shutdown_signal_received").Info("Shutdown signal received")
		return server.Stop(context.Background())
	case err := <-runErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			mylog.Action("order_service_failed").Error("Server failed unexpectedly", err)
			_ = server.Stop(context.Background())
			return err
		}
		mylog.Action("server_stopped").Info("Server exited normally")
		return server.Stop(context.Background())
	}
}

// Helper functions to validate cli params

// parseParams parse params from terminal
func parseParams(args []string) (*params, error) {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")
	port := fs.Int("port", 3000, "Port to run the order service")

	if err := fs.Parse(args); err != nil {
		return nil, core.ErrParseCmd
	}

	if *showHelp {
		fs.Usage()
		return nil, core.ErrHelp
	}

	p := &params{
		orderParams: &core.OrderParams{
			Port:       *port,
			ConfigPath: *configPath,
		},
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "port" {
			p.portSet = true
		}
	})
	return p, nil
}

// validateParams loads the config and validates params
func validateParams(params *params) error {
	cfg, err := config.LoadConfig(params.orderParams.ConfigPath)
	if err != nil {
		return err
	}
	params.cfg = cfg

	orderParams := params.orderParams
	if !params.portSet {
		orderParams.Port = cfg.Server.Port
	}
	if orderParams.Port <= 0 || orderParams.Port >= 65536 {
		return fmt.Errorf("port must be in [1: 65,535]: %d", orderParams.Port)
	}
	return nil
}
