package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"restaurant-orders/internal/notsub"
	"restaurant-orders/internal/order"
	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/xpkg/logger"
)

func main() {
	mode, serviceArgs := splitMode(os.Args[1:])
	if mode == "" || mode == "help" {
		printUsage()
		if mode == "" {
			os.Exit(1)
		}
		return
	}

	mylog := logger.New(mode, os.Getenv("LOG_LEVEL"))
	defer func() { _ = mylog.Sync() }()

	var err error
	switch mode {
	case "order-service":
		err = order.Execute(context.Background(), mylog, serviceArgs)
	case "notification-subscriber":
		err = notsub.Execute(context.Background(), mylog, serviceArgs)
	default:
		fmt.Printf("Invalid mode: %s\n", mode)
		printUsage()
		os.Exit(1)
	}
	if err != nil && !errors.Is(err, core.ErrHelp) {
		_ = mylog.Sync()
		os.Exit(1)
	}
}

// splitMode pulls --mode out of args and returns the rest for the service.
func splitMode(args []string) (string, []string) {
	var mode string
	var rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "--mode="):
			mode = strings.TrimPrefix(arg, "--mode=")
		case arg == "--mode" && i+1 < len(args):
			mode = args[i+1]
			i++
		case (arg == "--help" || arg == "-h") && mode == "":
			mode = "help"
		default:
			rest = append(rest, arg)
		}
	}
	return mode, rest
}

func printUsage() {
	fmt.Println("Usage: restaurant-orders --mode=<service-mode> [service-specific-flags]")
	fmt.Println("Available modes:")
	fmt.Println("  order-service --port=3000 --config-path=config.yaml")
	fmt.Println("  notification-subscriber --config-path=config.yaml")
}
