package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"timer-powerup/internal/cli"
)

var version = "dev"

func main() {
	// Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.Run(ctx, os.Args, version); err != nil {
		os.Exit(1)
	}
}
