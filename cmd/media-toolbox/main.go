package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"media-toolbox/internal/media"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd(newApp(os.Stdout, os.Stderr)).ExecuteContext(ctx)
	media.ShutdownVips()
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
