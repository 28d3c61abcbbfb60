// Command testapp is the application launched by the conformance scenarios.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dwsmith1983/tasklaunch/internal/testapp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	code := testapp.Run(ctx, os.Args[1:], os.Stderr, logger)
	stop()
	os.Exit(code)
}
