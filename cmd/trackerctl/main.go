// Package main is trackerctl, the operator CLI for the stage tracker. It
// migrates SQL stores, prints owner summaries and moves templates in and
// out of the store as YAML.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jsamuelsen11/stage-tracker/internal/adapters/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd(storage.Open).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
