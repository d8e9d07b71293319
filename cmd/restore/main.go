package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvr-ai/go-restore/cmd/restore/cmd"
)

var (
	GitSHA string = "NA"
)

func main() {
	// The first SIGINT cancels the running engine; stop() then restores the default
	// handler so a second one kills the process.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		defer stop()
		<-ctx.Done()
	}()

	if err := cmd.NewRoot(ctx, GitSHA).Execute(); err != nil {
		os.Exit(1)
	}
}
