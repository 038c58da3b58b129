package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/tunegraph/internal/app"
	"github.com/yungbote/tunegraph/internal/platform/shutdown"
)

func main() {
	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start()

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run() }()

	select {
	case err := <-errCh:
		if err != nil {
			a.Log.Error("server exited", "error", err)
			a.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
		a.Log.Info("shutdown signal received")
		sctx, cancel := context.WithTimeout(context.Background(), shutdown.DefaultGrace)
		defer cancel()
		if err := a.Shutdown(sctx); err != nil {
			a.Log.Warn("graceful shutdown failed", "error", err)
		}
	}
}
