package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"livre/internal/app"
)

// signalContext 收到 SIGINT/SIGTERM 时结束的 context
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// buildApp CLI 命令共用的初始化，调用方负责 Close
func buildApp(ctx context.Context) (*app.App, error) {
	cfg := GetConfig()
	if err := cfg.ValidateCore(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	application, err := app.Build(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return application, nil
}
