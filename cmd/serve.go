package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chatrouter/pkg/channel"
	"chatrouter/pkg/channel/console"
	"chatrouter/pkg/channel/telegram"
	"chatrouter/pkg/config"
	"chatrouter/pkg/demo"
	"chatrouter/pkg/gateway"
	"chatrouter/pkg/logger"

	"github.com/spf13/cobra"
)

const (
	telegramChannelName = "telegram"
	consoleChannelName  = "console"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot on the configured channels",
	Long:  "Runs the demo bot on every enabled channel with health and readiness endpoints.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := loadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.serve")

		adapters, err := enabledAdapters(cfg, log)
		if err != nil {
			log.Error("Channel configuration invalid", "error", err)
			return
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := gateway.NewService(cfg, demo.New(appLogger), adapters, appLogger, gateway.WithServices(demo.Services()))
		if err != nil {
			log.Error("Failed to initialize gateway service", "error", err)
			return
		}

		log.Info("Gateway started", "channels", enabledChannelNames(adapters), "max_concurrency", cfg.Router.MaxConcurrency, "serialize_per_chat", cfg.Router.SerializePerChat)
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Gateway runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func enabledAdapters(cfg *config.Config, log *slog.Logger) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 2)

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, log)
		if err != nil {
			return nil, fmt.Errorf("configure %s channel: %w", telegramChannelName, err)
		}
		adapters = append(adapters, adapter)
	}

	if cfg.Channels.Console.Enabled {
		adapter, err := console.NewAdapter(cfg.Channels.Console, os.Stdin, os.Stdout, log)
		if err != nil {
			return nil, fmt.Errorf("configure %s channel: %w", consoleChannelName, err)
		}
		adapters = append(adapters, adapter)
	}

	if len(adapters) == 0 {
		return nil, errors.New("no channels are enabled")
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}
