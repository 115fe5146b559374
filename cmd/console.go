package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chatrouter/pkg/channel"
	"chatrouter/pkg/channel/console"
	"chatrouter/pkg/config"
	"chatrouter/pkg/demo"
	"chatrouter/pkg/gateway"
	"chatrouter/pkg/logger"

	"github.com/spf13/cobra"
)

const consoleLogLevel = "warn"

var consoleUsername string

// consoleCmd represents the console command
var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Chat with the bot in the terminal",
	Long: "Runs the demo bot on stdin/stdout. Every line is a message; type cb:<data> to press an " +
		"inline button and exit to quit. A config file is optional.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := consoleConfig()
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

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runConsole(runCtx, cfg, os.Stdin, cmd.OutOrStdout(), appLogger); err != nil {
			appLogger.Error("Console session failed", "component", "cmd.console", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().StringVarP(&consoleUsername, "username", "u", "", "username the console user chats as")
}

// consoleConfig falls back to defaults when no config file exists and keeps
// log output quiet unless a level was configured.
func consoleConfig() (*config.Config, error) {
	cfg, err := loadConfig()
	if errors.Is(err, config.ErrNotFound) {
		cfg = config.Default()
		config.ApplyEnv(cfg)
		err = cfg.Validate()
	}
	if err != nil {
		return nil, err
	}

	cfg.Channels.Console.Enabled = true
	if consoleUsername != "" {
		cfg.Channels.Console.Username = consoleUsername
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = consoleLogLevel
	}

	return cfg, nil
}

// runConsole serves the demo bot on one console chat until input ends.
func runConsole(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, log *slog.Logger) error {
	adapter, err := console.NewAdapter(cfg.Channels.Console, in, out, log)
	if err != nil {
		return err
	}

	svc, err := gateway.NewService(cfg, demo.New(log), []channel.Adapter{adapter}, log,
		gateway.WithServices(demo.Services()),
		gateway.WithStatusServer(false),
		gateway.WithStopWhenIdle(),
	)
	if err != nil {
		return err
	}

	return svc.Run(ctx)
}
