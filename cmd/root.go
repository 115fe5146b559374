package cmd

import (
	"os"
	"strings"

	"chatrouter/pkg/config"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatrouter",
	Short: "Route chat updates through handlers and middleware",
	Long: "Chatrouter runs a chat bot: updates from Telegram or the local console pass through " +
		"a middleware pipeline and are dispatched to command, callback and text handlers.",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: $CHATROUTER_CONFIG, ./config.json, ./config.yaml)")
}

// loadConfig reads --config when given and the usual locations otherwise.
func loadConfig() (*config.Config, error) {
	if path := strings.TrimSpace(configPath); path != "" {
		return config.LoadFile(path)
	}

	return config.LoadConfig()
}
