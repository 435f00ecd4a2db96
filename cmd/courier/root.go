package main

import (
	"fmt"
	"os"

	"github.com/aretw0/courier/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "courier",
	Short: "Courier dispatches messaging platform webhooks to session-aware handlers",
	Long: `Courier receives webhook deliveries from WhatsApp Business, Telegram and Slack,
normalizes them into events and runs them against per-conversation sessions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultPath, "Path to the configuration file")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
