package main

import (
	"fmt"
	"os"

	"github.com/aretw0/courier/internal/config"
	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/registry"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and scaffold configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration is invalid:\n%w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid (%d enabled channels).\n", cfg.EnabledChannels())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		cfg := config.DefaultConfig()
		cfg.Channels["whatsapp"] = registry.ChannelConfig{
			Platform: domain.PlatformWhatsappBusiness,
		}
		cfg.Channels["telegram"] = registry.ChannelConfig{
			Platform: domain.PlatformTelegram,
		}
		cfg.Channels["slack"] = registry.ChannelConfig{
			Platform: domain.PlatformSlack,
		}
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
}
