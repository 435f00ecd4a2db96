package main

import (
	"errors"

	"github.com/aretw0/courier/internal/cli"
	"github.com/aretw0/courier/internal/config"
	"github.com/aretw0/courier/internal/logging"
	"github.com/aretw0/courier/pkg/session"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persisted sessions",
	Long:  `List, inspect, and remove sessions in the configured session store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored session keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(mgr *session.Manager) error {
			return cli.ListSessions(cmd.Context(), mgr, cmd.OutOrStdout())
		})
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-key>",
	Short: "Print a stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return withSessions(cmd, func(mgr *session.Manager) error {
			return cli.InspectSession(cmd.Context(), mgr, args[0], format, cmd.OutOrStdout())
		})
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-key>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(mgr *session.Manager) error {
			return cli.RemoveSessions(cmd.Context(), mgr, args, cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
	sessionInspectCmd.Flags().StringP("format", "f", cli.FormatJSON, "Output format (json|yaml)")
}

// withSessions opens the configured store for the duration of fn.
func withSessions(cmd *cobra.Command, fn func(*session.Manager) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Session.Driver == config.DriverMemory {
		return errors.New("session.driver is memory: there is no persisted store to manage")
	}
	p, err := cli.OpenPersistence(cfg.Session)
	if err != nil {
		return err
	}
	mgr := cli.NewSessionManager(cfg.Session, p, logging.NewNop())
	return errors.Join(fn(mgr), p.Close())
}
