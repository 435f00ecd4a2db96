package main

import (
	"context"
	"fmt"

	"github.com/aretw0/courier"
	"github.com/aretw0/courier/internal/cli"
	"github.com/aretw0/courier/pkg/handler"
	"github.com/aretw0/courier/pkg/router"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Mounts every enabled channel at its webhook path and serves until interrupted.
Without --echo, events are only logged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		logger, err := cfg.NewLogger()
		if err != nil {
			return err
		}

		echo, _ := cmd.Flags().GetBool("echo")
		app, err := cli.NewApp(cfg, logger, defaultSetup(echo))
		if err != nil {
			return err
		}

		ctx, stop := cli.ShutdownContext(cmd.Context())
		defer stop()

		if err := app.Run(ctx); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		if sig := cli.ShutdownSignal(ctx); sig != nil {
			logger.Info("Courier stopped", "signal", sig.String())
		}
		return nil
	},
}

// defaultSetup logs every event and, with echo, replies to text messages with their own text.
func defaultSetup(echo bool) cli.Setup {
	return func(b *courier.Bot) {
		logEvent := handler.Func(func(ctx context.Context, c *handler.Context) error {
			c.Logger().Info("Event received", "text", c.Event().Text())
			return nil
		})

		r := router.NewRouter()
		if echo {
			r.Route(router.Text, handler.Then(logEvent, handler.Func(func(ctx context.Context, c *handler.Context) error {
				return c.SendText(ctx, c.Event().Text())
			})))
		}
		r.Fallback(logEvent)

		b.OnEvent(r.Action()).OnError(handler.Func(func(ctx context.Context, c *handler.Context) error {
			c.Logger().Error("Handler failed", "err", c.Err())
			return nil
		}))
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().Bool("echo", false, "Reply to text messages with their own text")
}
