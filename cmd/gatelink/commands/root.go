package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"gatelink/internal/app"
	"gatelink/internal/gateway"
)

var (
	cfg    = app.Config{Gateway: gateway.DefaultConfig()}
	tlsArg string
	appCtx *app.Wire
)

// Execute runs the root command.
func Execute() error {
	root := &cobra.Command{
		Use:          "gatelink",
		Short:        "Device-authenticated gateway chat client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				cfg.Home = filepath.Join(dir, ".gatelink")
			}
			mode, err := app.ParseTLSMode(tlsArg)
			if err != nil {
				return err
			}
			cfg.TLS = mode

			logger, err := app.NewLogger(os.Stderr, cfg.LogLevel)
			if err != nil {
				return err
			}
			appCtx, err = app.NewWire(cfg, logger, printSink{})
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if appCtx == nil {
				return nil
			}
			return appCtx.Close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfg.Home, "home", "", "config dir (default ~/.gatelink)")
	pf.StringVarP(&cfg.Passphrase, "passphrase", "p", "", "passphrase sealing the device key at rest")
	pf.StringVar(&cfg.Host, "host", "", "gateway host (default: last used)")
	pf.IntVar(&cfg.Port, "port", 0, "gateway port")
	pf.StringVar(&cfg.Token, "token", "", "shared gateway token")
	pf.StringVar(&tlsArg, "tls", "auto", "transport security: auto, on or off")
	pf.StringVar(&cfg.LogLevel, "log-level", "warn", "log level: debug, info, warn or error")
	pf.StringVar(&cfg.PushToken, "push-token", "", "push token to register after connecting")
	pf.StringVar(&cfg.PushPlatform, "push-platform", "none", "push platform: fcm, apns or none")
	pf.StringVar(&cfg.Gateway.ClientID, "client-id", cfg.Gateway.ClientID, "client id sent to the gateway")
	pf.StringVar(&cfg.Gateway.ClientMode, "client-mode", cfg.Gateway.ClientMode, "client mode sent to the gateway")
	pf.StringVar(&cfg.Gateway.Role, "role", cfg.Gateway.Role, "requested role")
	pf.StringSliceVar(&cfg.Gateway.Scopes, "scopes", cfg.Gateway.Scopes, "requested scopes")
	pf.StringVar(&cfg.Gateway.Locale, "locale", cfg.Gateway.Locale, "locale sent to the gateway")
	pf.DurationVar(&cfg.Gateway.RequestTimeout, "request-timeout", cfg.Gateway.RequestTimeout, "per-request timeout")

	root.AddCommand(
		identityCmd(),
		connectCmd(),
		sendCmd(),
		historyCmd(),
		sessionsCmd(),
		pushCmd(),
	)
	return root.Execute()
}

// connect opens the gateway session for a one-shot command.
func connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if ep, ok := cfg.Endpoint(); ok {
		return appCtx.Gateway.Connect(ctx, ep)
	}
	if err := appCtx.Gateway.ConnectLast(ctx); err != nil {
		return fmt.Errorf("%w (use --host)", err)
	}
	return nil
}
