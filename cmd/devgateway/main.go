package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"gatelink/internal/app"
	"gatelink/internal/devgateway"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var adminURL string
	root := &cobra.Command{
		Use:          "devgateway",
		Short:        "In-memory development gateway",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&adminURL, "url", "http://127.0.0.1:18789", "base URL of a running devgateway (admin commands)")

	admin := func() *devgateway.AdminClient { return devgateway.NewAdminClient(adminURL) }
	root.AddCommand(serveCmd(), dropCmd(admin), injectCmd(admin), pushTokensCmd(admin))
	return root
}

func serveCmd() *cobra.Command {
	var (
		addr     string
		logLevel string
		opts     devgateway.Options
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Listen for gateway clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := app.NewLogger(os.Stderr, logLevel)
			if err != nil {
				return err
			}
			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			opts.Logger = logger
			opts.Registerer = registry

			gw := devgateway.New(opts)
			gw.Mount("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

			srv := &http.Server{Addr: addr, Handler: gw.Handler(), ReadHeaderTimeout: 10 * time.Second}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() {
				logger.Info("devgateway listening", "addr", addr)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = srv.Shutdown(shutdownCtx)
			gw.Close()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":18789", "listen address")
	f.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	f.StringVar(&opts.Token, "token", "", "shared token clients must present (empty: any)")
	f.BoolVar(&opts.SkipChallenge, "skip-challenge", false, "do not send connect.challenge")
	f.Int64Var(&opts.TickIntervalMs, "tick-ms", 15000, "heartbeat interval advertised in hello-ok")
	f.DurationVar(&opts.ReplyDelay, "reply-delay", 50*time.Millisecond, "delay between streamed reply events")
	f.StringSliceVar(&opts.IgnoreMethods, "ignore", nil, "methods to leave unanswered")
	return cmd
}

func dropCmd(admin func() *devgateway.AdminClient) *cobra.Command {
	return &cobra.Command{
		Use:   "drop",
		Short: "Close every client connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := admin().Drop()
			if err != nil {
				return err
			}
			fmt.Printf("dropped %d connection(s)\n", n)
			return nil
		},
	}
}

func injectCmd(admin func() *devgateway.AdminClient) *cobra.Command {
	return &cobra.Command{
		Use:   "inject <event> [json-payload]",
		Short: "Broadcast an event to every authenticated client",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload any
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("payload is not valid JSON")
				}
				payload = json.RawMessage(args[1])
			}
			n, err := admin().Inject(args[0], payload)
			if err != nil {
				return err
			}
			fmt.Printf("delivered to %d client(s)\n", n)
			return nil
		},
	}
}

func pushTokensCmd(admin func() *devgateway.AdminClient) *cobra.Command {
	return &cobra.Command{
		Use:   "push-tokens",
		Short: "Print push registrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			regs, err := admin().PushTokens()
			if err != nil {
				return err
			}
			for _, r := range regs {
				fmt.Printf("%s\t%s\t%s\n", r.DeviceID, r.Platform, r.Token)
			}
			return nil
		},
	}
}
