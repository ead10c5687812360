package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gatelink/internal/domain"
	"gatelink/internal/gateway"
)

// connect: hold a session open and print events until interrupted.
func connectCmd() *cobra.Command {
	var sessions []string
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect and stream gateway events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			events, unsubscribe := appCtx.Gateway.Events(64)
			defer unsubscribe()

			if err := connect(ctx); err != nil {
				return err
			}
			for _, s := range sessions {
				if err := appCtx.Gateway.Subscribe(ctx, domain.SessionKey(s)); err != nil {
					return fmt.Errorf("subscribe %s: %w", s, err)
				}
			}
			ep, _ := appCtx.Gateway.Endpoint()
			fmt.Printf("connected to %s\n", ep.WebSocketURL())
			return watch(ctx, events)
		},
	}
	cmd.Flags().StringSliceVar(&sessions, "session", nil, "session keys to subscribe to")
	return cmd
}

func watch(ctx context.Context, events <-chan gateway.Event) error {
	for {
		select {
		case <-ctx.Done():
			appCtx.Gateway.Disconnect()
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			switch e := e.(type) {
			case gateway.StateChanged:
				fmt.Printf("state: %s -> %s\n", e.From, e.To)
			case gateway.RawEvent:
				fmt.Printf("event %s: %s\n", e.Name, e.Payload)
			case gateway.OfflineQueueEmpty:
				fmt.Printf("offline queue flushed: %d sent, %d dropped\n", e.Sent, e.Dropped)
			case gateway.ReconnectFailed:
				return e.Err
			}
		}
	}
}
