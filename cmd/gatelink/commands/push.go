package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func pushCmd() *cobra.Command {
	var platform string
	cmd := &cobra.Command{
		Use:   "push <token>",
		Short: "Register a push token with the gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if platform != "fcm" && platform != "apns" {
				return fmt.Errorf("--platform must be fcm or apns")
			}
			if err := connect(cmd.Context()); err != nil {
				return err
			}
			if err := appCtx.Gateway.RegisterPushToken(cmd.Context(), args[0], platform); err != nil {
				return err
			}
			fmt.Println("registered")
			return nil
		},
	}
	cmd.Flags().StringVar(&platform, "platform", "fcm", "push platform: fcm or apns")
	return cmd
}
