package commands

import (
	"github.com/spf13/cobra"

	"gatelink/internal/domain"
)

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <session>",
		Short: "Print recent messages of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := connect(cmd.Context()); err != nil {
				return err
			}
			msgs, err := appCtx.Gateway.History(cmd.Context(), domain.SessionKey(args[0]), limit)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				printMessage(args[0], m)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of messages")
	return cmd
}
