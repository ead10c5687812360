package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func sessionsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := connect(cmd.Context()); err != nil {
				return err
			}
			res, err := appCtx.Gateway.GetSessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tUPDATED\tTOKENS\tMODEL")
			for _, s := range res.Sessions {
				updated, tokens := "-", "-"
				if s.UpdatedAt != nil {
					updated = time.UnixMilli(*s.UpdatedAt).Local().Format(time.DateTime)
				}
				if s.TotalTokens != nil {
					tokens = fmt.Sprint(*s.TotalTokens)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Key, updated, tokens, s.Model)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of sessions (0: gateway default)")
	return cmd
}
