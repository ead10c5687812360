package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"gatelink/internal/crypto"
)

func identityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "identity",
		Aliases: []string{"fingerprint"},
		Short:   "Print the device identity, creating it on first use",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := appCtx.Identity.LoadOrCreate()
			if err != nil {
				return err
			}
			fmt.Printf("Device ID:   %s\n", id.DeviceID)
			fmt.Printf("Fingerprint: %s\n", crypto.Fingerprint(id.PublicKey.Slice()))
			fmt.Printf("Public key:  %s\n", crypto.B64URL(id.PublicKey.Slice()))
			return nil
		},
	}
	return cmd
}
