package commands

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"gatelink/internal/domain"
	"gatelink/internal/gateway"
)

// send <session> <message>: send a chat message to a session.
func sendCmd() *cobra.Command {
	var (
		files []string
		wait  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "send <session> <message>",
		Short: "Send a chat message to a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session := domain.SessionKey(args[0])
			attachments, err := readAttachments(files)
			if err != nil {
				return err
			}

			events, unsubscribe := appCtx.Gateway.Events(64)
			defer unsubscribe()

			if err := connect(cmd.Context()); err != nil {
				return err
			}
			receipt, err := appCtx.Gateway.SendMessageWithAttachments(cmd.Context(), session, args[1], attachments)
			if err != nil {
				return err
			}
			if receipt.Queued {
				return fmt.Errorf("connection dropped, message was not sent")
			}
			fmt.Printf("sent (run %s)\n", receipt.RunID)
			if wait <= 0 {
				return nil
			}
			return awaitFinal(events, receipt.RunID, wait)
		},
	}
	cmd.Flags().StringSliceVarP(&files, "attach", "a", nil, "files to attach")
	cmd.Flags().DurationVar(&wait, "wait", 0, "wait this long for the final reply")
	return cmd
}

// awaitFinal blocks until run finishes. The message itself is printed by
// the sink.
func awaitFinal(events <-chan gateway.Event, run domain.RunID, wait time.Duration) error {
	timeout := time.After(wait)
	for {
		select {
		case <-timeout:
			return fmt.Errorf("no reply within %s", wait)
		case e, ok := <-events:
			if !ok {
				return nil
			}
			cr, isChat := e.(gateway.ChatReceived)
			if !isChat || cr.Chat.RunID != run {
				continue
			}
			switch cr.Chat.State {
			case domain.ChatStateFinal:
				return nil
			case domain.ChatStateError, domain.ChatStateAborted:
				return fmt.Errorf("run %s: %s", cr.Chat.State, cr.Chat.ErrorMessage)
			}
		}
	}
}

func readAttachments(paths []string) ([]domain.Attachment, error) {
	out := make([]domain.Attachment, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		mt := mime.TypeByExtension(filepath.Ext(p))
		if mt == "" {
			mt = "application/octet-stream"
		}
		out = append(out, domain.Attachment{FileName: filepath.Base(p), MimeType: mt, Data: data})
	}
	return out, nil
}
