package commands

import (
	"fmt"
	"time"

	"gatelink/internal/domain"
)

// printSink writes final and error chat events to stdout.
type printSink struct{}

func (printSink) Deliver(e domain.ChatEvent) {
	switch e.State {
	case domain.ChatStateFinal:
		if e.Message != nil {
			printMessage(string(e.SessionKey), *e.Message)
		}
	case domain.ChatStateError, domain.ChatStateAborted:
		fmt.Printf("[%s] run %s %s: %s\n", e.SessionKey, e.RunID, e.State, e.ErrorMessage)
	}
}

func printMessage(session string, m domain.ChatMessage) {
	stamp := ""
	if !m.Timestamp.IsZero() {
		stamp = m.Timestamp.Local().Format(time.TimeOnly) + " "
	}
	fmt.Printf("%s[%s] %s: %s\n", stamp, session, m.Role, m.Text)
}
