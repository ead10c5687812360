package main

import (
	"os"

	"gatelink/cmd/gatelink/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
