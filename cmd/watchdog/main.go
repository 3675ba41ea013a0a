package main

import (
	"os"

	"github.com/platformbuilds/mirador-watchdog/cmd/watchdog/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
