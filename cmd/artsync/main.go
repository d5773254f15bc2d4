package main

import (
	"os"

	"artifactsync/cmd/artsync/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
