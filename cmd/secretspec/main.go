package main

import (
	"fmt"
	"os"

	"github.com/ashebanow/secretspec/cmd/secretspec/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := &commands.App{Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)}
	if err := commands.NewRootCommand(app).Execute(); err != nil {
		commands.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
