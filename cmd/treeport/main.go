package main

import (
	"os"

	"github.com/szylko/treeport/config"
	"github.com/szylko/treeport/internal/cli"
)

func main() {
	deps := cli.Dependencies{
		Contexts: config.NewFileContextService(""),
	}
	if err := cli.Execute(deps); err != nil {
		os.Exit(cli.ExitCodeForError(err))
	}
}
