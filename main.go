package main

import (
	"fmt"
	"os"

	"github.com/waterdeep/usersync/cmd"
	"github.com/waterdeep/usersync/internal/conf"
	"github.com/waterdeep/usersync/internal/logging"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(settings.Debug)

	if err := cmd.RootCommand(settings).Execute(); err != nil {
		logging.Fatal("command failed", "error", err)
	}
}
