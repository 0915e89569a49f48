package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/disperse-network/disperse-daemon/config"
)

func main() {
	app := cli.NewApp()

	app.Version = "0.1.0"
	app.Name = "dispersed CLI"
	app.Usage = "Command line interface for the disperse daemon"
	app.Commands = append(
		app.Commands,
		&configCmd,
		&operationsCmd,
		&balanceCmd,
		&gasCmd,
	)

	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[dispersed] %v\n", err)
	os.Exit(1)
}
