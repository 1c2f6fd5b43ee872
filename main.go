// File: calbook/main.go
package main

import (
	"os"

	"calbook/config"
	"calbook/utils"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "calbook",
		Usage: "Book calendar appointments through a conversation.",
		Before: func(c *cli.Context) error {
			config.LoadConfig()
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			chatCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		utils.GetLogger().Error("calbook failed", zap.Error(err))
		os.Exit(1)
	}
}
