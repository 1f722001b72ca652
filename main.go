package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dindinbro/discreen/cmd"
	"github.com/dindinbro/discreen/pkg/config"
)

func main() {
	app := &cli.Command{
		Name:  "discreen",
		Usage: "Federated search over local stores, a remote bridge and object storage",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: getDefaultConfigPathOrExit(),
			},
		},
		Commands: []*cli.Command{
			cmd.SearchCommand(),
			cmd.SourcesCommand(),
			cmd.ServeCommand(),
			cmd.RepairCommand(),
			cmd.InitCommand(),
			cmd.VersionCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func getDefaultConfigPathOrExit() string {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		log.Fatalf("Failed to get default config path: %v", err)
	}
	return path
}
