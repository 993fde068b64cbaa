package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mergelens/mergelens/cmd"
	"github.com/mergelens/mergelens/internal/api"
)

const (
	version = "0.1.0"
)

func main() {
	api.Version = version
	app := &cli.App{
		Name:    "mergelens",
		Usage:   "GitLab merge request browser with AI-powered reviews",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{"MERGELENS_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
