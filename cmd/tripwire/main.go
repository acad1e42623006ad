package main

import (
	"context"
	"os"

	"github.com/dukex/tripwire/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "tripwire",
		Usage:                 "Evaluate workflow triggers and run their action pipelines",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			RunCommand(),
			CheckCommand(),
			ValidateCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.WithModule("tripwire").Error("Command failed", "error", err)
		os.Exit(1)
	}
}
