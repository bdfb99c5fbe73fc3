package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:                  "stageflow",
		Usage:                 "Create and manage content workflows",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewTemplatesCommand(),
			NewWorkflowCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// quietLogger keeps registry and engine chatter off the terminal so command
// output stays readable. Warnings and errors still come through on stderr.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}
