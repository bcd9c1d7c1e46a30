package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().Run(ctx, os.Args); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:    "litcode",
		Usage:   "Socratic tutor for coding problems, backed by Gemini, OpenAI or Claude",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "backend",
				Aliases: []string{"b"},
				Usage:   "backend to use: gemini, openai or claude (default: the selected one)",
				Sources: cli.EnvVars("LITCODE_BACKEND"),
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to config.json (default: ~/.litcode/config.json)",
				Sources: cli.EnvVars("LITCODE_CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "print diagnostic logs",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if !cmd.Bool("verbose") {
				log.SetOutput(io.Discard)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			analyzeCommand(),
			followUpCommand(),
			chatCommand(),
			serveCommand(),
			keysCommand(),
			useCommand(),
			backendsCommand(),
		},
	}
}
