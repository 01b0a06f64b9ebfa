package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
)

var version = "dev"

type loggerKey struct{}

func loggerFrom(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return log
	}
	return slog.Default()
}

// prepareLogger runs after the command line has been parsed.
func prepareLogger(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	lvl := slog.LevelWarn
	if cmd.Bool("debug") {
		lvl = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	return context.WithValue(ctx, loggerKey{}, log), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sourceFlags := []cli.Flag{
		&cli.StringFlag{Name: "catalog", Aliases: []string{"c"}, Usage: "resolve SOURCE as a slug in catalog `FILE` (YAML)"},
	}

	app := &cli.Command{
		Name:            "zenview",
		Usage:           "progressive-reveal reader for markdown documents",
		Version:         version,
		HideHelpCommand: true,
		Before:          prepareLogger,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "log reveal decisions to stderr"},
		},
		Commands: []*cli.Command{
			{
				Name:      "parse",
				Usage:     "Splits a document into sections and reports their reveal units",
				ArgsUsage: "SOURCE",
				Action:    runParse,
				Flags: append([]cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "print the parsed document as JSON"},
					&cli.IntFlag{Name: "word-threshold", Value: 150, Usage: "word count above which sections reveal block by block"},
				}, sourceFlags...),
			},
			{
				Name:      "toc",
				Usage:     "Prints the table of contents",
				ArgsUsage: "SOURCE",
				Action:    runTOC,
				Flags:     sourceFlags,
			},
			{
				Name:      "read",
				Usage:     "Reveals a document in the terminal",
				ArgsUsage: "SOURCE",
				Action:    runRead,
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "speed", Aliases: []string{"s"}, Usage: "reveal `SPEED` (fast, medium, slow, slower, instant)"},
					&cli.BoolFlag{Name: "instant", Aliases: []string{"i"}, Usage: "show every section without animation"},
					&cli.StringFlag{Name: "jump", Aliases: []string{"j"}, Usage: "jump to section or anchor `ID` before reading"},
					&cli.StringFlag{Name: "policy", Usage: "how sections before a jump target reveal (instant-skip, parallel)"},
					&cli.StringFlag{Name: "prefs", Usage: "read preferences from `FILE` (YAML)"},
				}, sourceFlags...),
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "zenview: %v\n", err)
		os.Exit(1)
	}
}
