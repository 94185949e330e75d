package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func main() {
	// A missing .env is fine; every setting also has a flag.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	var logFormat, logLevel string

	return &cli.Command{
		Name:  "digiself",
		Usage: "Digital Self: diary, meetings, notifications and focus driven by an LLM planner",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-format",
				Value:       "text",
				Sources:     cli.EnvVars("DIGISELF_LOG_FORMAT"),
				Usage:       "Log format (text, json)",
				Destination: &logFormat,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Value:       "info",
				Sources:     cli.EnvVars("DIGISELF_LOG_LEVEL"),
				Usage:       "Log level (debug, info, warn, error)",
				Destination: &logLevel,
			},
		},
		Before: func(ctx context.Context, _ *cli.Command) (context.Context, error) {
			logger, err := newLogger(logFormat, logLevel)
			if err != nil {
				return ctx, err
			}
			slog.SetDefault(logger)
			return ctxlog.With(ctx, logger), nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			chatCommand(),
			mcpCommand(),
			syncCommand(),
			tracesCommand(),
		},
	}
}

// newLogger writes to stderr so that stdout stays free for MCP and command
// output.
func newLogger(format, level string) (*slog.Logger, error) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		return nil, goerr.Wrap(digiself.ErrInvalidParameter, "invalid log level", goerr.V("level", level))
	}
	opts := &slog.HandlerOptions{Level: lv}

	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, goerr.Wrap(digiself.ErrInvalidParameter, "invalid log format", goerr.V("format", format))
	}
}
