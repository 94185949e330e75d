package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/digiself/mcp"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg   appConfig
		addr  string
		token string
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Start the REST API server",
		Flags: append(cfg.flags(),
			&cli.StringFlag{
				Name:        "addr",
				Value:       ":8080",
				Sources:     cli.EnvVars("DIGISELF_ADDR"),
				Usage:       "Server listen address",
				Destination: &addr,
			},
			&cli.StringFlag{
				Name:        "token",
				Sources:     cli.EnvVars("DIGISELF_TOKEN"),
				Usage:       "Bearer token required on /api routes except health",
				Destination: &token,
			},
		),
		Action: func(ctx context.Context, _ *cli.Command) error {
			logger := ctxlog.From(ctx)

			x, closer, err := cfg.buildApp(ctx, logger)
			if err != nil {
				return err
			}
			defer closer()

			opts := []serverOption{
				withAddr(addr),
				withToken(token),
				withLogger(logger),
			}
			if cfg.traceDir != "" {
				opts = append(opts, withSource(newLocalSource(cfg.traceDir)))
			}

			s, err := newServer(x, opts...)
			if err != nil {
				return err
			}
			return s.start(ctx)
		},
	}
}

func mcpCommand() *cli.Command {
	var cfg appConfig

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve planner actions as MCP tools over stdio",
		Flags: cfg.flags(),
		Action: func(ctx context.Context, _ *cli.Command) error {
			logger := ctxlog.From(ctx)

			x, closer, err := cfg.buildApp(ctx, logger)
			if err != nil {
				return err
			}
			defer closer()

			return mcp.New(x, mcp.WithLogger(logger)).Serve(ctx, os.Stdin, os.Stdout)
		},
	}
}

func syncCommand() *cli.Command {
	var cfg appConfig

	return &cli.Command{
		Name:  "sync",
		Usage: "Import calendar events into meetings once",
		Flags: cfg.flags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger := ctxlog.From(ctx)

			x, closer, err := cfg.buildApp(ctx, logger)
			if err != nil {
				return err
			}
			defer closer()

			result, err := x.SyncCalendar(ctx)
			if err != nil {
				return err
			}

			out := cmd.Root().Writer
			if out == nil {
				out = os.Stdout
			}
			_, err = fmt.Fprintf(out, "created: %d, updated: %d, meetings: %d\n",
				result.Created, result.Updated, len(result.Meetings))
			return err
		},
	}
}

func tracesCommand() *cli.Command {
	var (
		dir      string
		bucket   string
		prefix   string
		pageSize int
	)

	return &cli.Command{
		Name:      "traces",
		Usage:     "List saved traces, or print one trace when an id is given",
		ArgsUsage: "[trace_id]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "dir",
				Sources:     cli.EnvVars("DIGISELF_TRACE_DIR"),
				Usage:       "Local directory containing trace JSON files",
				Destination: &dir,
			},
			&cli.StringFlag{
				Name:        "bucket",
				Sources:     cli.EnvVars("DIGISELF_TRACE_BUCKET"),
				Usage:       "Google Cloud Storage bucket name",
				Destination: &bucket,
			},
			&cli.StringFlag{
				Name:        "prefix",
				Sources:     cli.EnvVars("DIGISELF_TRACE_PREFIX"),
				Usage:       "Google Cloud Storage object prefix",
				Destination: &prefix,
			},
			&cli.IntFlag{
				Name:        "page-size",
				Value:       defaultPageSize,
				Usage:       "Number of traces to list",
				Destination: &pageSize,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if dir == "" && bucket == "" {
				return goerr.Wrap(digiself.ErrInvalidParameter, "either --dir or --bucket must be specified")
			}
			if dir != "" && bucket != "" {
				return goerr.Wrap(digiself.ErrInvalidParameter, "--dir and --bucket are mutually exclusive")
			}

			var src traceSource
			if dir != "" {
				src = newLocalSource(dir)
			} else {
				var err error
				src, err = newCSSource(ctx, bucket, prefix)
				if err != nil {
					return err
				}
			}

			out := cmd.Root().Writer
			if out == nil {
				out = os.Stdout
			}

			if id := cmd.Args().First(); id != "" {
				t, err := src.Get(ctx, id)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(t)
			}

			resp, err := src.List(ctx, listRequest{pageSize: pageSize})
			if err != nil {
				return err
			}
			return printTraces(out, resp.traces)
		},
	}
}

func printTraces(w io.Writer, traces []traceSummary) error {
	var errs []error
	for _, t := range traces {
		var err error
		if s := t.Summary; s != nil {
			_, err = fmt.Fprintf(w, "%s  %s  %-6s %-7s llm=%d actions=%d  %s\n",
				t.TraceID, s.StartedAt.Format(time.RFC3339), s.Kind, s.Status,
				s.LLMCalls, s.Actions, s.Duration)
		} else {
			_, err = fmt.Fprintf(w, "%s  %s  %d bytes\n",
				t.TraceID, t.UpdatedAt.Format(time.RFC3339), t.Size)
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
