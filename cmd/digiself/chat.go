package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/digiself/client"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		serverURL   string
		token       string
		historyFile string
	)

	return &cli.Command{
		Name:  "chat",
		Usage: "Chat with the assistant of a running server and apply its actions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "server",
				Value:       "http://localhost:8080",
				Sources:     cli.EnvVars("DIGISELF_SERVER"),
				Usage:       "Base URL of the digiself server",
				Destination: &serverURL,
			},
			&cli.StringFlag{
				Name:        "token",
				Sources:     cli.EnvVars("DIGISELF_TOKEN"),
				Usage:       "Bearer token of the server",
				Destination: &token,
			},
			&cli.StringFlag{
				Name:        "history-file",
				Sources:     cli.EnvVars("DIGISELF_HISTORY_FILE"),
				Usage:       "File to keep input history in",
				Destination: &historyFile,
			},
		},
		Action: func(ctx context.Context, _ *cli.Command) error {
			logger := ctxlog.From(ctx)

			c, err := client.New(serverURL, client.WithToken(token))
			if err != nil {
				return err
			}
			ws := client.NewWorkspace(c, client.WithLogger(logger))
			if err := ws.Load(ctx); err != nil {
				return err
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "> ",
				HistoryFile:     historyFile,
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return err
			}
			defer func() { _ = rl.Close() }()

			return runChat(ctx, rl, ws, logger)
		},
	}
}

type lineReader interface {
	Readline() (string, error)
	Stdout() io.Writer
}

func runChat(ctx context.Context, rl lineReader, ws *client.Workspace, logger *slog.Logger) error {
	out := rl.Stdout()
	fmt.Fprintln(out, "Type a message. /state shows the current state, /quit exits.")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/state":
			printState(out, ws.State())
			continue
		}

		resp, effects, err := ws.Chat(ctx, line)
		if err != nil {
			logger.Error("chat failed", slog.Any("error", err))
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}

		fmt.Fprintln(out, resp.Reply)
		for _, eff := range effects {
			fmt.Fprintln(out, "  "+summarizeEffect(eff))
		}
	}
}

// summarizeEffect renders one effect as a single line.
func summarizeEffect(eff digiself.Effect) string {
	if !eff.Applied {
		return fmt.Sprintf("- %s skipped: %s", eff.Type, eff.Reason)
	}

	var detail string
	switch {
	case eff.Diary != nil:
		detail = fmt.Sprintf("diary %q (%s)", eff.Diary.Title, eff.Diary.Type)
	case eff.Meeting != nil:
		detail = fmt.Sprintf("meeting %q at %s", eff.Meeting.Title, eff.Meeting.StartTime.Format("2006-01-02 15:04"))
	case eff.Notification != nil:
		detail = fmt.Sprintf("notification %q", eff.Notification.Message)
	case eff.Memory != nil:
		detail = fmt.Sprintf("memory %q", eff.Memory.Content)
	case eff.Profile != nil:
		detail = fmt.Sprintf("profile %q", eff.Profile.Name)
	case eff.Mode != "":
		detail = "mode " + eff.Mode
	case eff.Type == digiself.ActionSetFocus:
		detail = "focus [" + strings.Join(eff.Focus, ", ") + "]"
	}

	line := fmt.Sprintf("+ %s %s", eff.Type, detail)
	if eff.Error != "" {
		line += " (not saved: " + eff.Error + ")"
	}
	return line
}

func printState(w io.Writer, state digiself.State) {
	fmt.Fprintf(w, "mode: %s\n", state.Mode)
	fmt.Fprintf(w, "focus: %s\n", strings.Join(state.Focus, ", "))
	fmt.Fprintf(w, "diary: %d entries\n", len(state.Diary))
	for _, m := range state.Meetings {
		fmt.Fprintf(w, "meeting: %s  %s\n", m.StartTime.Format("2006-01-02 15:04"), m.Title)
	}
	unread := 0
	for _, n := range state.Notifications {
		if !n.Read {
			unread++
		}
	}
	fmt.Fprintf(w, "notifications: %d unread\n", unread)
	fmt.Fprintf(w, "memories: %d\n", len(state.Memories))
}
