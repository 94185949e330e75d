package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/digiself/app"
	"github.com/m-mizutani/digiself/calendar"
	"github.com/m-mizutani/digiself/llm"
	"github.com/m-mizutani/digiself/rag"
	"github.com/m-mizutani/digiself/repository/inmemory"
	"github.com/m-mizutani/digiself/repository/sqlite"
	"github.com/m-mizutani/digiself/trace"
	tracelogger "github.com/m-mizutani/digiself/trace/logger"
	traceotel "github.com/m-mizutani/digiself/trace/otel"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// appConfig holds the settings shared by every command that builds an
// app.App locally.
type appConfig struct {
	dbPath string

	llm      llm.Config
	personas string

	google     calendar.GoogleCredential
	calendarID string
	timezone   string

	traceDir string
	otel     bool
}

func (x *appConfig) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "db",
			Sources:     cli.EnvVars("DIGISELF_DB"),
			Usage:       "SQLite database path. State is kept in memory when empty",
			Destination: &x.dbPath,
		},
		&cli.StringFlag{
			Name:        "llm-provider",
			Value:       string(llm.ProviderOpenAI),
			Sources:     cli.EnvVars("DIGISELF_LLM_PROVIDER"),
			Usage:       "LLM provider (openai, gemini, claude, claude-vertex)",
			Destination: (*string)(&x.llm.Provider),
		},
		&cli.StringFlag{
			Name:        "llm-model",
			Sources:     cli.EnvVars("DIGISELF_LLM_MODEL"),
			Usage:       "Model name. Provider default when empty",
			Destination: &x.llm.Model,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Sources:     cli.EnvVars("DIGISELF_EMBEDDING_MODEL"),
			Usage:       "Embedding model for memories. Provider default when empty",
			Destination: &x.llm.EmbeddingModel,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Sources:     cli.EnvVars("DIGISELF_OPENAI_API_KEY", "OPENAI_API_KEY"),
			Usage:       "OpenAI API key",
			Destination: &x.llm.OpenAIAPIKey,
		},
		&cli.StringFlag{
			Name:        "claude-api-key",
			Sources:     cli.EnvVars("DIGISELF_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"),
			Usage:       "Anthropic API key",
			Destination: &x.llm.ClaudeAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Sources:     cli.EnvVars("DIGISELF_GEMINI_API_KEY", "GEMINI_API_KEY"),
			Usage:       "Gemini API key. Vertex AI is used when empty",
			Destination: &x.llm.GeminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gcp-project-id",
			Sources:     cli.EnvVars("DIGISELF_GCP_PROJECT_ID"),
			Usage:       "Google Cloud project for Vertex AI",
			Destination: &x.llm.GCPProjectID,
		},
		&cli.StringFlag{
			Name:        "gcp-location",
			Value:       "us-central1",
			Sources:     cli.EnvVars("DIGISELF_GCP_LOCATION"),
			Usage:       "Google Cloud location for Vertex AI",
			Destination: &x.llm.GCPLocation,
		},
		&cli.StringFlag{
			Name:        "personas",
			Sources:     cli.EnvVars("DIGISELF_PERSONAS"),
			Usage:       "YAML file with persona definitions per mode",
			Destination: &x.personas,
		},
		&cli.StringFlag{
			Name:        "google-client-id",
			Sources:     cli.EnvVars("DIGISELF_GOOGLE_CLIENT_ID"),
			Usage:       "Google OAuth client id for Calendar",
			Destination: &x.google.ClientID,
		},
		&cli.StringFlag{
			Name:        "google-client-secret",
			Sources:     cli.EnvVars("DIGISELF_GOOGLE_CLIENT_SECRET"),
			Usage:       "Google OAuth client secret for Calendar",
			Destination: &x.google.ClientSecret,
		},
		&cli.StringFlag{
			Name:        "google-refresh-token",
			Sources:     cli.EnvVars("DIGISELF_GOOGLE_REFRESH_TOKEN"),
			Usage:       "Google OAuth refresh token for Calendar",
			Destination: &x.google.RefreshToken,
		},
		&cli.StringFlag{
			Name:        "calendar-id",
			Value:       calendar.DefaultCalendarID,
			Sources:     cli.EnvVars("DIGISELF_CALENDAR_ID"),
			Usage:       "Google Calendar id",
			Destination: &x.calendarID,
		},
		&cli.StringFlag{
			Name:        "timezone",
			Sources:     cli.EnvVars("DIGISELF_TIMEZONE", "TZ"),
			Usage:       "IANA time zone for times without an offset. Local zone when empty",
			Destination: &x.timezone,
		},
		&cli.StringFlag{
			Name:        "trace-dir",
			Sources:     cli.EnvVars("DIGISELF_TRACE_DIR"),
			Usage:       "Directory to save chat and plan traces as JSON",
			Destination: &x.traceDir,
		},
		&cli.BoolFlag{
			Name:        "otel",
			Sources:     cli.EnvVars("DIGISELF_OTEL"),
			Usage:       "Emit chat and plan traces as OpenTelemetry spans",
			Destination: &x.otel,
		},
	}
}

func (x *appConfig) location() (*time.Location, error) {
	if x.timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(x.timezone)
	if err != nil {
		return nil, goerr.Wrap(digiself.ErrInvalidParameter, "unknown time zone", goerr.V("timezone", x.timezone))
	}
	return loc, nil
}

func (x *appConfig) repository(ctx context.Context) (digiself.Repository, func(), error) {
	if x.dbPath == "" {
		return inmemory.New(), func() {}, nil
	}

	repo, err := sqlite.New(ctx, x.dbPath)
	if err != nil {
		return nil, nil, err
	}
	return repo, func() { _ = repo.Close() }, nil
}

// newTrace returns the factory of per-turn trace handlers.
func (x *appConfig) newTrace(logger *slog.Logger, mode string) func() trace.Handler {
	var repo trace.Repository
	if x.traceDir != "" {
		repo = trace.NewFileRepository(x.traceDir)
	}

	return func() trace.Handler {
		handlers := []trace.Handler{
			tracelogger.New(tracelogger.WithLogger(logger)),
		}
		if repo != nil {
			handlers = append(handlers, trace.New(
				trace.WithRepository(repo),
				trace.WithLogger(logger),
				trace.WithMetadata(trace.TraceMetadata{Model: x.llm.Model, Mode: mode}),
			))
		}
		if x.otel {
			handlers = append(handlers, traceotel.New())
		}
		return trace.Multi(handlers...)
	}
}

// buildApp wires storage, LLM, RAG, calendar and tracing from the flags.
// Chat is disabled rather than failing when the LLM credential is missing,
// and meetings stay local when no calendar credential is given.
func (x *appConfig) buildApp(ctx context.Context, logger *slog.Logger) (*app.App, func(), error) {
	loc, err := x.location()
	if err != nil {
		return nil, nil, err
	}

	repo, closer, err := x.repository(ctx)
	if err != nil {
		return nil, nil, err
	}

	opts := []app.Option{
		app.WithLogger(logger),
		app.WithReducerOptions(digiself.WithLocation(loc)),
		app.WithSyncOptions(calendar.WithLocation(loc)),
	}

	mode, err := repo.GetMode(ctx)
	if err != nil {
		closer()
		return nil, nil, err
	}
	newTrace := x.newTrace(logger, mode)
	opts = append(opts, app.WithTrace(newTrace))

	client, err := llm.New(ctx, x.llm)
	switch {
	case errors.Is(err, digiself.ErrMissingCredential):
		logger.Warn("LLM credential is missing, chat is disabled", slog.Any("llm", x.llm), slog.Any("error", err))
	case err != nil:
		closer()
		return nil, nil, err
	default:
		assistantOpts := []digiself.AssistantOption{
			digiself.WithLogger(logger),
			digiself.WithTrace(newTrace),
		}
		if x.personas != "" {
			personas, err := digiself.LoadPersonas(x.personas)
			if err != nil {
				closer()
				return nil, nil, err
			}
			assistantOpts = append(assistantOpts, digiself.WithPersonas(personas))
		}

		if embedder, ok := llm.Embedder(client); ok {
			index := rag.New(embedder, rag.WithLogger(logger))
			opts = append(opts, app.WithMemoryIndex(index))
			assistantOpts = append(assistantOpts, digiself.WithRecaller(index))
		}

		opts = append(opts, app.WithAssistant(digiself.NewAssistant(client, assistantOpts...)))
		logger.Info("LLM configured", slog.Any("llm", x.llm))
	}

	if x.google.Connected() {
		gcal, err := calendar.NewGoogle(ctx, x.google,
			calendar.WithCalendarID(x.calendarID),
			calendar.WithGoogleLogger(logger),
		)
		if err != nil {
			closer()
			return nil, nil, err
		}
		opts = append(opts, app.WithCalendar(gcal))
	}

	return app.New(repo, opts...), closer, nil
}
