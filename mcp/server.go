// Package mcp exposes planner actions and read access to the state as MCP
// tools, so that an external agent can act as the planner.
package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/digiself/app"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	// DefaultServerName is the server name advertised to MCP clients.
	DefaultServerName = "digiself"
	// DefaultServerVersion is the server version advertised to MCP clients.
	DefaultServerVersion = "0.1.0"
)

const instructions = `Digital Self keeps the user's diary, meetings, notifications, focus list and memories.
Use the create tools to change them; every argument is optional and missing values get defaults.`

// Server is an MCP server backed by an app.App.
type Server struct {
	app    *app.App
	mcp    *server.MCPServer
	logger *slog.Logger

	name    string
	version string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithServerInfo overrides the advertised name and version.
func WithServerInfo(name, version string) Option {
	return func(s *Server) {
		s.name = name
		s.version = version
	}
}

// New creates a Server and registers its tools.
func New(x *app.App, opts ...Option) *Server {
	s := &Server{
		app:     x,
		logger:  slog.New(slog.DiscardHandler),
		name:    DefaultServerName,
		version: DefaultServerVersion,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(s.name, s.version,
		server.WithToolCapabilities(false),
		server.WithInstructions(instructions),
		server.WithRecovery(),
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying server, e.g. for an in-process client.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Serve speaks MCP over in and out until ctx is cancelled or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return goerr.Wrap(err, "MCP server stopped")
	}
	return nil
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("create_diary",
		mcp.WithDescription("Create a diary entry."),
		mcp.WithString("diaryType", mcp.Description("Kind of entry, e.g. Reflection, Gratitude. Default: Reflection")),
		mcp.WithString("title", mcp.Description("Title. Default: New Entry")),
		mcp.WithString("content", mcp.Description("Body text")),
	), s.actionTool(digiself.ActionCreateDiary))

	s.mcp.AddTool(mcp.NewTool("create_meeting",
		mcp.WithDescription("Schedule a meeting. It is also added to the connected calendar."),
		mcp.WithString("title", mcp.Description("Title. Default: New Meeting")),
		mcp.WithString("startTime", mcp.Description("Start time, RFC3339 or 'YYYY-MM-DD HH:MM'. Default: one hour from now")),
		mcp.WithString("endTime", mcp.Description("End time. Default: one hour after start")),
		mcp.WithArray("attendees", mcp.Description("Attendee email addresses"), mcp.WithStringItems()),
	), s.actionTool(digiself.ActionCreateMeeting))

	s.mcp.AddTool(mcp.NewTool("add_notification",
		mcp.WithDescription("Add a notification for the user."),
		mcp.WithString("message", mcp.Required(), mcp.Description("Notification text")),
	), s.actionTool(digiself.ActionAddNotification))

	s.mcp.AddTool(mcp.NewTool("set_focus",
		mcp.WithDescription("Put an item at the top of the focus list. Only the latest three items are kept."),
		mcp.WithString("focusText", mcp.Required(), mcp.Description("Focus item")),
	), s.actionTool(digiself.ActionSetFocus))

	s.mcp.AddTool(mcp.NewTool("memorize",
		mcp.WithDescription("Remember a fact about the user."),
		mcp.WithString("content", mcp.Required(), mcp.Description("The fact to remember")),
	), s.actionTool(digiself.ActionMemorize))

	s.mcp.AddTool(mcp.NewTool("list_diary",
		mcp.WithDescription("List diary entries, oldest first."),
	), s.handleListDiary)

	s.mcp.AddTool(mcp.NewTool("list_meetings",
		mcp.WithDescription("List meetings ordered by start time."),
	), s.handleListMeetings)
}

// actionTool returns a handler that runs the tool arguments as a single
// planner action of typ.
func (s *Server) actionTool(typ digiself.ActionType) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		action := digiself.PlannerAction{
			Type:    typ,
			Payload: digiself.Payload(req.GetArguments()),
		}

		effects, err := s.app.ExecutePlan(ctx, []digiself.PlannerAction{action})
		if err != nil {
			s.logger.Error("failed to execute tool", "tool", req.Params.Name, "error", err)
			return mcp.NewToolResultErrorFromErr("failed to execute "+req.Params.Name, err), nil
		}

		eff := effects[0]
		switch {
		case !eff.Applied:
			return mcp.NewToolResultError(eff.Reason), nil
		case eff.Error != "":
			return mcp.NewToolResultError(eff.Error), nil
		}
		return jsonResult(eff)
	}
}

func (s *Server) handleListDiary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	diary, err := s.app.ListDiary(ctx)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to list diary", err), nil
	}
	if diary == nil {
		diary = []digiself.DiaryEntry{}
	}
	return jsonResult(map[string]any{"diary": diary})
}

func (s *Server) handleListMeetings(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	meetings, err := s.app.ListMeetings(ctx)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to list meetings", err), nil
	}
	if meetings == nil {
		meetings = []digiself.Meeting{}
	}
	return jsonResult(map[string]any{"meetings": meetings})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal tool result")
	}
	return mcp.NewToolResultText(string(raw)), nil
}
