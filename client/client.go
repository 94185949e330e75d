// Package client is a Go client of the digiself REST API, plus Workspace, an
// in-memory mirror of the server state that applies planner actions
// optimistically.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/goerr/v2"
)

// ErrStatus is wrapped by every error caused by a non-2xx response. The
// status code and server message are attached as goerr values.
var ErrStatus = errors.New("unexpected status code")

// Client calls the REST API served by `digiself serve`.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, goerr.Wrap(digiself.ErrInvalidParameter, "invalid server URL", goerr.V("url", baseURL))
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return goerr.Wrap(err, "failed to marshal request", goerr.V("path", path))
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return goerr.Wrap(err, "failed to create request", goerr.V("path", path))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to send request", goerr.V("method", method), goerr.V("path", path))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e apiError
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return goerr.Wrap(statusError(resp.StatusCode), e.Error,
			goerr.V("method", method),
			goerr.V("path", path),
			goerr.V("status", resp.StatusCode),
		)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerr.Wrap(err, "failed to decode response", goerr.V("path", path))
	}
	return nil
}

// statusError maps a status code back to the sentinel the server mapped it from.
func statusError(code int) error {
	switch code {
	case http.StatusNotFound:
		return digiself.ErrNotFound
	case http.StatusBadRequest:
		return digiself.ErrInvalidParameter
	case http.StatusConflict:
		return digiself.ErrCalendarNotConnected
	default:
		return ErrStatus
	}
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

// State fetches every collection and snapshot.
func (c *Client) State(ctx context.Context) (digiself.State, error) {
	var (
		state digiself.State
		err   error
	)
	if state.Diary, err = c.ListDiary(ctx); err != nil {
		return digiself.State{}, err
	}
	if state.Meetings, err = c.ListMeetings(ctx); err != nil {
		return digiself.State{}, err
	}
	if state.Notifications, err = c.ListNotifications(ctx); err != nil {
		return digiself.State{}, err
	}
	if state.Memories, err = c.ListMemories(ctx); err != nil {
		return digiself.State{}, err
	}
	if state.Focus, err = c.GetFocus(ctx); err != nil {
		return digiself.State{}, err
	}
	profile, err := c.GetProfile(ctx)
	if err != nil {
		return digiself.State{}, err
	}
	state.Profile = *profile
	if state.Mode, err = c.GetMode(ctx); err != nil {
		return digiself.State{}, err
	}
	return state, nil
}

func (c *Client) ListDiary(ctx context.Context) ([]digiself.DiaryEntry, error) {
	var out struct {
		Diary []digiself.DiaryEntry `json:"diary"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/diary", nil, &out); err != nil {
		return nil, err
	}
	return out.Diary, nil
}

// CreateDiary posts an entry. A set ID and CreatedAt are kept by the server.
func (c *Client) CreateDiary(ctx context.Context, entry digiself.DiaryEntry) (*digiself.DiaryEntry, error) {
	var out digiself.DiaryEntry
	if err := c.do(ctx, http.MethodPost, "/api/diary", entry, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteDiary(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/diary/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListMeetings(ctx context.Context) ([]digiself.Meeting, error) {
	var out struct {
		Meetings []digiself.Meeting `json:"meetings"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/meetings", nil, &out); err != nil {
		return nil, err
	}
	return out.Meetings, nil
}

// CreateMeeting posts a meeting. The returned meeting carries the external
// event id when the server mirrored it to a calendar.
func (c *Client) CreateMeeting(ctx context.Context, meeting digiself.Meeting) (*digiself.Meeting, error) {
	var out digiself.Meeting
	if err := c.do(ctx, http.MethodPost, "/api/meetings", meeting, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteMeeting(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/meetings/"+url.PathEscape(id), nil, nil)
}

// SyncResult is the response of SyncCalendar.
type SyncResult struct {
	Created  int                `json:"created"`
	Updated  int                `json:"updated"`
	Meetings []digiself.Meeting `json:"meetings"`
}

// SyncCalendar asks the server to pull calendar events. It fails with
// digiself.ErrCalendarNotConnected when the server has no calendar.
func (c *Client) SyncCalendar(ctx context.Context) (*SyncResult, error) {
	var out SyncResult
	if err := c.do(ctx, http.MethodPost, "/api/calendar/sync", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListNotifications(ctx context.Context) ([]digiself.Notification, error) {
	var out struct {
		Notifications []digiself.Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/notifications", nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

func (c *Client) AddNotification(ctx context.Context, n digiself.Notification) (*digiself.Notification, error) {
	var out digiself.Notification
	if err := c.do(ctx, http.MethodPost, "/api/notifications", n, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) (*digiself.Notification, error) {
	var out digiself.Notification
	if err := c.do(ctx, http.MethodPost, "/api/notifications/"+url.PathEscape(id)+"/read", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type focusBody struct {
	Focus []string `json:"focus"`
}

func (c *Client) GetFocus(ctx context.Context) ([]string, error) {
	var out focusBody
	if err := c.do(ctx, http.MethodGet, "/api/focus", nil, &out); err != nil {
		return nil, err
	}
	return out.Focus, nil
}

// PutFocus replaces the focus list and returns it as stored.
func (c *Client) PutFocus(ctx context.Context, focus []string) ([]string, error) {
	var out focusBody
	if err := c.do(ctx, http.MethodPut, "/api/focus", focusBody{Focus: focus}, &out); err != nil {
		return nil, err
	}
	return out.Focus, nil
}

func (c *Client) ListMemories(ctx context.Context) ([]digiself.Memory, error) {
	var out struct {
		Memories []digiself.Memory `json:"memories"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/memories", nil, &out); err != nil {
		return nil, err
	}
	return out.Memories, nil
}

func (c *Client) Memorize(ctx context.Context, memory digiself.Memory) (*digiself.Memory, error) {
	var out digiself.Memory
	if err := c.do(ctx, http.MethodPost, "/api/memories", memory, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetProfile(ctx context.Context) (*digiself.Profile, error) {
	var out digiself.Profile
	if err := c.do(ctx, http.MethodGet, "/api/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile merges fields into the profile. Keys other than name, bio and
// timezone are stored as preferences.
func (c *Client) UpdateProfile(ctx context.Context, fields map[string]any) (*digiself.Profile, error) {
	var out digiself.Profile
	if err := c.do(ctx, http.MethodPatch, "/api/profile", fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type modeBody struct {
	Mode string `json:"mode"`
}

func (c *Client) GetMode(ctx context.Context) (string, error) {
	var out modeBody
	if err := c.do(ctx, http.MethodGet, "/api/mode", nil, &out); err != nil {
		return "", err
	}
	return out.Mode, nil
}

func (c *Client) PutMode(ctx context.Context, mode string) (string, error) {
	var out modeBody
	if err := c.do(ctx, http.MethodPut, "/api/mode", modeBody{Mode: mode}, &out); err != nil {
		return "", err
	}
	return out.Mode, nil
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string             `json:"message"`
	History []digiself.Message `json:"history,omitempty"`
}

// Chat sends a message. The server does not apply the returned actions.
func (c *Client) Chat(ctx context.Context, message string, history []digiself.Message) (*digiself.AssistantResponse, error) {
	var out digiself.AssistantResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", ChatRequest{Message: message, History: history}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExecutePlan asks the server to apply actions and returns one effect per action.
func (c *Client) ExecutePlan(ctx context.Context, actions []digiself.PlannerAction) ([]digiself.Effect, error) {
	in := struct {
		Actions []digiself.PlannerAction `json:"actions"`
	}{Actions: actions}
	var out struct {
		Effects []digiself.Effect `json:"effects"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/plans", in, &out); err != nil {
		return nil, err
	}
	return out.Effects, nil
}
