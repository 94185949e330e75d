package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/digiself/trace"
	"github.com/m-mizutani/goerr/v2"
)

const maxBodySize = 1 << 20

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg})
}

// errorStatus maps an error to its HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, digiself.ErrNotFound), errors.Is(err, trace.ErrTraceNotFound):
		return http.StatusNotFound
	case errors.Is(err, digiself.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, digiself.ErrCalendarNotConnected):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	} else {
		s.logger.Debug("request rejected",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	writeError(w, status, err.Error())
}

// decodeBody validates the body against schema and decodes it into v.
func (s *server) decodeBody(r *http.Request, schema string, v any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return goerr.Wrap(digiself.ErrInvalidParameter, "failed to read request body")
	}
	if err := s.schemas.validate(schema, raw); err != nil {
		return goerr.Wrap(digiself.ErrInvalidParameter, err.Error())
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return goerr.Wrap(digiself.ErrInvalidParameter, "failed to decode request body")
	}
	return nil
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"calendar_connected": s.app.CalendarConnected(),
	})
}

func (s *server) handleListDiary(w http.ResponseWriter, r *http.Request) {
	diary, err := s.app.ListDiary(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"diary": nonNil(diary)})
}

func (s *server) handleCreateDiary(w http.ResponseWriter, r *http.Request) {
	var payload digiself.Payload
	if err := s.decodeBody(r, "diary", &payload); err != nil {
		s.handleError(w, r, err)
		return
	}
	entry, err := s.app.CreateDiary(r.Context(), payload)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *server) handleDeleteDiary(w http.ResponseWriter, r *http.Request) {
	if err := s.app.DeleteDiary(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	meetings, err := s.app.ListMeetings(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"meetings": nonNil(meetings)})
}

func (s *server) handleCreateMeeting(w http.ResponseWriter, r *http.Request) {
	var payload digiself.Payload
	if err := s.decodeBody(r, "meeting", &payload); err != nil {
		s.handleError(w, r, err)
		return
	}
	meeting, err := s.app.CreateMeeting(r.Context(), payload)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, meeting)
}

func (s *server) handleDeleteMeeting(w http.ResponseWriter, r *http.Request) {
	if err := s.app.DeleteMeeting(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleSyncCalendar(w http.ResponseWriter, r *http.Request) {
	result, err := s.app.SyncCalendar(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := s.app.ListNotifications(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": nonNil(notifications)})
}

func (s *server) handleAddNotification(w http.ResponseWriter, r *http.Request) {
	var payload digiself.Payload
	if err := s.decodeBody(r, "notification", &payload); err != nil {
		s.handleError(w, r, err)
		return
	}
	n, err := s.app.AddNotification(r.Context(), payload)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.app.MarkNotificationRead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

type focusBody struct {
	Focus []string `json:"focus"`
}

func (s *server) handleGetFocus(w http.ResponseWriter, r *http.Request) {
	focus, err := s.app.GetFocus(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, focusBody{Focus: nonNil(focus)})
}

func (s *server) handlePutFocus(w http.ResponseWriter, r *http.Request) {
	var body focusBody
	if err := s.decodeBody(r, "focus", &body); err != nil {
		s.handleError(w, r, err)
		return
	}
	focus, err := s.app.SetFocus(r.Context(), body.Focus)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, focusBody{Focus: nonNil(focus)})
}

func (s *server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	memories, err := s.app.ListMemories(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": nonNil(memories)})
}

func (s *server) handleMemorize(w http.ResponseWriter, r *http.Request) {
	var payload digiself.Payload
	if err := s.decodeBody(r, "memory", &payload); err != nil {
		s.handleError(w, r, err)
		return
	}
	memory, err := s.app.Memorize(r.Context(), payload)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, memory)
}

func (s *server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.app.GetProfile(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var payload digiself.Payload
	if err := s.decodeBody(r, "profile", &payload); err != nil {
		s.handleError(w, r, err)
		return
	}
	profile, err := s.app.UpdateProfile(r.Context(), payload)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type modeBody struct {
	Mode string `json:"mode"`
}

func (s *server) handleGetMode(w http.ResponseWriter, r *http.Request) {
	mode, err := s.app.GetMode(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, modeBody{Mode: mode})
}

func (s *server) handlePutMode(w http.ResponseWriter, r *http.Request) {
	var body modeBody
	if err := s.decodeBody(r, "mode", &body); err != nil {
		s.handleError(w, r, err)
		return
	}
	mode, err := s.app.SetMode(r.Context(), body.Mode)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, modeBody{Mode: mode})
}

type chatRequest struct {
	Message string             `json:"message"`
	History []digiself.Message `json:"history"`
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := s.decodeBody(r, "chat", &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	resp, err := s.app.Chat(r.Context(), req.Message, req.History)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type planRequest struct {
	Actions []digiself.PlannerAction `json:"actions"`
}

type planResponse struct {
	Effects []digiself.Effect `json:"effects"`
}

func (s *server) handleExecutePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := s.decodeBody(r, "plan", &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	effects, err := s.app.ExecutePlan(r.Context(), req.Actions)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, planResponse{Effects: nonNil(effects)})
}

type listTracesResponse struct {
	Traces        []traceSummary `json:"traces"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

func (s *server) handleListTraces(w http.ResponseWriter, r *http.Request) {
	if s.source == nil {
		writeError(w, http.StatusNotFound, "trace storage is not configured")
		return
	}

	pageSize := defaultPageSize
	if v := r.URL.Query().Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid page_size parameter")
			return
		}
		pageSize = n
	}

	resp, err := s.source.List(r.Context(), listRequest{
		pageSize:  pageSize,
		pageToken: r.URL.Query().Get("page_token"),
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listTracesResponse{
		Traces:        nonNil(resp.traces),
		NextPageToken: resp.nextPageToken,
	})
}

func (s *server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	if s.source == nil {
		writeError(w, http.StatusNotFound, "trace storage is not configured")
		return
	}

	t, err := s.source.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
