package main

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/digiself/app"
	"github.com/m-mizutani/goerr/v2"
)

type serverOption func(*server)

func withAddr(addr string) serverOption {
	return func(s *server) {
		s.addr = addr
	}
}

func withSource(src traceSource) serverOption {
	return func(s *server) {
		s.source = src
	}
}

// withToken requires "Authorization: Bearer <token>" on every route except
// the health check.
func withToken(token string) serverOption {
	return func(s *server) {
		s.token = token
	}
}

func withLogger(logger *slog.Logger) serverOption {
	return func(s *server) {
		s.logger = logger
	}
}

type server struct {
	addr    string
	app     *app.App
	source  traceSource
	token   string
	schemas schemaSet
	logger  *slog.Logger
	router  chi.Router
}

func newServer(x *app.App, opts ...serverOption) (*server, error) {
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}

	s := &server{
		addr:    ":8080",
		app:     x,
		schemas: schemas,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s, nil
}

func (s *server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/api/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/api", func(r chi.Router) {
			r.Get("/diary", s.handleListDiary)
			r.Post("/diary", s.handleCreateDiary)
			r.Delete("/diary/{id}", s.handleDeleteDiary)

			r.Get("/meetings", s.handleListMeetings)
			r.Post("/meetings", s.handleCreateMeeting)
			r.Delete("/meetings/{id}", s.handleDeleteMeeting)
			r.Post("/calendar/sync", s.handleSyncCalendar)

			r.Get("/notifications", s.handleListNotifications)
			r.Post("/notifications", s.handleAddNotification)
			r.Post("/notifications/{id}/read", s.handleMarkNotificationRead)

			r.Get("/focus", s.handleGetFocus)
			r.Put("/focus", s.handlePutFocus)

			r.Get("/memories", s.handleListMemories)
			r.Post("/memories", s.handleMemorize)

			r.Get("/profile", s.handleGetProfile)
			r.Patch("/profile", s.handleUpdateProfile)

			r.Get("/mode", s.handleGetMode)
			r.Put("/mode", s.handlePutMode)

			r.Post("/chat", s.handleChat)
			r.Post("/plans", s.handleExecutePlan)

			r.Get("/traces", s.handleListTraces)
			r.Get("/traces/{id}", s.handleGetTrace)
		})
	})

	s.router = r
}

func (s *server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Info("access",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *server) handler() http.Handler {
	return s.router
}

func (s *server) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return goerr.Wrap(err, "failed to listen", goerr.V("addr", s.addr))
	}

	addr := listener.Addr().String()
	s.logger.Info("starting digiself server",
		slog.String("addr", addr),
		slog.Bool("auth", s.token != ""),
		slog.Bool("calendar", s.app.CalendarConnected()),
	)

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return goerr.Wrap(err, "server error")
	}

	return nil
}
