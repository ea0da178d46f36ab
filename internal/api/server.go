// Package api exposes the harvest service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/parser"
	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/store"
)

// requestIDHeaderName is echoed on every response so callers can correlate
// logs with requests.
const requestIDHeaderName = "x-harvester-request-id"

// Store is the persistence surface the API needs.
type Store interface {
	Ping(ctx context.Context) error
	CreateImport(ctx context.Context, filename string) (store.Import, error)
	GetImport(ctx context.Context, importID string) (store.Import, error)
	InsertRows(ctx context.Context, rows []store.Row) error
	ListRows(ctx context.Context, importID, status, q string, limit int) ([]store.Row, error)
	GetRow(ctx context.Context, rowID string) (store.Row, error)
	UpdateRow(ctx context.Context, r store.Row) error
	RowsByIDs(ctx context.Context, rowIDs []string) ([]store.Row, error)
	RowsByStatuses(ctx context.Context, importID string, statuses []string) ([]store.Row, error)
	RowsForExport(ctx context.Context, importID string) ([]store.Row, error)
	CreateTask(ctx context.Context, importID string, force bool) (store.Task, error)
	GetTask(ctx context.Context, taskID string) (store.Task, error)
	InsertTaskRows(ctx context.Context, taskID string, rowIDs []string) error
	TaskCounts(ctx context.Context, taskID string) (map[string]int, error)
	MaybeFinishTask(ctx context.Context, taskID string) (bool, error)
}

// TaskRunner dispatches harvest work for task rows.
type TaskRunner interface {
	Enqueue(taskID, rowID string, force bool) bool
	Process(ctx context.Context, taskID, rowID string, force bool)
	Workers() int
}

// Config carries the server settings that do not come from dependencies.
type Config struct {
	CORSOrigins []string
	SearchReady bool
	Logger      *slog.Logger
}

type Server struct {
	router      *chi.Mux
	store       Store
	runner      TaskRunner
	engine      *parser.Engine
	logger      *slog.Logger
	corsOrigins []string
	searchReady bool
}

func NewServer(st Store, runner TaskRunner, engine *parser.Engine, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s := &Server{
		router:      chi.NewRouter(),
		store:       st,
		runner:      runner,
		engine:      engine,
		logger:      logger,
		corsOrigins: origins,
		searchReady: cfg.SearchReady,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(requestIDHeader)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{requestIDHeaderName},
	}))

	s.router.Get("/health", s.handleHealth)
	s.router.Post("/v1/imports", s.handleCreateImport)
	s.router.Get("/v1/imports/{importID}/rows", s.handleListRows)
	s.router.Get("/v1/exports/{importID}", s.handleExport)
	s.router.Post("/v1/tasks", s.handleCreateTask)
	s.router.Get("/v1/tasks/{taskID}", s.handleGetTask)
	s.router.Patch("/v1/rows/{rowID}", s.handleUpdateRow)
	s.router.Post("/v1/rows/{rowID}/rerun", s.handleRerunRow)
	s.router.Post("/v1/parser/re-parse", s.handleReparse)
	s.router.Post("/v1/parser/re-parse-batch", s.handleReparseBatch)
}

func (s *Server) Router() http.Handler {
	return s.router
}

// requestIDHeader copies the request id into the response so clients see
// the same id the logs carry.
func requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set(requestIDHeaderName, reqID)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
