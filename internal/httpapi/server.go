package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/christiandamico04/thesis-translation-backend/internal/config"
	"github.com/christiandamico04/thesis-translation-backend/internal/jobs"
	"github.com/christiandamico04/thesis-translation-backend/internal/persistence"
	"github.com/christiandamico04/thesis-translation-backend/internal/service"
	"github.com/christiandamico04/thesis-translation-backend/internal/storage"
)

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

type Server struct {
	store    *persistence.SQLiteStore
	files    *storage.Storage
	queue    *jobs.Queue
	runner   *service.Runner
	settings runtimeSettingsStore
	apply    runtimeSettingsApplier

	maxUploadBytes int64

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		s.maxUploadBytes = n
	}
}

func NewServer(store *persistence.SQLiteStore, files *storage.Storage, queue *jobs.Queue, runner *service.Runner, opts ...Option) *Server {
	s := &Server{
		store:          store,
		files:          files,
		queue:          queue,
		runner:         runner,
		maxUploadBytes: 32 << 20,
		mux:            http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/files", s.handleFiles)
	s.mux.HandleFunc("/api/files/", s.handleFileSubtree)
	s.mux.HandleFunc("/api/translations", s.handleTranslations)
	s.mux.HandleFunc("/api/translations/", s.handleTranslationSubtree)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/jobs/stream", s.handleJobStream)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.HandleFunc("/api/healthz", s.handleHealthz)
}
