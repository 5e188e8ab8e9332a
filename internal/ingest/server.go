// Package ingest — HTTP API, через который хост CI сообщает о сборках,
// узлах, событиях безопасности и статусе. Уведомления проверяются по
// встроенным JSON Schema и передаются в listener.
package ingest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Kargones/ci-telemetry/internal/adapter/buildstore"
	"github.com/Kargones/ci-telemetry/internal/listener"
	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
	"github.com/Kargones/ci-telemetry/internal/pkg/metrics"
)

// Listener — обработчик уведомлений (listener.Listener).
type Listener interface {
	OnStarted(ctx context.Context, b listener.Build)
	OnCompleted(ctx context.Context, b listener.Build)
	OnCheckout(ctx context.Context, b listener.Build)
	OnNode(ctx context.Context, e listener.NodeEvent)
	OnSecurity(ctx context.Context, e listener.SecurityEvent)
	OnConfigChanged(ctx context.Context, e listener.ConfigChange)
}

// StatusSink принимает статус хоста (listener.StatusPublisher).
type StatusSink interface {
	Update(s listener.HostStatus)
}

// Deps — зависимости сервера.
type Deps struct {
	Listener  Listener
	Status    StatusSink
	Store     buildstore.Store
	Resolver  *buildstore.Resolver
	Collector metrics.Collector
	Logger    logging.Logger
}

// Server — HTTP сервер ingest API.
type Server struct {
	cfg       Config
	deps      Deps
	validator *validator
	router    *mux.Router
	server    *http.Server
	logger    logging.Logger
}

// NewServer создаёт Server. Схемы компилируются сразу.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	v, err := newValidator()
	if err != nil {
		return nil, err
	}
	if deps.Collector == nil {
		deps.Collector = metrics.NewNopCollector()
	}
	if deps.Store == nil {
		deps.Store = buildstore.NewMemoryStore(0)
	}
	if deps.Resolver == nil {
		deps.Resolver = buildstore.NewResolver(deps.Store, 0, deps.Logger)
	}

	s := &Server{
		cfg:       cfg,
		deps:      deps,
		validator: v,
		logger:    logging.Component(deps.Logger, "ingest"),
	}
	s.router = s.routes()
	s.server = &http.Server{
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.observe)

	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", s.deps.Collector.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/builds/{phase:started|completed}", s.handleBuild).Methods(http.MethodPost)
	api.HandleFunc("/scm/checkout", s.handleCheckout).Methods(http.MethodPost)
	api.HandleFunc("/nodes/{state}", s.handleNode).Methods(http.MethodPost)
	api.HandleFunc("/security/{kind}", s.handleSecurity).Methods(http.MethodPost)
	api.HandleFunc("/config/changed", s.handleConfigChanged).Methods(http.MethodPost)
	api.HandleFunc("/host/status", s.handleHostStatus).Methods(http.MethodPost)
	return r
}

// Handler возвращает корневой http.Handler (для тестов и встраивания).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve принимает соединения на ln до отмены ctx, затем корректно завершает сервер.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()
	s.logger.Info("ingest API запущен", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("ingest API остановлен")
	return nil
}

// ListenAndServe слушает cfg.ListenAddr и вызывает Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}
