package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cuemby/rackmon/pkg/config"
	"github.com/cuemby/rackmon/pkg/log"
	"github.com/cuemby/rackmon/pkg/metrics"
	"github.com/cuemby/rackmon/pkg/registry"
	"github.com/cuemby/rackmon/pkg/zones"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ZoneService answers zone queries
type ZoneService interface {
	Summary(ctx context.Context) (*zones.Summary, error)
	Describe(ctx context.Context, name string) (*zones.Description, error)
}

// ServiceRegistry answers critical service queries and updates
type ServiceRegistry interface {
	List(ctx context.Context) (*registry.ServiceList, error)
	Describe(ctx context.Context, name string) (*registry.ServiceDescription, error)
	StatusList(ctx context.Context) (*registry.StatusList, error)
	Update(ctx context.Context, payload []byte, opts registry.UpdateOptions) (*registry.UpdateResult, error)
}

// Server exposes zones and critical services over HTTP, plus an optional
// gRPC health endpoint
type Server struct {
	cfg      config.ServerConfig
	zones    ZoneService
	registry ServiceRegistry
	checker  *metrics.HealthChecker
	router   *mux.Router
	http     *http.Server
	grpc     *grpc.Server
	health   *health.Server
	logger   zerolog.Logger
}

// NewServer creates a server and registers its routes
func NewServer(cfg config.ServerConfig, zoneSvc ZoneService, reg ServiceRegistry, checker *metrics.HealthChecker) *Server {
	s := &Server{
		cfg:      cfg,
		zones:    zoneSvc,
		registry: reg,
		checker:  checker,
		router:   mux.NewRouter(),
		health:   health.NewServer(),
		logger:   log.WithComponent("api"),
	}
	s.routes()

	s.http = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.grpc = grpc.NewServer(grpc.UnaryInterceptor(HealthSyncInterceptor(checker, s.health)))
	healthpb.RegisterHealthServer(s.grpc, s.health)
	return s
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	chain := []mux.MiddlewareFunc{requestID, recovery(s.logger), logging, instrument}
	s.router.Use(chain...)

	s.router.Handle("/health", s.checker.HealthHandler()).Methods(http.MethodGet)
	s.router.Handle("/ready", s.checker.ReadyHandler()).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	s.router.HandleFunc("/zones", s.listZones).Methods(http.MethodGet)
	s.router.HandleFunc("/zones/{zone}", s.describeZone).Methods(http.MethodGet)

	// the status route must be registered before the {name} route
	s.router.HandleFunc("/criticalservices", s.listServices).Methods(http.MethodGet)
	s.router.HandleFunc("/criticalservices/status", s.listServiceStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/criticalservices/{name}", s.describeService).Methods(http.MethodGet)

	var update http.Handler = http.HandlerFunc(s.updateServices)
	if s.cfg.UpdateRate > 0 {
		update = newRateLimiter(s.cfg.UpdateRate, s.cfg.UpdateBurst).limit(update)
	}
	s.router.Handle("/criticalservices", update).Methods(http.MethodPatch)

	// unmatched requests bypass router.Use
	s.router.NotFoundHandler = wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "endpoint not found"})
	}), chain)
	s.router.MethodNotAllowedHandler = wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	}), chain)
}

// wrap applies chain to h, first element outermost
func wrap(h http.Handler, chain []mux.MiddlewareFunc) http.Handler {
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

// Start serves HTTP, and gRPC health when an address is configured, until
// ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		s.logger.Info().Str("addr", s.cfg.Address).Msg("Starting HTTP server")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}()

	if s.cfg.GRPCAddress != "" {
		lis, err := net.Listen("tcp", s.cfg.GRPCAddress)
		if err != nil {
			s.http.Close()
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.GRPCAddress, err)
		}
		go func() {
			s.logger.Info().Str("addr", s.cfg.GRPCAddress).Msg("Starting gRPC health server")
			if err := s.grpc.Serve(lis); err != nil {
				errCh <- fmt.Errorf("failed to serve gRPC: %w", err)
			}
		}()
	}

	s.checker.UpdateComponent(metrics.ComponentAPI, true, "serving")
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	select {
	case err := <-errCh:
		s.Stop()
		return err
	case <-ctx.Done():
		return s.Stop()
	}
}

// Stop drains both servers
func (s *Server) Stop() error {
	s.checker.UpdateComponent(metrics.ComponentAPI, false, "shutting down")
	s.health.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info().Msg("Shutting down API servers")
	s.grpc.GracefulStop()
	return s.http.Shutdown(ctx)
}
