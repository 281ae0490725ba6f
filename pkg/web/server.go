package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/geniass/pricecompare/pkg/compare"
	"github.com/geniass/pricecompare/pkg/history"
	"github.com/geniass/pricecompare/pkg/listing"
)

// Service is what the HTTP layer needs from service.Service.
type Service interface {
	ComparePrices(ctx context.Context, userID int64, query string) (*compare.PriceComparison, error)
	ProductDetails(ctx context.Context, query string) (listing.Product, error)
	History(ctx context.Context, userID int64) ([]history.SearchRecord, error)
	Remaining(ctx context.Context, userID int64) (int, error)
}

type Config struct {
	Port int
	// DefaultUser is used when a request names no user.
	DefaultUser int64
	CORSOrigins []string
	PathPrefix  string
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func NewServer(cfg Config, svc Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, svc, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, logger: logger}
}

// NewHandler registers every route and wraps them in the middleware chain.
func NewHandler(cfg Config, svc Service, logger *slog.Logger) http.Handler {
	h := &handlers{
		svc:         svc,
		defaultUser: cfg.DefaultUser,
		base:        BaseContext{PathPrefix: cfg.PathPrefix},
		logger:      logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.health)

	// JSON
	mux.HandleFunc("GET /price-comparison/{id}", h.priceComparison)
	mux.HandleFunc("GET /product/{id}", h.product)
	mux.HandleFunc("GET /search_history", h.searchHistory)

	// pages
	mux.HandleFunc("GET /{$}", h.home)
	mux.HandleFunc("GET /compare", h.comparePage)
	mux.HandleFunc("GET /compare/{id}", h.comparePage)
	mux.HandleFunc("GET /history", h.historyPage)

	var handler http.Handler = mux
	handler = Logging(logger)(handler)
	handler = CORS(cfg.CORSOrigins)(handler)
	return handler
}

// Start blocks until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
