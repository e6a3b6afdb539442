package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Shiv7/trading-dashboard-sub004/internal/domain"
	"github.com/Shiv7/trading-dashboard-sub004/internal/metrics"
	"github.com/Shiv7/trading-dashboard-sub004/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	router       *http.ServeMux
	server       *http.Server
	coordinator  *usecase.ExitCoordinator
	decisions    domain.DecisionRepository
	pushInterval time.Duration
	logger       *zap.Logger
}

func NewServer(
	port int,
	coordinator *usecase.ExitCoordinator,
	decisions domain.DecisionRepository,
	pushInterval time.Duration,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pushInterval <= 0 {
		pushInterval = 2 * time.Second
	}
	s := &Server{
		router:       http.NewServeMux(),
		coordinator:  coordinator,
		decisions:    decisions,
		pushInterval: pushInterval,
		logger:       logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Positions
	s.router.HandleFunc("GET /api/positions", s.handleListPositions)
	s.router.HandleFunc("POST /api/positions", s.handleOpenPosition)
	s.router.HandleFunc("GET /api/positions/{scripCode}", s.handleGetPosition)
	s.router.HandleFunc("POST /api/positions/{scripCode}/target-hit", s.handleTargetHit)
	s.router.HandleFunc("DELETE /api/positions/{scripCode}", s.handleClosePosition)

	// Decisions
	s.router.HandleFunc("GET /api/decisions", s.handleListDecisions)

	// Live snapshots
	s.router.HandleFunc("GET /ws/positions", s.handlePositionsStream)

	s.router.Handle("GET /metrics", metrics.Handler())
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
