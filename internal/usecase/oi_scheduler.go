package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Shiv7/trading-dashboard-sub004/internal/domain"
	"go.uber.org/zap"
)

// OpenPositionLister lists the scrip codes currently tracked.
type OpenPositionLister interface {
	OpenScripCodes() []string
}

// OiScheduler refreshes OI for every open position on a fixed period. Each position
// is refreshed in its own goroutine; a position whose previous refresh is still in
// flight is skipped for that tick.
type OiScheduler struct {
	tracker   *OiTracker
	positions OpenPositionLister
	interval  time.Duration
	logger    *zap.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewOiScheduler(tracker *OiTracker, positions OpenPositionLister, interval time.Duration, logger *zap.Logger) *OiScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &OiScheduler{
		tracker:   tracker,
		positions: positions,
		interval:  interval,
		logger:    logger,
		inFlight:  make(map[string]bool),
	}
}

// Start runs the polling loop until ctx is cancelled. Ticks never wait for the
// previous round to finish.
func (s *OiScheduler) Start(ctx context.Context) {
	s.logger.Info("Starting OI scheduler", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("OI scheduler stopped")
				return
			case <-ticker.C:
				go s.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce fans out one refresh per open position and waits for them.
func (s *OiScheduler) RunOnce(ctx context.Context) {
	var wg sync.WaitGroup
	for _, code := range s.positions.OpenScripCodes() {
		if !s.acquire(code) {
			s.logger.Debug("OI refresh still running, tick skipped", zap.String("scrip", code))
			continue
		}
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			defer s.release(code)
			s.refresh(ctx, code)
		}(code)
	}
	wg.Wait()
}

func (s *OiScheduler) refresh(ctx context.Context, code string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("OI refresh panicked", zap.String("scrip", code), zap.Any("panic", r))
		}
	}()

	err := s.tracker.Refresh(ctx, code)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUnknownPosition):
		s.logger.Debug("Position closed during OI refresh", zap.String("scrip", code))
	case errors.Is(err, domain.ErrDataUnavailable):
		s.logger.Info("OI snapshot unavailable, tick skipped", zap.String("scrip", code), zap.String("source", "oi"), zap.Error(err))
	default:
		s.logger.Warn("OI refresh failed, retrying next tick", zap.String("scrip", code), zap.String("source", "oi"), zap.Error(err))
	}
}

func (s *OiScheduler) acquire(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[code] {
		return false
	}
	s.inFlight[code] = true
	return true
}

func (s *OiScheduler) release(code string) {
	s.mu.Lock()
	delete(s.inFlight, code)
	s.mu.Unlock()
}
