package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/Shiv7/trading-dashboard-sub004/internal/domain"
	"github.com/Shiv7/trading-dashboard-sub004/internal/metrics"
	"go.uber.org/zap"
)

// PositionStateUpdater serialises mutations of one position's exit state.
type PositionStateUpdater interface {
	UpdateState(scripCode string, fn func(*PositionExitState)) error
}

type TrackerConfig struct {
	MinConfidence float64
	ReadTimeout   time.Duration
}

func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		MinConfidence: 0.3,
		ReadTimeout:   50 * time.Millisecond,
	}
}

// OiTracker feeds OI readings into each position's window and raises the exit flag
// when the danger pattern wins the vote.
type OiTracker struct {
	cfg       TrackerConfig
	source    domain.OISource
	positions PositionStateUpdater
	logger    *zap.Logger
	now       func() time.Time
}

func NewOiTracker(cfg TrackerConfig, source domain.OISource, positions PositionStateUpdater, logger *zap.Logger) *OiTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OiTracker{
		cfg:       cfg,
		source:    source,
		positions: positions,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock replaces the time source.
func (t *OiTracker) SetClock(now func() time.Time) {
	t.now = now
}

// Refresh processes one tick for one position. A missing snapshot skips the tick
// without touching the window; weak readings are dropped.
func (t *OiTracker) Refresh(ctx context.Context, scripCode string) error {
	snap, err := t.read(ctx, scripCode)
	if err != nil {
		metrics.OiTicks.WithLabelValues("unavailable").Inc()
		return err
	}
	interp, err := domain.ParseOiInterpretation(snap.Interpretation)
	if err != nil {
		metrics.OiTicks.WithLabelValues("unavailable").Inc()
		return fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
	}

	nowMs := t.now().UnixMilli()
	reading := domain.OiReading{
		TimestampMs:    snap.TimestampMs,
		Interpretation: interp,
		ChangePercent:  snap.OiChangePercent,
		Confidence:     snap.InterpretationConfidence,
	}
	if reading.TimestampMs == 0 {
		reading.TimestampMs = nowMs
	}
	weak := reading.Confidence < t.cfg.MinConfidence

	var flagged bool
	var pattern string
	var side domain.Side
	err = t.positions.UpdateState(scripCode, func(s *PositionExitState) {
		s.LastOiCheckMs = nowMs
		if weak {
			return
		}
		s.OiWindow.Push(reading)
		if s.ExitFlag {
			return
		}
		if ok, p := EvaluateOiPattern(s.Side, s.OiWindow.Readings()); ok {
			s.ExitFlag = true
			s.ExitPattern = p
			flagged, pattern, side = true, p, s.Side
		}
	})
	if err != nil {
		return err
	}

	if weak {
		metrics.OiTicks.WithLabelValues("discarded").Inc()
		t.logger.Debug("OI reading below confidence floor, discarded",
			zap.String("scrip", scripCode),
			zap.Float64("confidence", reading.Confidence),
		)
		return nil
	}
	metrics.OiTicks.WithLabelValues("accepted").Inc()
	if flagged {
		metrics.ExitFlags.WithLabelValues(string(DangerPattern(side))).Inc()
		t.logger.Warn("OI exit flag raised", zap.String("scrip", scripCode), zap.String("pattern", pattern))
	}
	return nil
}

func (t *OiTracker) read(ctx context.Context, scripCode string) (*domain.OISnapshot, error) {
	if t.source == nil {
		return nil, fmt.Errorf("%w: no OI source", domain.ErrDataUnavailable)
	}
	if t.cfg.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.ReadTimeout)
		defer cancel()
	}
	snap, err := t.source.GetOISnapshot(ctx, scripCode)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: empty OI snapshot for %s", domain.ErrDataUnavailable, scripCode)
	}
	return snap, nil
}
