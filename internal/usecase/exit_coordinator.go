package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Shiv7/trading-dashboard-sub004/internal/domain"
	"github.com/Shiv7/trading-dashboard-sub004/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PositionExitState is the mutable exit plan of one open position.
// It is only touched while holding the owning entry's lock.
type PositionExitState struct {
	ScripCode         string
	Side              domain.Side
	Quantity          int
	RemainingQuantity int
	TargetLadder      domain.TargetLadder
	LotAllocation     map[int]int
	TargetsHit        map[int]bool
	OiWindow          OiWindow
	ExitFlag          bool
	ExitPattern       string
	LastOiCheckMs     int64
	OpenedAt          time.Time
}

func (s *PositionExitState) snapshot() domain.PositionSnapshot {
	alloc := make(map[int]int, len(s.LotAllocation))
	for k, v := range s.LotAllocation {
		alloc[k] = v
	}
	hit := make([]int, 0, len(s.TargetsHit))
	for idx := range s.TargetsHit {
		hit = append(hit, idx)
	}
	sort.Ints(hit)

	snap := domain.PositionSnapshot{
		ScripCode:         s.ScripCode,
		Side:              s.Side,
		Quantity:          s.Quantity,
		RemainingQuantity: s.RemainingQuantity,
		TargetLadder:      s.TargetLadder,
		LotAllocation:     alloc,
		TargetsHit:        hit,
		OiWindow:          s.OiWindow.Readings(),
		ExitFlag:          s.ExitFlag,
		LastOiCheckMs:     s.LastOiCheckMs,
		OpenedAt:          s.OpenedAt,
	}
	if s.ExitPattern != "" {
		p := s.ExitPattern
		snap.ExitPattern = &p
	}
	return snap
}

type positionEntry struct {
	mu     sync.Mutex
	state  *PositionExitState
	closed bool
}

type CoordinatorConfig struct {
	SourceTimeout   time.Duration
	CandleTimeframe string
	CandleLimit     int
}

func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		SourceTimeout:   50 * time.Millisecond,
		CandleTimeframe: "1m",
		CandleLimit:     60,
	}
}

// ExitCoordinator owns every open position's exit state. Each position has its own
// lock; the registry lock only guards the map itself.
type ExitCoordinator struct {
	cfg       CoordinatorConfig
	pivots    domain.PivotSource
	candles   domain.CandleSource
	decisions domain.DecisionRepository
	collector *LevelCollector
	scorer    *ConfluenceScorer
	allocator *LotAllocator
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.RWMutex
	positions map[string]*positionEntry
}

func NewExitCoordinator(
	cfg CoordinatorConfig,
	pivots domain.PivotSource,
	candles domain.CandleSource,
	decisions domain.DecisionRepository,
	collector *LevelCollector,
	scorer *ConfluenceScorer,
	allocator *LotAllocator,
	logger *zap.Logger,
) *ExitCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExitCoordinator{
		cfg:       cfg,
		pivots:    pivots,
		candles:   candles,
		decisions: decisions,
		collector: collector,
		scorer:    scorer,
		allocator: allocator,
		logger:    logger,
		now:       time.Now,
		positions: make(map[string]*positionEntry),
	}
}

// SetClock replaces the time source.
func (c *ExitCoordinator) SetClock(now func() time.Time) {
	c.now = now
}

func validateOpenRequest(req domain.OpenPositionRequest) error {
	switch {
	case req.ScripCode == "":
		return fmt.Errorf("%w: scrip code is required", domain.ErrInvalidRequest)
	case !req.Side.Valid():
		return fmt.Errorf("%w: side must be LONG or SHORT, got %q", domain.ErrInvalidRequest, req.Side)
	case req.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be positive, got %d", domain.ErrInvalidRequest, req.Quantity)
	case !req.EntryPrice.IsPositive():
		return fmt.Errorf("%w: entry price must be positive", domain.ErrInvalidRequest)
	case req.LotSize > 0 && req.Quantity%req.LotSize != 0:
		return fmt.Errorf("%w: quantity %d is not a multiple of lot size %d", domain.ErrInvalidRequest, req.Quantity, req.LotSize)
	}
	return nil
}

// OpenPosition computes the target ladder and lot allocation and starts tracking the
// position. Opening a scrip code that is already tracked replaces its state.
func (c *ExitCoordinator) OpenPosition(ctx context.Context, req domain.OpenPositionRequest) (domain.PositionSnapshot, error) {
	if err := validateOpenRequest(req); err != nil {
		return domain.PositionSnapshot{}, err
	}

	now := c.now()
	ladder := c.computeLadder(ctx, req, now)
	state := &PositionExitState{
		ScripCode:         req.ScripCode,
		Side:              req.Side,
		Quantity:          req.Quantity,
		RemainingQuantity: req.Quantity,
		TargetLadder:      ladder,
		LotAllocation:     c.allocator.Allocate(req.Quantity, req.LotSize, ladder),
		TargetsHit:        make(map[int]bool),
		OpenedAt:          now,
	}
	entry := &positionEntry{state: state}

	c.mu.Lock()
	prev := c.positions[req.ScripCode]
	c.positions[req.ScripCode] = entry
	open := len(c.positions)
	c.mu.Unlock()

	if prev != nil {
		prev.mu.Lock()
		prev.closed = true
		prev.mu.Unlock()
		c.logger.Info("Position re-opened, exit state replaced", zap.String("scrip", req.ScripCode))
	}
	metrics.OpenPositions.Set(float64(open))

	c.logger.Info("Position opened",
		zap.String("scrip", req.ScripCode),
		zap.String("side", string(req.Side)),
		zap.Int("quantity", req.Quantity),
		zap.String("ladder_source", string(ladder.Source)),
		zap.Any("allocation", state.LotAllocation),
	)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return state.snapshot(), nil
}

func (c *ExitCoordinator) computeLadder(ctx context.Context, req domain.OpenPositionRequest, now time.Time) domain.TargetLadder {
	log := c.logger.With(zap.String("scrip", req.ScripCode), zap.String("underlying", req.UnderlyingScripCode))

	pivots, err := c.fetchPivots(ctx, req.UnderlyingScripCode)
	if err != nil {
		metrics.SourceFallbacks.WithLabelValues("pivots").Inc()
		log.Warn("Pivot source unavailable, using static targets", zap.String("source", "pivots"), zap.Error(err))
		return req.StaticTargets.Ladder(now)
	}
	if pivots == nil || pivots.IsEmpty() {
		metrics.SourceFallbacks.WithLabelValues("pivots").Inc()
		log.Warn("No pivot levels for underlying, using static targets", zap.String("source", "pivots"))
		return req.StaticTargets.Ladder(now)
	}

	candles, err := c.fetchCandles(ctx, req.ScripCode)
	if err != nil {
		metrics.SourceFallbacks.WithLabelValues("candles").Inc()
		log.Warn("Candle history unavailable, swing levels skipped", zap.String("source", "candles"), zap.Error(err))
		candles = nil
	} else if len(candles) < c.collector.cfg.MinSwingCandles {
		metrics.SourceFallbacks.WithLabelValues("candles").Inc()
		log.Info("Not enough candles for swing detection, swing levels skipped",
			zap.String("source", "candles"),
			zap.Int("candles", len(candles)),
			zap.Int("required", c.collector.cfg.MinSwingCandles),
		)
	}

	if req.Delta == nil {
		log.Info("Delta missing, using default", zap.Float64("delta", c.collector.cfg.DefaultDelta))
	}

	candidates := c.collector.Collect(LevelInputs{
		EntryPrice:           req.EntryPrice,
		UnderlyingEntryPrice: req.UnderlyingEntryPrice,
		Delta:                req.Delta,
		Pivots:               pivots,
		Candles:              candles,
	})
	ladder := c.scorer.BuildLadder(candidates, req.EntryPrice, req.Side, req.StaticTargets, now)
	if ladder.Source == domain.LadderStatic {
		metrics.SourceFallbacks.WithLabelValues("pivots").Inc()
		log.Warn("Pivots produced no usable candidates, using static targets", zap.String("source", "pivots"))
	}
	return ladder
}

func (c *ExitCoordinator) fetchPivots(ctx context.Context, underlying string) (*domain.MultiTimeframePivots, error) {
	if c.pivots == nil || underlying == "" {
		return nil, fmt.Errorf("%w: no pivot source for %q", domain.ErrDataUnavailable, underlying)
	}
	ctx, cancel := c.sourceContext(ctx)
	defer cancel()
	return c.pivots.GetPivots(ctx, underlying)
}

func (c *ExitCoordinator) fetchCandles(ctx context.Context, scripCode string) ([]domain.Candle, error) {
	if c.candles == nil {
		return nil, fmt.Errorf("%w: no candle source", domain.ErrDataUnavailable)
	}
	ctx, cancel := c.sourceContext(ctx)
	defer cancel()
	return c.candles.GetCandles(ctx, scripCode, c.cfg.CandleTimeframe, c.cfg.CandleLimit)
}

func (c *ExitCoordinator) sourceContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.SourceTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.SourceTimeout)
}

func (c *ExitCoordinator) lookup(scripCode string) (*positionEntry, error) {
	c.mu.RLock()
	e, ok := c.positions[scripCode]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownPosition, scripCode)
	}
	return e, nil
}

// UpdateState runs fn on the position's state while holding its lock.
func (c *ExitCoordinator) UpdateState(scripCode string, fn func(*PositionExitState)) error {
	e, err := c.lookup(scripCode)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("%w: %s", domain.ErrUnknownPosition, scripCode)
	}
	fn(e.state)
	return nil
}

// OnTargetHit resolves a target touch against the current exit flag. With the flag
// set every remaining lot is closed, otherwise only the target's allocation.
func (c *ExitCoordinator) OnTargetHit(ctx context.Context, scripCode string, targetIndex int) (domain.ExitDecision, error) {
	if targetIndex < 1 || targetIndex > domain.MaxTargets {
		return domain.ExitDecision{}, fmt.Errorf("%w: target index %d out of range", domain.ErrInvalidRequest, targetIndex)
	}
	e, err := c.lookup(scripCode)
	if err != nil {
		return domain.ExitDecision{}, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return domain.ExitDecision{}, fmt.Errorf("%w: %s", domain.ErrUnknownPosition, scripCode)
	}
	d := c.resolveTarget(e.state, targetIndex, 0)
	if d.FullyClosed() {
		c.destroyLocked(e)
	}
	e.mu.Unlock()

	c.record(ctx, d)
	return d, nil
}

// OnPrice checks a market price against the position's untouched targets and its
// stop-loss, resolving every touch in ladder order.
func (c *ExitCoordinator) OnPrice(ctx context.Context, scripCode string, price decimal.Decimal) ([]domain.ExitDecision, error) {
	e, err := c.lookup(scripCode)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownPosition, scripCode)
	}
	s := e.state
	pf, _ := price.Float64()

	var out []domain.ExitDecision
	for idx := 1; idx <= domain.MaxTargets && s.RemainingQuantity > 0; idx++ {
		t := s.TargetLadder.Target(idx)
		if !t.Valid || s.TargetsHit[idx] || !targetTouched(s.Side, price, t.Decimal) {
			continue
		}
		out = append(out, c.resolveTarget(s, idx, pf))
	}
	if sl := s.TargetLadder.StopLoss; s.RemainingQuantity > 0 && sl.Valid && stopTouched(s.Side, price, sl.Decimal) {
		out = append(out, c.closeRemaining(s, 0, "SL all lots", pf))
	}
	if len(out) > 0 && out[len(out)-1].FullyClosed() {
		c.destroyLocked(e)
	}
	e.mu.Unlock()

	for _, d := range out {
		c.record(ctx, d)
	}
	return out, nil
}

func targetTouched(side domain.Side, price, target decimal.Decimal) bool {
	if side == domain.SideShort {
		return price.LessThanOrEqual(target)
	}
	return price.GreaterThanOrEqual(target)
}

func stopTouched(side domain.Side, price, stop decimal.Decimal) bool {
	if side == domain.SideShort {
		return price.GreaterThanOrEqual(stop)
	}
	return price.LessThanOrEqual(stop)
}

// resolveTarget must be called with the entry lock held. A target that already
// fired closes nothing further.
func (c *ExitCoordinator) resolveTarget(s *PositionExitState, idx int, price float64) domain.ExitDecision {
	if s.ExitFlag {
		return c.closeRemaining(s, idx, fmt.Sprintf("T%d all lots (%s)", idx, s.ExitPattern), price)
	}

	qty := 0
	if !s.TargetsHit[idx] {
		qty = s.LotAllocation[idx]
		if qty > s.RemainingQuantity {
			qty = s.RemainingQuantity
		}
	}
	s.TargetsHit[idx] = true
	s.RemainingQuantity -= qty
	return c.newDecision(s, idx, qty, false, fmt.Sprintf("T%d partial", idx), price)
}

func (c *ExitCoordinator) closeRemaining(s *PositionExitState, idx int, reason string, price float64) domain.ExitDecision {
	qty := s.RemainingQuantity
	if idx > 0 {
		s.TargetsHit[idx] = true
	}
	s.RemainingQuantity = 0
	return c.newDecision(s, idx, qty, true, reason, price)
}

func (c *ExitCoordinator) newDecision(s *PositionExitState, idx, qty int, all bool, reason string, price float64) domain.ExitDecision {
	return domain.ExitDecision{
		ID:                uuid.NewString(),
		ScripCode:         s.ScripCode,
		TargetIndex:       idx,
		Quantity:          qty,
		RemainingQuantity: s.RemainingQuantity,
		CloseAll:          all,
		Reason:            reason,
		Price:             price,
		CreatedAt:         c.now(),
	}
}

func (c *ExitCoordinator) record(ctx context.Context, d domain.ExitDecision) {
	kind := "partial"
	switch {
	case d.TargetIndex == 0:
		kind = "stop"
	case d.CloseAll:
		kind = "all"
	}
	metrics.ExitDecisions.WithLabelValues(kind).Inc()

	c.logger.Info("Exit decision",
		zap.String("scrip", d.ScripCode),
		zap.Int("target", d.TargetIndex),
		zap.Int("quantity", d.Quantity),
		zap.Int("remaining", d.RemainingQuantity),
		zap.String("reason", d.Reason),
	)
	if c.decisions == nil {
		return
	}
	if err := c.decisions.SaveExitDecision(ctx, &d); err != nil {
		c.logger.Error("Failed to save exit decision", zap.String("scrip", d.ScripCode), zap.Error(err))
	}
}

// destroyLocked drops a fully exited position. Caller holds e.mu.
func (c *ExitCoordinator) destroyLocked(e *positionEntry) {
	e.closed = true
	c.mu.Lock()
	if c.positions[e.state.ScripCode] == e {
		delete(c.positions, e.state.ScripCode)
	}
	open := len(c.positions)
	c.mu.Unlock()
	metrics.OpenPositions.Set(float64(open))
	c.logger.Info("Position fully exited", zap.String("scrip", e.state.ScripCode))
}

// ClosePosition stops tracking a position and discards its exit state, OI window
// and exit flag. Closing an untracked scrip code changes nothing and reports
// ErrUnknownPosition.
func (c *ExitCoordinator) ClosePosition(ctx context.Context, scripCode string) error {
	c.mu.Lock()
	e, ok := c.positions[scripCode]
	delete(c.positions, scripCode)
	open := len(c.positions)
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownPosition, scripCode)
	}
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	metrics.OpenPositions.Set(float64(open))
	c.logger.Info("Position closed", zap.String("scrip", scripCode))
	return nil
}

// Snapshot returns a copy of one position's exit state.
func (c *ExitCoordinator) Snapshot(scripCode string) (domain.PositionSnapshot, error) {
	e, err := c.lookup(scripCode)
	if err != nil {
		return domain.PositionSnapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return domain.PositionSnapshot{}, fmt.Errorf("%w: %s", domain.ErrUnknownPosition, scripCode)
	}
	return e.state.snapshot(), nil
}

// Snapshots returns every open position ordered by scrip code.
func (c *ExitCoordinator) Snapshots() []domain.PositionSnapshot {
	var out []domain.PositionSnapshot
	for _, code := range c.OpenScripCodes() {
		snap, err := c.Snapshot(code)
		if errors.Is(err, domain.ErrUnknownPosition) {
			continue
		}
		out = append(out, snap)
	}
	return out
}

// OpenScripCodes lists the tracked positions in a stable order.
func (c *ExitCoordinator) OpenScripCodes() []string {
	c.mu.RLock()
	codes := make([]string, 0, len(c.positions))
	for code := range c.positions {
		codes = append(codes, code)
	}
	c.mu.RUnlock()
	sort.Strings(codes)
	return codes
}
