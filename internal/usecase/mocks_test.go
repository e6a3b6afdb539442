package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/Shiv7/trading-dashboard-sub004/internal/domain"
	"github.com/Shiv7/trading-dashboard-sub004/internal/usecase"
	"github.com/shopspring/decimal"
)

// --- Mocks ---

type MockPivotSource struct {
	Pivots *domain.MultiTimeframePivots
	Err    error
	Delay  time.Duration
}

func (m *MockPivotSource) GetPivots(ctx context.Context, underlying string) (*domain.MultiTimeframePivots, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.Pivots, m.Err
}

type MockCandleSource struct {
	Candles []domain.Candle
	Err     error
}

func (m *MockCandleSource) GetCandles(ctx context.Context, scripCode, timeframe string, limit int) ([]domain.Candle, error) {
	return m.Candles, m.Err
}

// MockOISource returns queued snapshots per scrip, one per call. An exhausted
// queue or an error entry reports the data as unavailable.
type MockOISource struct {
	mu     sync.Mutex
	queue  map[string][]*domain.OISnapshot
	errs   map[string]error
	panics map[string]bool
	calls  map[string]int
}

func NewMockOISource() *MockOISource {
	return &MockOISource{
		queue:  make(map[string][]*domain.OISnapshot),
		errs:   make(map[string]error),
		panics: make(map[string]bool),
		calls:  make(map[string]int),
	}
}

func (m *MockOISource) Push(scripCode string, interp domain.OiInterpretation, confidence float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue[scripCode] = append(m.queue[scripCode], &domain.OISnapshot{
		ScripCode:                scripCode,
		Interpretation:           string(interp),
		InterpretationConfidence: confidence,
		TimestampMs:              int64(len(m.queue[scripCode]) + 1),
	})
}

func (m *MockOISource) Fail(scripCode string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[scripCode] = err
}

func (m *MockOISource) Panic(scripCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics[scripCode] = true
}

func (m *MockOISource) Calls(scripCode string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[scripCode]
}

func (m *MockOISource) GetOISnapshot(ctx context.Context, scripCode string) (*domain.OISnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[scripCode]++
	if m.panics[scripCode] {
		panic("oi source exploded")
	}
	if err := m.errs[scripCode]; err != nil {
		return nil, err
	}
	q := m.queue[scripCode]
	if len(q) == 0 {
		return nil, domain.ErrDataUnavailable
	}
	m.queue[scripCode] = q[1:]
	return q[0], nil
}

type MockDecisionRepo struct {
	mu        sync.Mutex
	Decisions []domain.ExitDecision
	Err       error
}

func (m *MockDecisionRepo) SaveExitDecision(ctx context.Context, d *domain.ExitDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Decisions = append(m.Decisions, *d)
	return m.Err
}

func (m *MockDecisionRepo) ListExitDecisions(ctx context.Context, scripCode string, limit int) ([]*domain.ExitDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ExitDecision
	for i := range m.Decisions {
		if scripCode == "" || m.Decisions[i].ScripCode == scripCode {
			d := m.Decisions[i]
			out = append(out, &d)
		}
	}
	return out, nil
}

func (m *MockDecisionRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Decisions)
}

// --- Fixtures ---

var fixedNow = time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func floatPtr(v float64) *float64 {
	return &v
}

// scenarioPivots: daily R1 3085, R2 3110, S1 3040 and weekly R1 3095.
func scenarioPivots() *domain.MultiTimeframePivots {
	return &domain.MultiTimeframePivots{
		ScripCode: "RELIANCE",
		Daily:     &domain.PivotSet{R1: 3085, R2: 3110, S1: 3040},
		Weekly:    &domain.PivotSet{R1: 3095},
	}
}

// scenarioCandles: 30 one-minute candles with swing highs at 34.5 and 28 and flat lows.
func scenarioCandles() []domain.Candle {
	candles := make([]domain.Candle, 30)
	for i := range candles {
		candles[i] = domain.Candle{Time: int64(i) * 60000, Open: 22, High: 25, Low: 20, Close: 22}
	}
	candles[10].High = 34.5
	candles[20].High = 28
	return candles
}

func scenarioStatic() domain.StaticTargets {
	return domain.StaticTargets{T1: nd("30"), T2: nd("35"), T3: nd("40"), T4: nd("45"), StopLoss: nd("18")}
}

func scenarioRequest(scrip string) domain.OpenPositionRequest {
	return domain.OpenPositionRequest{
		ScripCode:            scrip,
		UnderlyingScripCode:  "RELIANCE",
		Side:                 domain.SideLong,
		EntryPrice:           dec("22.50"),
		UnderlyingEntryPrice: dec("3057.60"),
		Delta:                floatPtr(0.35),
		Quantity:             750,
		LotSize:              75,
		StaticTargets:        scenarioStatic(),
	}
}

func scenarioInputs() usecase.LevelInputs {
	return usecase.LevelInputs{
		EntryPrice:           dec("22.50"),
		UnderlyingEntryPrice: dec("3057.60"),
		Delta:                floatPtr(0.35),
		Pivots:               scenarioPivots(),
		Candles:              scenarioCandles(),
	}
}

type coordinatorDeps struct {
	pivots  *MockPivotSource
	candles *MockCandleSource
	repo    *MockDecisionRepo
}

func newCoordinator(deps coordinatorDeps) *usecase.ExitCoordinator {
	if deps.pivots == nil {
		deps.pivots = &MockPivotSource{Pivots: scenarioPivots()}
	}
	if deps.candles == nil {
		deps.candles = &MockCandleSource{Candles: scenarioCandles()}
	}
	if deps.repo == nil {
		deps.repo = &MockDecisionRepo{}
	}
	c := usecase.NewExitCoordinator(
		usecase.DefaultCoordinatorConfig(),
		deps.pivots,
		deps.candles,
		deps.repo,
		usecase.NewLevelCollector(usecase.DefaultCollectorConfig()),
		usecase.NewConfluenceScorer(usecase.DefaultScorerConfig()),
		usecase.DefaultLotAllocator(),
		nil,
	)
	c.SetClock(func() time.Time { return fixedNow })
	return c
}
