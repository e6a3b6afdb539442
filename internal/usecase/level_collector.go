package usecase

import (
	"github.com/Shiv7/trading-dashboard-sub004/internal/domain"
	"github.com/shopspring/decimal"
)

// LevelInputs is everything the collector needs at trade-open time.
type LevelInputs struct {
	EntryPrice           decimal.Decimal
	UnderlyingEntryPrice decimal.Decimal
	Delta                *float64
	Pivots               *domain.MultiTimeframePivots
	Candles              []domain.Candle
}

type CollectorConfig struct {
	DefaultDelta    float64
	MinSwingCandles int
	MaxSwingCandles int
	SwingNeighbors  int
}

func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		DefaultDelta:    0.5,
		MinSwingCandles: 30,
		MaxSwingCandles: 60,
		SwingNeighbors:  2,
	}
}

// LevelCollector turns pivots, candle history and the entry context into raw candidate levels.
type LevelCollector struct {
	cfg CollectorConfig
}

func NewLevelCollector(cfg CollectorConfig) *LevelCollector {
	return &LevelCollector{cfg: cfg}
}

// Collect returns the unscored, unclustered candidates. It has no side effects.
func (c *LevelCollector) Collect(in LevelInputs) []domain.CandidateLevel {
	var out []domain.CandidateLevel
	out = append(out, c.PivotLevels(in)...)
	out = append(out, c.SwingLevels(in.EntryPrice, in.Candles)...)
	out = append(out, RoundFigureLevels(in.EntryPrice)...)
	return out
}

// EffectiveDelta substitutes the default when the signal carries no delta.
func (c *LevelCollector) EffectiveDelta(delta *float64) decimal.Decimal {
	if delta == nil {
		return decimal.NewFromFloat(c.cfg.DefaultDelta)
	}
	return decimal.NewFromFloat(*delta)
}

// PivotLevels delta-adjusts every equity pivot into the option's price space:
// optionLevel = entry + delta * (L - underlyingEntry).
func (c *LevelCollector) PivotLevels(in LevelInputs) []domain.CandidateLevel {
	if in.Pivots == nil {
		return nil
	}
	delta := c.EffectiveDelta(in.Delta)
	byTF := in.Pivots.ByTimeframe()

	var out []domain.CandidateLevel
	// Fixed order keeps the output deterministic.
	for _, tf := range []domain.Timeframe{domain.TimeframeDaily, domain.TimeframeWeekly, domain.TimeframeMonthly} {
		for _, set := range byTF[tf] {
			for _, l := range set.Levels() {
				move := decimal.NewFromFloat(l).Sub(in.UnderlyingEntryPrice)
				price := in.EntryPrice.Add(delta.Mul(move))
				if lvl, ok := newCandidate(price, in.EntryPrice, tf.Tag()); ok {
					out = append(out, lvl)
				}
			}
		}
	}
	return out
}

// SwingLevels detects strict local highs and lows over the recent one-minute candles.
// With fewer than MinSwingCandles candles the source is skipped entirely.
func (c *LevelCollector) SwingLevels(entry decimal.Decimal, candles []domain.Candle) []domain.CandidateLevel {
	if len(candles) < c.cfg.MinSwingCandles {
		return nil
	}
	if c.cfg.MaxSwingCandles > 0 && len(candles) > c.cfg.MaxSwingCandles {
		candles = candles[len(candles)-c.cfg.MaxSwingCandles:]
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, k := range candles {
		highs[i] = k.High
		lows[i] = k.Low
	}

	var out []domain.CandidateLevel
	for _, p := range findSwings(highs, c.cfg.SwingNeighbors, func(a, b float64) bool { return a > b }) {
		if lvl, ok := newCandidate(decimal.NewFromFloat(p), entry, domain.TagSwingHigh); ok {
			out = append(out, lvl)
		}
	}
	for _, p := range findSwings(lows, c.cfg.SwingNeighbors, func(a, b float64) bool { return a < b }) {
		if lvl, ok := newCandidate(decimal.NewFromFloat(p), entry, domain.TagSwingLow); ok {
			out = append(out, lvl)
		}
	}
	return out
}

// findSwings returns values that beat all n neighbours on each side.
func findSwings(values []float64, n int, beats func(a, b float64) bool) []float64 {
	var out []float64
	for i := n; i < len(values)-n; i++ {
		isSwing := true
		for j := 1; j <= n; j++ {
			if !beats(values[i], values[i-j]) || !beats(values[i], values[i+j]) {
				isSwing = false
				break
			}
		}
		if isSwing && values[i] > 0 {
			out = append(out, values[i])
		}
	}
	return out
}

// RoundStep is the price-tier rounding step for round figures.
func RoundStep(price decimal.Decimal) decimal.Decimal {
	switch {
	case price.LessThan(decimal.NewFromInt(50)):
		return decimal.NewFromInt(5)
	case price.LessThan(decimal.NewFromInt(200)):
		return decimal.NewFromInt(10)
	default:
		return decimal.NewFromInt(25)
	}
}

// RoundFigureLevels emits round numbers between half and double the entry price.
func RoundFigureLevels(entry decimal.Decimal) []domain.CandidateLevel {
	if !entry.IsPositive() {
		return nil
	}
	step := RoundStep(entry)
	low := entry.Div(decimal.NewFromInt(2))
	high := entry.Mul(decimal.NewFromInt(2))

	var out []domain.CandidateLevel
	for p := low.Div(step).Ceil().Mul(step); p.LessThanOrEqual(high); p = p.Add(step) {
		if lvl, ok := newCandidate(p, entry, domain.TagRoundFigure); ok {
			out = append(out, lvl)
		}
	}
	return out
}

func newCandidate(price, entry decimal.Decimal, tag domain.SourceTag) (domain.CandidateLevel, bool) {
	if !price.IsPositive() || price.Equal(entry) {
		return domain.CandidateLevel{}, false
	}
	side := domain.LevelAbove
	if price.LessThan(entry) {
		side = domain.LevelBelow
	}
	return domain.CandidateLevel{
		Price: price,
		Tags:  domain.NewTagSet(tag),
		Side:  side,
	}, true
}
