package usecase

import (
	"sort"
	"time"

	"github.com/Shiv7/trading-dashboard-sub004/internal/domain"
	"github.com/shopspring/decimal"
)

type ScorerConfig struct {
	ClusterPct float64
	PivotPct   float64
	SwingPct   float64
	RoundPct   float64
	Precision  int32
}

func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		ClusterPct: 0.02,
		PivotPct:   0.02,
		SwingPct:   0.02,
		RoundPct:   0.01,
		Precision:  2,
	}
}

const (
	primaryTargetScore   = 2
	secondaryTargetScore = 1
	stopLossScore        = 2
)

// Cluster is a group of candidates merged by proximity.
// Price is the representative price, Center the mean of the members.
type Cluster struct {
	domain.CandidateLevel
	Center  decimal.Decimal
	Members []domain.CandidateLevel
}

// ConfluenceScorer clusters candidate levels and ranks them into a target ladder.
type ConfluenceScorer struct {
	clusterPct decimal.Decimal
	pivotPct   decimal.Decimal
	swingPct   decimal.Decimal
	roundPct   decimal.Decimal
	precision  int32
}

func NewConfluenceScorer(cfg ScorerConfig) *ConfluenceScorer {
	return &ConfluenceScorer{
		clusterPct: decimal.NewFromFloat(cfg.ClusterPct),
		pivotPct:   decimal.NewFromFloat(cfg.PivotPct),
		swingPct:   decimal.NewFromFloat(cfg.SwingPct),
		roundPct:   decimal.NewFromFloat(cfg.RoundPct),
		precision:  cfg.Precision,
	}
}

// Cluster sorts candidates by price and greedily merges neighbours within ClusterPct
// in a single pass. Levels on opposite sides of the entry are never merged.
func (s *ConfluenceScorer) Cluster(candidates []domain.CandidateLevel) []Cluster {
	sorted := make([]domain.CandidateLevel, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Price.Equal(sorted[j].Price) {
			return sorted[i].Price.LessThan(sorted[j].Price)
		}
		return firstTag(sorted[i].Tags) < firstTag(sorted[j].Tags)
	})

	var groups [][]domain.CandidateLevel
	for _, c := range sorted {
		if n := len(groups); n > 0 {
			last := groups[n-1][len(groups[n-1])-1]
			if last.Side == c.Side && within(last.Price, c.Price, s.clusterPct) {
				groups[n-1] = append(groups[n-1], c)
				continue
			}
		}
		groups = append(groups, []domain.CandidateLevel{c})
	}

	clusters := make([]Cluster, 0, len(groups))
	for _, g := range groups {
		clusters = append(clusters, s.buildCluster(g))
	}
	return clusters
}

func (s *ConfluenceScorer) buildCluster(members []domain.CandidateLevel) Cluster {
	sum := decimal.Zero
	tags := domain.NewTagSet()
	for _, m := range members {
		sum = sum.Add(m.Price)
		for t := range m.Tags {
			tags.Add(t)
		}
	}
	center := sum.Div(decimal.NewFromInt(int64(len(members))))

	price := center
	var round *decimal.Decimal
	for i := range members {
		if !members[i].Tags.Has(domain.TagRoundFigure) {
			continue
		}
		p := members[i].Price
		if round == nil || p.Sub(center).Abs().LessThan(round.Sub(center).Abs()) {
			round = &p
		}
	}
	if round != nil {
		price = *round
	}

	c := Cluster{
		CandidateLevel: domain.CandidateLevel{
			Price: price,
			Tags:  tags,
			Side:  members[0].Side,
		},
		Center:  center,
		Members: members,
	}
	c.Score = s.Score(c)
	return c
}

// Score runs the additive confluence checks against the cluster center:
// +2 pivot within PivotPct, +1 when two or more pivot timeframes share that band,
// +1 swing within SwingPct, +1 round figure within RoundPct.
func (s *ConfluenceScorer) Score(c Cluster) int {
	timeframes := domain.NewTagSet()
	swing, round := false, false
	for _, m := range c.Members {
		for t := range m.Tags {
			switch {
			case t.IsPivot() && within(c.Center, m.Price, s.pivotPct):
				timeframes.Add(t)
			case t.IsSwing() && within(c.Center, m.Price, s.swingPct):
				swing = true
			case t == domain.TagRoundFigure && within(c.Center, m.Price, s.roundPct):
				round = true
			}
		}
	}

	score := 0
	if len(timeframes) > 0 {
		score += 2
	}
	if len(timeframes) >= 2 {
		score++
	}
	if swing {
		score++
	}
	if round {
		score++
	}
	return score
}

// BuildLadder ranks clusters into T1..T4 and a stop-loss. Without any pivot candidate
// the ladder falls back entirely to the signal's static targets.
func (s *ConfluenceScorer) BuildLadder(candidates []domain.CandidateLevel, entry decimal.Decimal, side domain.Side, static domain.StaticTargets, now time.Time) domain.TargetLadder {
	if !hasPivot(candidates) {
		return static.Ladder(now)
	}

	profitSide, stopSide := domain.LevelAbove, domain.LevelBelow
	if side == domain.SideShort {
		profitSide, stopSide = domain.LevelBelow, domain.LevelAbove
	}

	clusters := s.Cluster(candidates)
	profit := rankByDistance(clusters, profitSide, entry)
	stop := rankByDistance(clusters, stopSide, entry)

	ladder := domain.TargetLadder{Source: domain.LadderConfluence, ComputedAt: now}

	// Targets are compared after rounding so that two clusters a tick apart
	// cannot land on the same price.
	var last decimal.Decimal
	assigned := false
	beyond := func(p decimal.Decimal) bool {
		d := p.Sub(entry).Abs()
		if !assigned {
			return d.IsPositive()
		}
		return d.GreaterThan(last.Sub(entry).Abs())
	}
	assign := func(index int, p decimal.Decimal) {
		ladder.SetTarget(index, p)
		last = p
		assigned = true
	}

	cursor := 0
	pick := func(minScore int) (decimal.Decimal, bool) {
		for i := cursor; i < len(profit); i++ {
			if profit[i].Score < minScore {
				continue
			}
			p := profit[i].Price.Round(s.precision)
			if !beyond(p) {
				continue
			}
			cursor = i + 1
			return p, true
		}
		return decimal.Decimal{}, false
	}

	if p, ok := pick(primaryTargetScore); ok {
		assign(1, p)
	}
	if p, ok := pick(primaryTargetScore); ok {
		assign(2, p)
	}
	if p, ok := pick(secondaryTargetScore); ok {
		assign(3, p)
	}
	if p, ok := pick(0); ok {
		assign(4, p)
	} else if raw, ok := farthestPivot(candidates, profitSide, entry); ok {
		// A raw pivot only stands as T4 when it sits clear of the last target's band.
		p := raw.Round(s.precision)
		if beyond(p) && (!assigned || !within(last, raw, s.clusterPct)) {
			assign(4, p)
		}
	}

	for _, c := range stop {
		if c.Score >= stopLossScore {
			ladder.StopLoss = decimal.NewNullDecimal(c.Price.Round(s.precision))
			break
		}
	}
	if !ladder.StopLoss.Valid {
		ladder.StopLoss = static.StopLoss
	}
	return ladder
}

// rankByDistance keeps one side's clusters, nearest to entry first.
// Equal distance is broken by higher score, then lower price.
func rankByDistance(clusters []Cluster, side domain.LevelSide, entry decimal.Decimal) []Cluster {
	var out []Cluster
	for _, c := range clusters {
		if c.Side == side {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Price.Sub(entry).Abs(), out[j].Price.Sub(entry).Abs()
		if !di.Equal(dj) {
			return di.LessThan(dj)
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

func farthestPivot(candidates []domain.CandidateLevel, side domain.LevelSide, entry decimal.Decimal) (decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false
	for _, c := range candidates {
		if c.Side != side || !hasPivotTag(c.Tags) {
			continue
		}
		if !found || c.Price.Sub(entry).Abs().GreaterThan(best.Sub(entry).Abs()) {
			best = c.Price
			found = true
		}
	}
	return best, found
}

func hasPivot(candidates []domain.CandidateLevel) bool {
	for _, c := range candidates {
		if hasPivotTag(c.Tags) {
			return true
		}
	}
	return false
}

func hasPivotTag(tags domain.TagSet) bool {
	for t := range tags {
		if t.IsPivot() {
			return true
		}
	}
	return false
}

// within reports |a-b| <= pct * min(a, b).
func within(a, b, pct decimal.Decimal) bool {
	ref := decimal.Min(a, b)
	return a.Sub(b).Abs().LessThanOrEqual(ref.Mul(pct))
}

func firstTag(tags domain.TagSet) domain.SourceTag {
	sorted := tags.Sorted()
	if len(sorted) == 0 {
		return ""
	}
	return sorted[0]
}
