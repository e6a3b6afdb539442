package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SourceTag names the data source a candidate price level came from.
type SourceTag string

const (
	TagPivotDaily   SourceTag = "PIVOT_DAILY"
	TagPivotWeekly  SourceTag = "PIVOT_WEEKLY"
	TagPivotMonthly SourceTag = "PIVOT_MONTHLY"
	TagSwingHigh    SourceTag = "SWING_HIGH"
	TagSwingLow     SourceTag = "SWING_LOW"
	TagRoundFigure  SourceTag = "ROUND_FIGURE"
)

func (t SourceTag) IsPivot() bool {
	return t == TagPivotDaily || t == TagPivotWeekly || t == TagPivotMonthly
}

func (t SourceTag) IsSwing() bool {
	return t == TagSwingHigh || t == TagSwingLow
}

// LevelSide is the position of a level relative to the option entry price.
type LevelSide string

const (
	LevelAbove LevelSide = "ABOVE"
	LevelBelow LevelSide = "BELOW"
)

// TagSet is a set of source tags. Multiple tags on one level mean confluence.
type TagSet map[SourceTag]struct{}

func NewTagSet(tags ...SourceTag) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

func (s TagSet) Has(t SourceTag) bool {
	_, ok := s[t]
	return ok
}

func (s TagSet) Add(t SourceTag) {
	s[t] = struct{}{}
}

// Sorted returns the tags in a stable order for logging and JSON.
func (s TagSet) Sorted() []SourceTag {
	out := make([]SourceTag, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CandidateLevel is a raw or clustered price level considered for the target ladder.
type CandidateLevel struct {
	Price decimal.Decimal `json:"price"`
	Score int             `json:"score"`
	Tags  TagSet          `json:"-"`
	Side  LevelSide       `json:"side"`
}

// LadderSource records how a ladder was produced.
type LadderSource string

const (
	LadderConfluence LadderSource = "CONFLUENCE"
	LadderStatic     LadderSource = "STATIC"
)

// TargetLadder holds T1..T4 and the stop-loss for one position.
// Any slot may be null when not enough qualifying levels exist.
type TargetLadder struct {
	T1         decimal.NullDecimal `json:"t1"`
	T2         decimal.NullDecimal `json:"t2"`
	T3         decimal.NullDecimal `json:"t3"`
	T4         decimal.NullDecimal `json:"t4"`
	StopLoss   decimal.NullDecimal `json:"stopLoss"`
	Source     LadderSource        `json:"source"`
	ComputedAt time.Time           `json:"computedAt"`
}

// MaxTargets is the number of target slots in a ladder.
const MaxTargets = 4

// Target returns the target for a 1-based index.
func (l TargetLadder) Target(index int) decimal.NullDecimal {
	switch index {
	case 1:
		return l.T1
	case 2:
		return l.T2
	case 3:
		return l.T3
	case 4:
		return l.T4
	}
	return decimal.NullDecimal{}
}

// SetTarget assigns the target for a 1-based index.
func (l *TargetLadder) SetTarget(index int, price decimal.Decimal) {
	v := decimal.NewNullDecimal(price)
	switch index {
	case 1:
		l.T1 = v
	case 2:
		l.T2 = v
	case 3:
		l.T3 = v
	case 4:
		l.T4 = v
	}
}

// StaticTargets are the original (non-confluence) targets carried by the upstream signal.
type StaticTargets struct {
	T1       decimal.NullDecimal `json:"t1"`
	T2       decimal.NullDecimal `json:"t2"`
	T3       decimal.NullDecimal `json:"t3"`
	T4       decimal.NullDecimal `json:"t4"`
	StopLoss decimal.NullDecimal `json:"stopLoss"`
}

// Ladder converts the static targets into a ladder stamped with the given time.
func (s StaticTargets) Ladder(at time.Time) TargetLadder {
	return TargetLadder{
		T1:         s.T1,
		T2:         s.T2,
		T3:         s.T3,
		T4:         s.T4,
		StopLoss:   s.StopLoss,
		Source:     LadderStatic,
		ComputedAt: at,
	}
}
