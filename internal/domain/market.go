package domain

type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Timeframe keys of the multi-timeframe pivot snapshot.
type Timeframe string

const (
	TimeframeDaily   Timeframe = "daily"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
)

// Tag maps a pivot timeframe to its source tag.
func (tf Timeframe) Tag() SourceTag {
	switch tf {
	case TimeframeWeekly:
		return TagPivotWeekly
	case TimeframeMonthly:
		return TagPivotMonthly
	}
	return TagPivotDaily
}

type FibonacciPivots struct {
	Pivot float64 `json:"pivot"`
	R1    float64 `json:"r1"`
	R2    float64 `json:"r2"`
	R3    float64 `json:"r3"`
	S1    float64 `json:"s1"`
	S2    float64 `json:"s2"`
	S3    float64 `json:"s3"`
}

type CamarillaPivots struct {
	R1 float64 `json:"r1"`
	R2 float64 `json:"r2"`
	R3 float64 `json:"r3"`
	R4 float64 `json:"r4"`
	S1 float64 `json:"s1"`
	S2 float64 `json:"s2"`
	S3 float64 `json:"s3"`
	S4 float64 `json:"s4"`
}

// PivotSet is one timeframe's classic pivot plus optional Fibonacci/Camarilla variants.
// Zero values mean "not provided".
type PivotSet struct {
	Pivot     float64          `json:"pivot"`
	R1        float64          `json:"r1"`
	R2        float64          `json:"r2"`
	R3        float64          `json:"r3"`
	R4        float64          `json:"r4"`
	S1        float64          `json:"s1"`
	S2        float64          `json:"s2"`
	S3        float64          `json:"s3"`
	S4        float64          `json:"s4"`
	Fibonacci *FibonacciPivots `json:"fibonacci,omitempty"`
	Camarilla *CamarillaPivots `json:"camarilla,omitempty"`
}

// Levels flattens the set into its non-zero price levels.
func (p *PivotSet) Levels() []float64 {
	if p == nil {
		return nil
	}
	raw := []float64{p.Pivot, p.R1, p.R2, p.R3, p.R4, p.S1, p.S2, p.S3, p.S4}
	if f := p.Fibonacci; f != nil {
		raw = append(raw, f.Pivot, f.R1, f.R2, f.R3, f.S1, f.S2, f.S3)
	}
	if c := p.Camarilla; c != nil {
		raw = append(raw, c.R1, c.R2, c.R3, c.R4, c.S1, c.S2, c.S3, c.S4)
	}
	out := raw[:0]
	for _, v := range raw {
		if v > 0 {
			out = append(out, v)
		}
	}
	return out
}

// MultiTimeframePivots is the pivot snapshot for one underlying instrument.
type MultiTimeframePivots struct {
	ScripCode   string    `json:"scripCode"`
	Daily       *PivotSet `json:"daily,omitempty"`
	Weekly      *PivotSet `json:"weekly,omitempty"`
	Monthly     *PivotSet `json:"monthly,omitempty"`
	PrevDaily   *PivotSet `json:"prevDaily,omitempty"`
	PrevWeekly  *PivotSet `json:"prevWeekly,omitempty"`
	PrevMonthly *PivotSet `json:"prevMonthly,omitempty"`
	UpdatedAtMs int64     `json:"updatedAt"`
}

// ByTimeframe returns every set belonging to a timeframe, previous period included.
func (m *MultiTimeframePivots) ByTimeframe() map[Timeframe][]*PivotSet {
	if m == nil {
		return nil
	}
	return map[Timeframe][]*PivotSet{
		TimeframeDaily:   {m.Daily, m.PrevDaily},
		TimeframeWeekly:  {m.Weekly, m.PrevWeekly},
		TimeframeMonthly: {m.Monthly, m.PrevMonthly},
	}
}

// IsEmpty reports whether the snapshot carries no usable level at all.
func (m *MultiTimeframePivots) IsEmpty() bool {
	for _, sets := range m.ByTimeframe() {
		for _, s := range sets {
			if len(s.Levels()) > 0 {
				return false
			}
		}
	}
	return true
}
