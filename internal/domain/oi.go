package domain

import "fmt"

// OiInterpretation classifies an OI change combined with price direction.
type OiInterpretation string

const (
	OiLongBuildup   OiInterpretation = "LONG_BUILDUP"
	OiShortCovering OiInterpretation = "SHORT_COVERING"
	OiLongUnwinding OiInterpretation = "LONG_UNWINDING"
	OiShortBuildup  OiInterpretation = "SHORT_BUILDUP"
	OiNeutral       OiInterpretation = "NEUTRAL"
)

// ParseOiInterpretation validates an upstream interpretation string.
func ParseOiInterpretation(s string) (OiInterpretation, error) {
	switch v := OiInterpretation(s); v {
	case OiLongBuildup, OiShortCovering, OiLongUnwinding, OiShortBuildup, OiNeutral:
		return v, nil
	}
	return "", fmt.Errorf("unknown OI interpretation %q", s)
}

// OiReading is one accepted OI observation for an open position.
type OiReading struct {
	TimestampMs    int64            `json:"timestampMs"`
	Interpretation OiInterpretation `json:"interpretation"`
	ChangePercent  float64          `json:"changePercent"`
	Confidence     float64          `json:"confidence"`
}

// OISnapshot is the upstream OI record for one option instrument.
type OISnapshot struct {
	ScripCode                string  `json:"scripCode"`
	OiChange                 float64 `json:"oiChange"`
	OiChangePercent          float64 `json:"oiChangePercent"`
	Interpretation           string  `json:"interpretation"`
	InterpretationConfidence float64 `json:"interpretationConfidence"`
	TimestampMs              int64   `json:"timestamp"`
}
