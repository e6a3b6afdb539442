package domain

import "context"

// PivotSource reads the multi-timeframe pivot snapshot of an underlying.
type PivotSource interface {
	GetPivots(ctx context.Context, underlyingScripCode string) (*MultiTimeframePivots, error)
}

// OISource reads the latest OI snapshot of an option.
type OISource interface {
	GetOISnapshot(ctx context.Context, scripCode string) (*OISnapshot, error)
}

// CandleSource reads the most recent candles of an instrument, oldest first.
type CandleSource interface {
	GetCandles(ctx context.Context, scripCode, timeframe string, limit int) ([]Candle, error)
}

// DecisionRepository stores exit decisions for the trade-management surface.
type DecisionRepository interface {
	SaveExitDecision(ctx context.Context, d *ExitDecision) error
	ListExitDecisions(ctx context.Context, scripCode string, limit int) ([]*ExitDecision, error)
}
