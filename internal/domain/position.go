package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// OpenPositionRequest carries the entry context of a strategy trade on an option.
type OpenPositionRequest struct {
	ScripCode            string          `json:"scripCode"`
	UnderlyingScripCode  string          `json:"underlyingScripCode"`
	Side                 Side            `json:"side"`
	EntryPrice           decimal.Decimal `json:"entryPrice"`
	UnderlyingEntryPrice decimal.Decimal `json:"underlyingEntryPrice"`
	Delta                *float64        `json:"delta,omitempty"`
	Quantity             int             `json:"quantity"`
	LotSize              int             `json:"lotSize"`
	StaticTargets        StaticTargets   `json:"staticTargets"`
}

// PositionSnapshot is a read-only copy of a position's exit state.
type PositionSnapshot struct {
	ScripCode         string       `json:"scripCode"`
	Side              Side         `json:"side"`
	Quantity          int          `json:"quantity"`
	RemainingQuantity int          `json:"remainingQuantity"`
	TargetLadder      TargetLadder `json:"targetLadder"`
	LotAllocation     map[int]int  `json:"lotAllocationPerTarget"`
	TargetsHit        []int        `json:"targetsHit"`
	OiWindow          []OiReading  `json:"oiWindow"`
	ExitFlag          bool         `json:"exitFlag"`
	ExitPattern       *string      `json:"exitPattern"`
	LastOiCheckMs     int64        `json:"lastOiCheckMs"`
	OpenedAt          time.Time    `json:"openedAt"`
}

// ExitDecision is the coordinator's answer to a target or stop touch.
type ExitDecision struct {
	ID                string    `json:"id"`
	ScripCode         string    `json:"scripCode"`
	TargetIndex       int       `json:"targetIndex"`
	Quantity          int       `json:"quantity"`
	RemainingQuantity int       `json:"remainingQuantity"`
	CloseAll          bool      `json:"closeAll"`
	Reason            string    `json:"reason"`
	Price             float64   `json:"price,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// FullyClosed reports whether the decision leaves nothing open.
func (d ExitDecision) FullyClosed() bool {
	return d.RemainingQuantity == 0
}
