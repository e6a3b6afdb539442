package usecase

import (
	"fmt"

	"github.com/Shiv7/trading-dashboard-sub004/internal/domain"
)

const (
	oiVoteThreshold     = 3
	oiVoteMinConfidence = 0.5
)

// DangerPattern is the OI interpretation that threatens a position of the given side.
func DangerPattern(side domain.Side) domain.OiInterpretation {
	if side == domain.SideShort {
		return domain.OiShortCovering
	}
	return domain.OiLongUnwinding
}

// EvaluateOiPattern is the majority vote over a full window. It counts readings that
// match the side's danger pattern with confidence above 0.5, in any position of the
// window, and fires at three or more. A partially filled window never fires.
func EvaluateOiPattern(side domain.Side, readings []domain.OiReading) (bool, string) {
	if len(readings) < OiWindowSize {
		return false, ""
	}
	danger := DangerPattern(side)
	count := 0
	for _, r := range readings {
		if r.Interpretation == danger && r.Confidence > oiVoteMinConfidence {
			count++
		}
	}
	if count < oiVoteThreshold {
		return false, ""
	}
	return true, fmt.Sprintf("%s %d/%d", danger, count, len(readings))
}
