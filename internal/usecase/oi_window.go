package usecase

import "github.com/Shiv7/trading-dashboard-sub004/internal/domain"

// OiWindowSize is the fixed capacity of a position's OI window.
const OiWindowSize = 5

// OiWindow keeps the most recent OI readings in insertion order.
// It is not safe for concurrent use; the owning position's lock guards it.
type OiWindow struct {
	readings []domain.OiReading
}

// Push appends a reading and evicts the oldest once the window is full.
func (w *OiWindow) Push(r domain.OiReading) {
	if len(w.readings) == OiWindowSize {
		copy(w.readings, w.readings[1:])
		w.readings = w.readings[:OiWindowSize-1]
	}
	w.readings = append(w.readings, r)
}

func (w *OiWindow) Len() int {
	return len(w.readings)
}

func (w *OiWindow) Full() bool {
	return len(w.readings) == OiWindowSize
}

// Readings returns a copy, oldest first.
func (w *OiWindow) Readings() []domain.OiReading {
	out := make([]domain.OiReading, len(w.readings))
	copy(out, w.readings)
	return out
}

func (w *OiWindow) Clear() {
	w.readings = nil
}
