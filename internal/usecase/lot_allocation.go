package usecase

import "github.com/Shiv7/trading-dashboard-sub004/internal/domain"

// LotAllocator splits a position's quantity across its targets in whole lots.
type LotAllocator struct {
	weights [domain.MaxTargets]int
}

// NewLotAllocator takes per-target weights for T1..T4, e.g. 40/30/20/10.
func NewLotAllocator(weights []int) *LotAllocator {
	a := &LotAllocator{}
	for i := 0; i < len(weights) && i < domain.MaxTargets; i++ {
		if weights[i] > 0 {
			a.weights[i] = weights[i]
		}
	}
	return a
}

func DefaultLotAllocator() *LotAllocator {
	return NewLotAllocator([]int{40, 30, 20, 10})
}

// Allocate distributes quantity over the ladder's non-null targets. Weights are
// renormalised over those targets, floors are taken in lots and the leftover lots
// go to the nearest targets first. The values always sum to quantity when
// quantity is a multiple of lotSize. A ladder without targets puts everything on T1.
func (a *LotAllocator) Allocate(quantity, lotSize int, ladder domain.TargetLadder) map[int]int {
	if lotSize <= 0 {
		lotSize = 1
	}
	lots := quantity / lotSize

	var active []int
	totalWeight := 0
	for i := 1; i <= domain.MaxTargets; i++ {
		if ladder.Target(i).Valid {
			active = append(active, i)
			totalWeight += a.weights[i-1]
		}
	}
	if len(active) == 0 {
		return map[int]int{1: lots * lotSize}
	}

	alloc := make(map[int]int, len(active))
	assigned := 0
	for _, idx := range active {
		n := 0
		if totalWeight > 0 {
			n = lots * a.weights[idx-1] / totalWeight
		}
		alloc[idx] = n
		assigned += n
	}
	for i := 0; assigned < lots; i = (i + 1) % len(active) {
		alloc[active[i]]++
		assigned++
	}

	for idx := range alloc {
		alloc[idx] *= lotSize
	}
	return alloc
}
