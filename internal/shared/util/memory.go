package util

import "runtime"

// HeapAllocMB returns the live heap in MB.
func HeapAllocMB() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc >> 20
}

// MemoryBudget caps the heap at Fraction of BudgetMB. The zero value never
// reports pressure.
type MemoryBudget struct {
	BudgetMB uint64
	Fraction float64
}

func (b MemoryBudget) LimitMB() uint64 {
	if b.BudgetMB == 0 || b.Fraction <= 0 {
		return 0
	}
	return uint64(float64(b.BudgetMB) * b.Fraction)
}

// Exceeded reports the current heap and whether it is over the limit.
func (b MemoryBudget) Exceeded() (uint64, bool) {
	limit := b.LimitMB()
	if limit == 0 {
		return 0, false
	}
	heap := HeapAllocMB()
	return heap, heap > limit
}
