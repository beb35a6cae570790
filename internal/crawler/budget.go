package crawler

import (
	"sync"
)

// NodeBudget caps the number of topics accepted into the graph
type NodeBudget struct {
	max   int
	mu    sync.Mutex
	count int
}

// NewNodeBudget creates a budget of max topics; max <= 0 means unlimited
func NewNodeBudget(max int) *NodeBudget {
	return &NodeBudget{max: max}
}

// Add consumes one unit of budget.
// Returns false if the budget is exhausted.
func (b *NodeBudget) Add() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max > 0 && b.count >= b.max {
		return false
	}
	b.count++
	return true
}

// Count returns the number of topics accepted so far
func (b *NodeBudget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
