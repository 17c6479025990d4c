// Package cost defines cost estimates attributed to tasks and the model pricing table.
package cost

import "math"

// Estimate is the cost attached to a task on entering the done state.
// It is immutable once attached.
type Estimate struct {
	USD          float64 `json:"usd"`
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	Messages     int     `json:"messages"`
}

// TaskCost is one entry of the tag-split mapping: a task's accumulated share
// of every session that referenced it.
type TaskCost struct {
	Cost         float64 `json:"cost"`
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	Sessions     int     `json:"sessions"`
}

// Add accumulates other into c.
func (c *TaskCost) Add(other TaskCost) {
	c.Cost += other.Cost
	c.InputTokens += other.InputTokens
	c.OutputTokens += other.OutputTokens
	c.Sessions += other.Sessions
}

// RoundCents rounds a USD amount to two decimals.
func RoundCents(usd float64) float64 {
	return math.Round(usd*100) / 100
}

// Share splits a session total evenly across n tasks. Token counts are
// rounded half up per share.
func Share(totalUSD float64, input, output int64, n int) TaskCost {
	if n <= 0 {
		return TaskCost{}
	}
	return TaskCost{
		Cost:         totalUSD / float64(n),
		InputTokens:  int64(math.Round(float64(input) / float64(n))),
		OutputTokens: int64(math.Round(float64(output) / float64(n))),
		Sessions:     1,
	}
}
