// Package track accumulates usage metrics for the advisor: query and error
// counts, response times, and estimated token spend per generation model.
package track

import (
	"log/slog"
	"sync"
	"time"
)

// pricing is USD per 1K tokens. Experimental models are free tier.
type pricing struct {
	Input  float64
	Output float64
}

var modelPricing = map[string]pricing{
	"gemini-1.5-flash":     {Input: 0.000075, Output: 0.0003},
	"gemini-1.5-pro":       {Input: 0.00125, Output: 0.005},
	"gemini-2.0-flash-exp": {Input: 0, Output: 0},
}

// EstimateTokens approximates the token count of text at four characters
// per token, rounding up.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Metrics is a point-in-time snapshot of accumulated usage.
type Metrics struct {
	Uptime          time.Duration `json:"uptime"`
	QueryCount      int           `json:"query_count"`
	ToolCallCount   int           `json:"tool_call_count"`
	ErrorCount      int           `json:"error_count"`
	ErrorRate       float64       `json:"error_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	InputTokens     int           `json:"input_tokens"`
	OutputTokens    int           `json:"output_tokens"`
	EstimatedCost   float64       `json:"estimated_cost_usd"`
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu sync.Mutex

	start         time.Time
	queryCount    int
	toolCallCount int
	errorCount    int
	totalElapsed  time.Duration
	inputTokens   int
	outputTokens  int
	cost          float64

	logger *slog.Logger
}

func New() *Tracker {
	return &Tracker{start: time.Now(), logger: slog.Default()}
}

// RecordQuery logs one completed question round-trip. toolUsed is empty for
// the retrieval+generation path.
func (t *Tracker) RecordQuery(elapsed time.Duration, toolUsed string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.queryCount++
	t.totalElapsed += elapsed
	if toolUsed != "" {
		t.toolCallCount++
	}
	if err != nil {
		t.errorCount++
		t.logger.Warn("query failed", "elapsed", elapsed, "error", err)
		return
	}
	t.logger.Debug("query completed", "elapsed", elapsed, "tool", toolUsed)
}

// RecordGeneration accounts estimated token usage and cost for one model
// call. Unknown models are counted with zero cost.
func (t *Tracker) RecordGeneration(model, prompt, response string) {
	in := EstimateTokens(prompt)
	out := EstimateTokens(response)
	p := modelPricing[model]

	t.mu.Lock()
	defer t.mu.Unlock()

	t.inputTokens += in
	t.outputTokens += out
	t.cost += float64(in)/1000*p.Input + float64(out)/1000*p.Output
}

// Snapshot returns the current metrics.
func (t *Tracker) Snapshot() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := Metrics{
		Uptime:        time.Since(t.start),
		QueryCount:    t.queryCount,
		ToolCallCount: t.toolCallCount,
		ErrorCount:    t.errorCount,
		InputTokens:   t.inputTokens,
		OutputTokens:  t.outputTokens,
		EstimatedCost: t.cost,
	}
	if t.queryCount > 0 {
		m.ErrorRate = float64(t.errorCount) / float64(t.queryCount)
		m.AvgResponseTime = t.totalElapsed / time.Duration(t.queryCount)
	}
	return m
}
