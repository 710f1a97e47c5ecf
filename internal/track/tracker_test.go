package track

import (
	"errors"
	"testing"
	"time"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"12345678", 2},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestRecordQuery(t *testing.T) {
	tr := New()

	tr.RecordQuery(100*time.Millisecond, "", nil)
	tr.RecordQuery(300*time.Millisecond, "📊 Governor Limits Calculator", nil)
	tr.RecordQuery(200*time.Millisecond, "", errors.New("boom"))

	m := tr.Snapshot()
	if m.QueryCount != 3 {
		t.Errorf("QueryCount = %d, want 3", m.QueryCount)
	}
	if m.ToolCallCount != 1 {
		t.Errorf("ToolCallCount = %d, want 1", m.ToolCallCount)
	}
	if m.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", m.ErrorCount)
	}
	if m.AvgResponseTime != 200*time.Millisecond {
		t.Errorf("AvgResponseTime = %v, want 200ms", m.AvgResponseTime)
	}
	if want := 1.0 / 3.0; m.ErrorRate != want {
		t.Errorf("ErrorRate = %v, want %v", m.ErrorRate, want)
	}
}

func TestRecordGeneration(t *testing.T) {
	tr := New()

	prompt := string(make([]byte, 4000))   // 1000 tokens
	response := string(make([]byte, 2000)) // 500 tokens
	tr.RecordGeneration("gemini-1.5-flash", prompt, response)

	m := tr.Snapshot()
	if m.InputTokens != 1000 {
		t.Errorf("InputTokens = %d, want 1000", m.InputTokens)
	}
	if m.OutputTokens != 500 {
		t.Errorf("OutputTokens = %d, want 500", m.OutputTokens)
	}

	want := 1.0*0.000075 + 0.5*0.0003
	if diff := m.EstimatedCost - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("EstimatedCost = %v, want %v", m.EstimatedCost, want)
	}
}

func TestRecordGeneration_UnknownModelZeroCost(t *testing.T) {
	tr := New()
	tr.RecordGeneration("some-future-model", "prompt text here", "answer")

	m := tr.Snapshot()
	if m.EstimatedCost != 0 {
		t.Errorf("EstimatedCost = %v, want 0", m.EstimatedCost)
	}
	if m.InputTokens == 0 {
		t.Error("InputTokens should still be counted for unknown models")
	}
}

func TestSnapshot_Empty(t *testing.T) {
	m := New().Snapshot()
	if m.ErrorRate != 0 || m.AvgResponseTime != 0 {
		t.Errorf("empty snapshot has nonzero derived fields: %+v", m)
	}
}
