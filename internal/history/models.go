package history

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Interaction is one answered question.
type Interaction struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Intent     string    `json:"intent"`
	ToolUsed   string    `json:"tool_used,omitempty"`
	Sources    string    `json:"sources"` // JSON array of source filenames
	ResponseMs int64     `json:"response_ms"`
}
