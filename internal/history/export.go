package history

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Format selects an export renderer.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json", "":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (json, csv, markdown)", name)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatMarkdown:
		return "text/markdown"
	default:
		return "application/json"
	}
}

// Export writes the interactions to w in the given format.
func Export(w io.Writer, items []Interaction, format Format) error {
	switch format {
	case FormatCSV:
		return exportCSV(w, items)
	case FormatMarkdown:
		return exportMarkdown(w, items)
	default:
		return exportJSON(w, items)
	}
}

func exportJSON(w io.Writer, items []Interaction) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if items == nil {
		items = []Interaction{}
	}
	return enc.Encode(items)
}

func exportCSV(w io.Writer, items []Interaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "created_at", "question", "answer", "intent", "tool_used", "sources", "response_ms"}); err != nil {
		return err
	}
	for _, i := range items {
		record := []string{
			i.ID,
			i.CreatedAt.UTC().Format(time.RFC3339),
			i.Question,
			i.Answer,
			i.Intent,
			i.ToolUsed,
			i.Sources,
			strconv.FormatInt(i.ResponseMs, 10),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func exportMarkdown(w io.Writer, items []Interaction) error {
	var sb strings.Builder
	sb.WriteString("# Conversation History\n\n")
	fmt.Fprintf(&sb, "Exported %s, %d interactions.\n\n", time.Now().UTC().Format(time.RFC3339), len(items))

	for _, i := range items {
		fmt.Fprintf(&sb, "## %s\n\n", i.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&sb, "**Question:** %s\n\n", i.Question)
		if i.ToolUsed != "" {
			fmt.Fprintf(&sb, "**Tool:** %s\n\n", i.ToolUsed)
		}
		fmt.Fprintf(&sb, "**Answer:**\n\n%s\n\n", i.Answer)
		if i.Sources != "" && i.Sources != "[]" {
			fmt.Fprintf(&sb, "**Sources:** %s\n\n", i.Sources)
		}
		sb.WriteString("---\n\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
