package tools

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const LimitsCalculatorLabel = "📊 Governor Limits Calculator"

// syncLimits is the synchronous governor limit ceiling per operation.
var syncLimits = map[string]float64{
	"soql_queries":      100,
	"dml_statements":    150,
	"dml_records":       10000,
	"heap_size_mb":      6,
	"cpu_time_ms":       10000,
	"callouts":          100,
	"email_invocations": 10,
	"future_calls":      50,
	"queueable_jobs":    50,
}

// limitOrder fixes the report line order; map iteration is not stable.
var limitOrder = []string{
	"soql_queries", "dml_statements", "dml_records", "heap_size_mb",
	"cpu_time_ms", "callouts", "email_invocations", "future_calls",
	"queueable_jobs",
}

var (
	soqlCountPattern = regexp.MustCompile(`(\d+).*soql`)
	dmlCountPattern  = regexp.MustCompile(`(\d+).*dml`)
)

const limitsFormatHelp = `Please provide operations in JSON format or clear description.
Example: {"soql_queries": 50, "dml_statements": 75, "heap_size_mb": 3}
Or describe like: "50 SOQL queries and 75 DML statements"`

// CalculateGovernorLimits compares per-operation usage counts against the
// synchronous governor limits and buckets each into ok / warning (>60%) /
// critical (>80%). The payload is either a JSON object of operation→count
// or free text carrying "<N> soql" / "<N> dml" patterns. Unparseable input
// yields a format-help message, never an error.
func CalculateGovernorLimits(operations string) string {
	operations = strings.TrimSpace(operations)
	if operations == "" {
		return "Please provide operations data to analyze governor limits."
	}

	var usage map[string]float64
	if strings.HasPrefix(operations, "{") {
		if err := json.Unmarshal([]byte(operations), &usage); err != nil {
			return "Invalid JSON format. Please provide valid JSON or description of operations."
		}
	} else {
		usage = make(map[string]float64)
		lower := strings.ToLower(operations)
		if strings.Contains(lower, "soql") {
			if m := soqlCountPattern.FindStringSubmatch(lower); m != nil {
				n, _ := strconv.ParseFloat(m[1], 64)
				usage["soql_queries"] = n
			}
		}
		if strings.Contains(lower, "dml") {
			if m := dmlCountPattern.FindStringSubmatch(lower); m != nil {
				n, _ := strconv.ParseFloat(m[1], 64)
				usage["dml_statements"] = n
			}
		}
		if len(usage) == 0 {
			return limitsFormatHelp
		}
	}

	var sb strings.Builder
	sb.WriteString("📊 **GOVERNOR LIMITS ANALYSIS**\n\n")

	var warnings []string
	var criticals []string

	for _, op := range limitOrder {
		used, ok := usage[op]
		if !ok {
			continue
		}
		limit := syncLimits[op]
		percentage := used / limit * 100

		status := "🟢"
		entry := fmt.Sprintf("%s: %s/%s (%.1f%%)", op, formatCount(used), formatCount(limit), percentage)
		switch {
		case percentage > 80:
			status = "🔴"
			criticals = append(criticals, entry)
		case percentage > 60:
			status = "🟡"
			warnings = append(warnings, entry)
		}

		sb.WriteString(fmt.Sprintf("%s **%s:** %s/%s (%.1f%%)\n",
			status, titleCase(op), formatCount(used), formatCount(limit), percentage))
	}

	sb.WriteString("\n")

	if len(criticals) > 0 {
		sb.WriteString("🚨 **CRITICAL - NEAR LIMITS:**\n")
		for _, c := range criticals {
			sb.WriteString("• " + c + "\n")
		}
		sb.WriteString("\n")
	}
	if len(warnings) > 0 {
		sb.WriteString("⚠️ **WARNINGS:**\n")
		for _, w := range warnings {
			sb.WriteString("• " + w + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("💡 **RECOMMENDATIONS:**\n")
	if usage["soql_queries"] > 50 {
		sb.WriteString("• High SOQL usage - Consider query optimization and caching\n")
	}
	if usage["dml_statements"] > 100 {
		sb.WriteString("• High DML usage - Implement bulk operations and reduce individual DML calls\n")
	}
	if usage["heap_size_mb"] > 4 {
		sb.WriteString("• High heap usage - Optimize data structures and consider processing in batches\n")
	}
	sb.WriteString("• Always test with large data volumes\n")
	sb.WriteString("• Implement proper error handling for limit exceptions\n")
	sb.WriteString("• Consider asynchronous processing for large operations\n")

	sb.WriteString("\n📚 **GOVERNOR LIMITS REFERENCE:**\n")
	sb.WriteString("• SOQL Queries: 100 (sync) / 200 (async)\n")
	sb.WriteString("• DML Statements: 150 (sync) / 150 (async)\n")
	sb.WriteString("• DML Records: 10,000 per transaction\n")
	sb.WriteString("• Heap Size: 6 MB (sync) / 12 MB (async)\n")
	sb.WriteString("• CPU Time: 10s (sync) / 60s (async)\n")

	return sb.String()
}

// formatCount renders whole numbers without a decimal point.
func formatCount(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// titleCase converts an operation key like "soql_queries" to "Soql Queries".
func titleCase(op string) string {
	words := strings.Split(op, "_")
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}
