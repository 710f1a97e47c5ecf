// Package intent classifies incoming questions with ordered, first-match-wins
// string heuristics and extracts the payload each analysis path consumes.
// The rules are deliberately literal: order encodes priority, and the known
// misclassification edge cases are part of the contract.
package intent

import (
	"html"
	"strings"
)

// Intent is the classified purpose of a question.
type Intent int

const (
	// GeneralRAG is the retrieval+generation fallback.
	GeneralRAG Intent = iota
	// LimitsCalc routes to the governor limits calculator.
	LimitsCalc
	// CodeReview routes to the Apex code reviewer.
	CodeReview
	// QueryOptimize routes to the SOQL query optimizer.
	QueryOptimize
)

func (i Intent) String() string {
	switch i {
	case LimitsCalc:
		return "limits_calc"
	case CodeReview:
		return "code_review"
	case QueryOptimize:
		return "query_optimize"
	default:
		return "general_rag"
	}
}

var limitsKeywords = []string{"governor", "limits", "calculate", "usage"}

// codeKeywords are weak signals that only count next to a brace.
var codeKeywords = []string{"public", "private", "void", "return", "if(", "for(", "while("}

// strongCodeMarkers are sufficient on their own.
var strongCodeMarkers = []string{"public class", "public static", "private class", "private static"}

// Classify routes a question to its analysis path.
//
// Order matters and is part of the contract: the limits check runs first
// because code snippets and SOQL text can incidentally contain braces, and
// code detection precedes SOQL detection because Apex trigger bodies
// frequently embed inline SOQL that must not hijack routing into the
// optimizer path.
func Classify(question string) Intent {
	lower := strings.ToLower(question)

	if isLimitsQuestion(question, lower) {
		return LimitsCalc
	}
	if isCodeQuestion(question, lower) {
		return CodeReview
	}
	if strings.Contains(lower, "select") && strings.Contains(lower, "from") {
		return QueryOptimize
	}
	return GeneralRAG
}

// isLimitsQuestion requires a governor/limit/usage-style keyword AND a
// balanced {...} substring carrying the operations payload. Requiring the
// brace pair keeps prose questions like "how do governor limits work" on
// the retrieval path.
func isLimitsQuestion(question, lower string) bool {
	keyword := false
	for _, kw := range limitsKeywords {
		if strings.Contains(lower, kw) {
			keyword = true
			break
		}
	}
	if !keyword {
		return false
	}
	open := strings.Index(question, "{")
	close_ := strings.LastIndex(question, "}")
	return open >= 0 && close_ > open
}

func isCodeQuestion(question, lower string) bool {
	for _, marker := range strongCodeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	if strings.Contains(question, "{") {
		for _, kw := range codeKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
		if strings.Contains(lower, "trigger") {
			return true
		}
	}
	return false
}

// ExtractOperations pulls the embedded JSON payload for the limits
// calculator: the substring between the first "{" and the last "}",
// HTML-entity-decoded twice because the UI layer can double-encode input.
func ExtractOperations(question string) string {
	open := strings.Index(question, "{")
	close_ := strings.LastIndex(question, "}")
	if open < 0 || close_ <= open {
		return html.UnescapeString(html.UnescapeString(question))
	}
	return html.UnescapeString(html.UnescapeString(question[open : close_+1]))
}

// ExtractCode locates the code portion of a question: from the earliest
// code-start marker to the end of the string, or failing that the first
// balanced brace block, or failing that the whole question.
func ExtractCode(question string) string {
	lower := strings.ToLower(question)

	start := -1
	for _, marker := range []string{"public class", "trigger", "public", "private"} {
		if idx := strings.Index(lower, marker); idx >= 0 && (start < 0 || idx < start) {
			start = idx
		}
	}
	if start >= 0 {
		return question[start:]
	}

	if open := strings.Index(question, "{"); open >= 0 {
		depth := 0
		for i := open; i < len(question); i++ {
			switch question[i] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return question[open : i+1]
				}
			}
		}
	}
	return question
}

var sqlKeywords = []string{"select", "from", "where", "order", "limit", "group", "having"}

var questionMarkers = []string{"?", ":", "can", "you", "please", "optimize"}

// ExtractQuery isolates the SOQL statement from surrounding prose: start at
// the first case-insensitive "select", keep lines containing SQL keywords
// or continuation lines free of question-phrasing markers, then strip a
// trailing question mark or trailing "optimize"/"query" words.
func ExtractQuery(question string) string {
	lower := strings.ToLower(question)
	start := strings.Index(lower, "select")
	part := question
	if start >= 0 {
		part = question[start:]
	}

	var kept []string
	for _, line := range strings.Split(part, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lineLower := strings.ToLower(line)
		hasSQL := false
		for _, kw := range sqlKeywords {
			if strings.Contains(lineLower, kw) {
				hasSQL = true
				break
			}
		}
		switch {
		case hasSQL:
			kept = append(kept, line)
		case len(kept) > 0 && !containsAny(line, questionMarkers):
			kept = append(kept, line)
		}
	}

	query := strings.TrimSpace(part)
	if len(kept) > 0 {
		query = strings.Join(kept, " ")
	}

	for _, suffix := range []string{" ?", "?", " optimize", " query"} {
		if strings.HasSuffix(strings.ToLower(query), suffix) {
			query = strings.TrimSpace(query[:len(query)-len(suffix)])
		}
	}
	return query
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
