// Package validate screens user input before any retrieval or generation
// cost is incurred.
package validate

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// ValidationError reports why a piece of input was rejected. The reason is
// user-visible.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "input validation failed: " + e.Reason
}

const (
	maxQuestionLen = 2000
	maxCodeLen     = 10000
	maxQueryLen    = 1000
)

var sqlInjectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bUNION\b.*\bSELECT\b`),
	regexp.MustCompile(`(?i)\bDROP\b.*\bTABLE\b`),
	regexp.MustCompile(`(?i)\bINSERT\b.*\bINTO\b`),
	regexp.MustCompile(`(?i)\bUPDATE\b.*\bSET\b`),
	regexp.MustCompile(`(?i)\bDELETE\b.*\bFROM\b`),
	regexp.MustCompile(`;\s*--`),
	regexp.MustCompile(`(?i)\bEXEC\b`),
	regexp.MustCompile(`(?i)\bXP_\w+`),
}

var xssPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script\b.*</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)onload\s*=`),
	regexp.MustCompile(`(?i)onerror\s*=`),
	regexp.MustCompile(`(?i)onclick\s*=`),
}

var maliciousCodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)System\.exit\(`),
	regexp.MustCompile(`(?i)Runtime\.getRuntime\(`),
	regexp.MustCompile(`(?i)ProcessBuilder\(`),
	regexp.MustCompile(`(?i)\beval\(`),
	regexp.MustCompile(`(?i)import\s+os\b`),
	regexp.MustCompile(`__import__`),
}

var inappropriateKeywords = []string{"hack", "exploit", "bypass", "unauthorized", "steal", "crack"}

// Question validates and sanitizes a user question, returning the cleaned
// (HTML-escaped) text. Rejections carry a *ValidationError.
func Question(question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return question, &ValidationError{Reason: "question cannot be empty"}
	}
	if len(question) > maxQuestionLen {
		return question, &ValidationError{
			Reason: fmt.Sprintf("question too long (max %d characters)", maxQuestionLen),
		}
	}

	cleaned := html.EscapeString(strings.TrimSpace(question))

	if reason := checkSecurityPatterns(cleaned); reason != "" {
		return cleaned, &ValidationError{Reason: reason}
	}
	for _, kw := range inappropriateKeywords {
		if strings.Contains(strings.ToLower(cleaned), kw) {
			return cleaned, &ValidationError{Reason: "question contains inappropriate content"}
		}
	}
	return cleaned, nil
}

// Code validates Apex source input.
func Code(code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return code, &ValidationError{Reason: "code cannot be empty"}
	}
	if len(code) > maxCodeLen {
		return code, &ValidationError{
			Reason: fmt.Sprintf("code too long (max %d characters)", maxCodeLen),
		}
	}

	cleaned := strings.TrimSpace(code)
	for _, p := range maliciousCodePatterns {
		if p.MatchString(cleaned) {
			return cleaned, &ValidationError{Reason: "code contains potentially malicious patterns"}
		}
	}
	return cleaned, nil
}

// SOQL validates a SOQL query input: basic SELECT ... FROM shape plus the
// shared security screens.
func SOQL(query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return query, &ValidationError{Reason: "query cannot be empty"}
	}
	if len(query) > maxQueryLen {
		return query, &ValidationError{
			Reason: fmt.Sprintf("query too long (max %d characters)", maxQueryLen),
		}
	}

	cleaned := strings.TrimSpace(query)
	lower := strings.ToLower(cleaned)
	if !strings.HasPrefix(lower, "select") || !strings.Contains(lower, " from ") {
		return cleaned, &ValidationError{Reason: "does not appear to be a valid SOQL query"}
	}
	return cleaned, nil
}

func checkSecurityPatterns(text string) string {
	for _, p := range sqlInjectionPatterns {
		if p.MatchString(text) {
			return "potentially malicious SQL pattern detected"
		}
	}
	for _, p := range xssPatterns {
		if p.MatchString(text) {
			return "potentially malicious script pattern detected"
		}
	}
	return ""
}
