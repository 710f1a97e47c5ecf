// Package tools holds the pure-text analysis tools consumed by the query
// orchestrator: Apex code review, SOQL optimization, and governor limit
// math. Each tool maps a string payload to a formatted report; malformed
// payloads degrade to a usable help message instead of an error.
package tools

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

const ApexReviewerLabel = "🔧 Apex Code Reviewer"

var (
	loopPattern     = regexp.MustCompile(`(?i)\b(for|while)\s*\(|\bdo\s*\{`)
	soqlInBrackets  = regexp.MustCompile(`(?i)\[.*select.*\]`)
	hardcodedID     = regexp.MustCompile(`['"][0-9a-zA-Z]{15}([0-9a-zA-Z]{3})?['"]`)
	dmlKeywords     = []string{"insert ", "update ", "delete ", "upsert "}
	bulkCollections = []string{"list<", "set<", "map<"}
)

// ReviewApexCode reviews Apex source for governor limit compliance and
// common pitfalls. Loop bodies are tracked with a brace-depth stack so a
// query flagged inside a loop stops being flagged once the loop's closing
// brace has passed.
func ReviewApexCode(code string) string {
	code = html.UnescapeString(code)
	if strings.TrimSpace(code) == "" {
		return "Please provide Apex code to review."
	}

	var issues []string
	var recommendations []string
	addRec := func(rec string) {
		for _, existing := range recommendations {
			if existing == rec {
				return
			}
		}
		recommendations = append(recommendations, rec)
	}

	depth := 0
	pendingLoops := 0
	var loopStack []int

	for i, line := range strings.Split(code, "\n") {
		lineNumber := i + 1
		trimmed := strings.TrimSpace(line)
		lineLower := strings.ToLower(trimmed)

		if loopPattern.MatchString(trimmed) {
			pendingLoops++
		}

		inLoop := len(loopStack) > 0
		closingOnly := trimmed == "}" || trimmed == "};"

		if inLoop && !closingOnly {
			if soqlInBrackets.MatchString(line) {
				issues = append(issues,
					fmt.Sprintf("Line %d: SOQL query detected inside loop - Governor limit violation!", lineNumber))
				addRec("Move SOQL queries outside loops and use bulk operations")
			}
			for _, dml := range dmlKeywords {
				if strings.Contains(lineLower, dml) {
					issues = append(issues,
						fmt.Sprintf("Line %d: DML operation in loop - Governor limit violation!", lineNumber))
					addRec("Collect records and perform DML operations in bulk outside loops")
					break
				}
			}
		}

		for _, ch := range line {
			switch ch {
			case '{':
				if pendingLoops > 0 {
					loopStack = append(loopStack, depth)
					pendingLoops--
				}
				depth++
			case '}':
				depth--
				if n := len(loopStack); n > 0 && depth <= loopStack[n-1] {
					loopStack = loopStack[:n-1]
				}
			}
		}
	}

	codeLower := strings.ToLower(code)

	if hardcodedID.MatchString(code) {
		issues = append(issues, "Hardcoded IDs detected - Use Custom Settings or Custom Metadata instead")
		addRec("Replace hardcoded IDs with configurable Custom Settings or Custom Metadata")
	}
	if strings.Contains(codeLower, "system.debug") {
		addRec("Remove System.debug statements before deploying to production")
	}
	if strings.Contains(codeLower, "try") && !strings.Contains(codeLower, "catch") {
		issues = append(issues, "Try block without catch - Add proper exception handling")
		addRec("Always include catch blocks with proper exception handling")
	}
	if strings.Contains(codeLower, "trigger") && strings.Contains(codeLower, "trigger.new") {
		bulk := false
		for _, coll := range bulkCollections {
			if strings.Contains(codeLower, coll) {
				bulk = true
				break
			}
		}
		if !bulk {
			addRec("Use collections (List, Set, Map) for bulk processing in triggers")
		}
	}

	var sb strings.Builder
	sb.WriteString("🔍 **APEX CODE REVIEW REPORT**\n\n")

	if len(issues) > 0 {
		sb.WriteString("❌ **CRITICAL ISSUES FOUND:**\n")
		for _, issue := range issues {
			sb.WriteString("• " + issue + "\n")
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("✅ **NO CRITICAL ISSUES FOUND**\n\n")
	}

	if len(recommendations) > 0 {
		sb.WriteString("💡 **RECOMMENDATIONS:**\n")
		for _, rec := range recommendations {
			sb.WriteString("• " + rec + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("📚 **BEST PRACTICES REMINDER:**\n")
	sb.WriteString("• Always bulkify your code\n")
	sb.WriteString("• Avoid SOQL/DML in loops\n")
	sb.WriteString("• Use proper exception handling\n")
	sb.WriteString("• Test with large data volumes\n")
	sb.WriteString("• Follow naming conventions\n")

	return sb.String()
}
