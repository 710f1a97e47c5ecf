package tools

import (
	"regexp"
	"strings"
)

const SOQLOptimizerLabel = "⚡ SOQL Query Optimizer"

var (
	largeObjects     = []string{"account", "contact", "opportunity", "lead", "case"}
	dateFunctions    = []string{"day(", "month(", "year(", "hour("}
	indexedFields    = []string{"id", "name", "email", "createddate", "lastmodifieddate"}
	leadingWildcard  = regexp.MustCompile(`like\s+['"]%`)
)

// OptimizeSOQLQuery analyzes a SOQL statement at the string level and
// reports performance issues and optimization suggestions.
func OptimizeSOQLQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "Please provide a SOQL query to analyze."
	}

	lower := strings.ToLower(query)

	var issues []string
	var optimizations []string

	if strings.Contains(lower, "select *") {
		issues = append(issues, "Using SELECT * - This is not supported in SOQL")
		optimizations = append(optimizations, "Specify exact fields needed: SELECT Id, Name, Email FROM Account")
	}

	for _, obj := range largeObjects {
		if strings.Contains(lower, "from "+obj) &&
			!strings.Contains(lower, "where") && !strings.Contains(lower, "limit") {
			issues = append(issues, "Query on "+capitalize(obj)+" without WHERE clause or LIMIT - May hit governor limits")
			optimizations = append(optimizations, "Add WHERE clause or LIMIT to queries on "+capitalize(obj))
		}
	}

	var whereClause string
	if strings.Contains(lower, "where") {
		whereClause = strings.SplitN(lower, "where", 2)[1]
		if strings.Contains(whereClause, "order by") {
			whereClause = strings.SplitN(whereClause, "order by", 2)[0]
		}

		for _, fn := range dateFunctions {
			if strings.Contains(whereClause, fn) {
				issues = append(issues, "Date functions in WHERE clause can prevent index usage")
				optimizations = append(optimizations, "Use date literals instead of date functions when possible")
				break
			}
		}

		if leadingWildcard.MatchString(whereClause) {
			issues = append(issues, "LIKE with leading wildcard (%) prevents index usage")
			optimizations = append(optimizations,
				"Avoid leading wildcards in LIKE clauses. Consider:",
				"  • Use SOSL with FIND for full-text search across multiple fields",
				"  • Use exact match or trailing wildcards: Name LIKE 'test%'",
				"  • Create custom indexed fields for common search patterns",
			)
		}
	}

	if !strings.Contains(lower, "limit") && !strings.Contains(lower, "count()") {
		optimizations = append(optimizations, "Consider adding LIMIT clause to prevent large result sets")
	}

	if strings.Contains(lower, "select") {
		selectClause := strings.TrimSpace(strings.Replace(strings.SplitN(lower, "from", 2)[0], "select", "", 1))
		if strings.Contains(selectClause, "id,") && strings.Count(selectClause, ",") > 10 {
			optimizations = append(optimizations, "Consider if all selected fields are necessary - fewer fields = better performance")
		}
	}

	if strings.Count(query, ".") > 5 {
		issues = append(issues, "Deep relationship queries detected - May impact performance")
		optimizations = append(optimizations, "Consider separate queries or reducing relationship depth")
	}

	if strings.Count(lower, "select") > 1 {
		optimizations = append(optimizations, "Subqueries detected - Ensure they're necessary and optimized")
	}

	if whereClause != "" {
		for _, obj := range largeObjects {
			if !strings.Contains(lower, obj) {
				continue
			}
			indexed := false
			for _, field := range indexedFields {
				if strings.Contains(whereClause, field) {
					indexed = true
					break
				}
			}
			if !indexed {
				optimizations = append(optimizations,
					"Consider using indexed fields in WHERE clause (Id, Name, Email, CreatedDate, LastModifiedDate)")
			}
			break
		}
	}

	var sb strings.Builder
	sb.WriteString("🔍 **SOQL QUERY ANALYSIS REPORT**\n\n")
	sb.WriteString("**Query:** `" + query + "`\n\n")

	if len(issues) > 0 {
		sb.WriteString("❌ **PERFORMANCE ISSUES:**\n")
		for _, issue := range issues {
			sb.WriteString("• " + issue + "\n")
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("✅ **NO MAJOR ISSUES DETECTED**\n\n")
	}

	if len(optimizations) > 0 {
		sb.WriteString("⚡ **OPTIMIZATION SUGGESTIONS:**\n")
		for _, opt := range optimizations {
			sb.WriteString("• " + opt + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("📈 **SOQL BEST PRACTICES:**\n")
	sb.WriteString("• Use selective WHERE clauses with indexed fields\n")
	sb.WriteString("• Avoid leading wildcards in LIKE (use trailing: 'test%')\n")
	sb.WriteString("• For full-text search, use SOSL instead of SOQL\n")
	sb.WriteString("• Use LIMIT to control result set size\n")
	sb.WriteString("• Avoid functions in WHERE clauses when possible\n")
	sb.WriteString("• Query only the fields you need\n")
	sb.WriteString("• Use relationship queries efficiently (limit depth)\n")
	sb.WriteString("• Consider using WITH SECURITY_ENFORCED for user context\n")

	if strings.Contains(lower, "like") && strings.Contains(lower, "%") {
		sb.WriteString("\n💡 **ALTERNATIVE APPROACH:**\n")
		sb.WriteString("For text searching, consider using SOSL instead:\n")
		sb.WriteString("```\n")
		sb.WriteString("FIND {search term} IN ALL FIELDS\n")
		sb.WriteString("RETURNING Account(Id, Name), Contact(Id, Name)\n")
		sb.WriteString("```\n")
	}

	return sb.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
