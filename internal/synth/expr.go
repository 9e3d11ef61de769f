package synth

import (
	"regexp"
	"strings"
)

// expressionIndicator flags a filter/aggregate column string as an
// expression (rather than a single identifier) when it contains
// parentheses, arithmetic operators, or a recognized function token.
var expressionIndicator = regexp.MustCompile(`(?i)[()+\-*/]|COALESCE|CAST|CONCAT|DATEADD|DATEDIFF|GETDATE`)

var identifierToken = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// nonColumnTokens lists words that QualifyExpression must never rewrite
// into an alias-qualified identifier: SQL keywords, type names, and the
// unquoted interval literals tsql's DATEADD expects.
var nonColumnTokens = map[string]bool{
	"AS": true, "AND": true, "OR": true, "NOT": true, "NULL": true,
	"IS": true, "IN": true, "LIKE": true, "BETWEEN": true,
	"COALESCE": true, "CAST": true, "CONCAT": true, "DATEADD": true,
	"DATEDIFF": true, "GETDATE": true,
	"DATE": true, "DATETIME": true, "INT": true, "INTEGER": true,
	"VARCHAR": true, "CHAR": true, "DECIMAL": true, "NUMERIC": true,
	"FLOAT": true, "BIT": true, "NOW": true,
	"DAY": true, "DAYS": true, "MONTH": true, "MONTHS": true,
	"YEAR": true, "YEARS": true, "HOUR": true, "MINUTE": true, "SECOND": true,
	"SUM": true, "COUNT": true, "AVG": true, "MIN": true, "MAX": true,
}

// IsExpression reports whether s should be parsed as an expression
// instead of treated as a single column identifier.
func IsExpression(s string) bool {
	return expressionIndicator.MatchString(s)
}

// QualifyExpression rewrites bare column-name tokens in expr to
// alias-qualified, quoted identifiers, leaving recognized function
// names, keywords, and numeric literals untouched. This prevents
// malformed output such as a whole expression being quoted as a single
// identifier (e.g. "ii"."COALESCE(...)").
func QualifyExpression(dc *DatabaseContext, alias string, expr string) string {
	return identifierToken.ReplaceAllStringFunc(expr, func(word string) string {
		if nonColumnTokens[strings.ToUpper(word)] {
			return word
		}
		if strings.HasPrefix(word, "0") || isAllDigits(word) {
			return word
		}
		return alias + "." + QuoteIdent(dc, word)
	})
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
