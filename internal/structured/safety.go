package structured

import (
	"regexp"
	"strings"
)

// forbiddenPattern catches statements and functions that read-only catalog
// queries have no business using.
var forbiddenPattern = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|truncate|grant|revoke|copy|vacuum|execute|do)\b|pg_sleep|;`)

// IsSafeSelect reports whether the query is a single read-only SELECT
// statement. Anything else is rejected before touching the database.
func IsSafeSelect(query string) bool {
	q := strings.TrimSpace(query)
	if q == "" || q == InvalidQueryMarker {
		return false
	}
	upper := strings.ToUpper(q)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return false
	}
	return !forbiddenPattern.MatchString(q)
}
