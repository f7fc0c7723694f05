package dbx

import (
	"strconv"
	"strings"
)

// Placeholders returns a comma-separated list of Postgres placeholders
// numbered start..start+n-1. Placeholders(2, 3) == "$2,$3,$4".
//
// Used by repositories that expand id batches into IN (...) clauses.
func Placeholders(start, n int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(start + i))
	}
	return b.String()
}

// IDArgs converts a string id list plus leading arguments into the []any
// shape ExecContext/QueryContext expect.
func IDArgs(leading []any, ids []string) []any {
	args := make([]any, 0, len(leading)+len(ids))
	args = append(args, leading...)
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}
