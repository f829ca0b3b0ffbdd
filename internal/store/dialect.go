package store

import (
	"strconv"
	"strings"

	"github.com/vbonduro/fampantry/internal/db"
)

// dialect papers over the placeholder and locking differences between sqlite and postgres.
// Queries are written with ? placeholders.
type dialect struct {
	postgres bool
}

func newDialect(driver string) dialect {
	return dialect{postgres: driver == db.DriverPostgres}
}

func (d dialect) rebind(query string) string {
	if !d.postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// forUpdate is appended to the read half of a read-modify-write.
func (d dialect) forUpdate() string {
	if d.postgres {
		return " FOR UPDATE"
	}
	return ""
}
