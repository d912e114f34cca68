package shared

import (
	"fmt"
	"strings"
)

// Ordering is a validated list sort key. Field is one of the caller supplied allowed names.
type Ordering struct {
	Field string
	Desc  bool
}

// ParseOrdering reads a DRF-style ordering value such as "-price". Empty input yields def.
func ParseOrdering(raw string, def Ordering, allowed ...string) (Ordering, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	o := Ordering{Field: strings.TrimPrefix(raw, "-"), Desc: strings.HasPrefix(raw, "-")}
	for _, a := range allowed {
		if a == o.Field {
			return o, nil
		}
	}
	return Ordering{}, fmt.Errorf("%w: cannot order by %q", ErrValidation, o.Field)
}

// SQL renders the ORDER BY clause body. Field must have come from ParseOrdering.
func (o Ordering) SQL(tiebreak string) string {
	dir := "ASC"
	if o.Desc {
		dir = "DESC"
	}
	if tiebreak == "" || tiebreak == o.Field {
		return o.Field + " " + dir
	}
	return fmt.Sprintf("%s %s, %s %s", o.Field, dir, tiebreak, dir)
}

// String returns the query string form.
func (o Ordering) String() string {
	if o.Desc {
		return "-" + o.Field
	}
	return o.Field
}
