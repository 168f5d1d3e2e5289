package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrdering parses a comma separated list of fields, each optionally prefixed by "-"
// for a descending order: "-created_at,child.last_name".
func ParseOrdering(s string) []DBOrdering {
	var orderings []DBOrdering
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		orderings = append(orderings, DBOrdering{Field: field, Ascending: !descending})
	}
	return orderings
}

// CheckOrdering reports the first ordering whose field is not in allowed.
func CheckOrdering(orderings []DBOrdering, allowed map[string]string) error {
	for _, ord := range orderings {
		if _, ok := allowed[ord.Field]; !ok {
			return NewValidationError(nil, FieldError{Field: "ordering", Error: "invalid ordering field: " + ord.Field})
		}
	}
	return nil
}
