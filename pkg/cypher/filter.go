package cypher

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// LookupSeparator separates field and operator in a lookup such as "name__contains".
const LookupSeparator = "__"

var ErrInvalidLookup = errors.New("cypher: invalid lookup")

// Filter restricts the source entities of a query.
type Filter struct {
	Field    string
	Operator Operator
	Value    any
}

// NewFilter creates a new filter using the operator with the given name.
func NewFilter(field, operator string, value any) (Filter, error) {
	op, err := Lookup(operator)
	if err != nil {
		return Filter{}, err
	}
	if field == "" || strings.Contains(field, LookupSeparator) {
		return Filter{}, fmt.Errorf("%w: field %q", ErrInvalidLookup, field)
	}
	return Filter{Field: field, Operator: op, Value: value}, nil
}

// ParseLookup parses a lookup of the form "field__operator" into a filter.
// A lookup without an operator uses "exact".
func ParseLookup(lookup string, value any) (Filter, error) {
	field, operator, ok := strings.Cut(lookup, LookupSeparator)
	if !ok {
		operator = "exact"
	}
	if strings.Contains(operator, LookupSeparator) {
		return Filter{}, fmt.Errorf("%w: %q", ErrInvalidLookup, lookup)
	}
	return NewFilter(field, operator, value)
}

// ParseLookups parses a map of lookups into filters, sorted by lookup.
func ParseLookups(lookups map[string]any) ([]Filter, error) {
	keys := maps.Keys(lookups)
	slices.Sort(keys)

	filters := make([]Filter, len(keys))
	for i, key := range keys {
		filter, err := ParseLookup(key, lookups[key])
		if err != nil {
			return nil, err
		}
		filters[i] = filter
	}
	return filters, nil
}

// Matches checks if the given stored values satisfy this filter.
func (f Filter) Matches(values map[string]any) bool {
	return f.Operator.Match(values[f.Field], f.Value)
}

// String renders the filter as a lookup for debugging.
func (f Filter) String() string {
	return fmt.Sprintf("%s%s%s=%v", f.Field, LookupSeparator, f.Operator.Name, f.Value)
}
