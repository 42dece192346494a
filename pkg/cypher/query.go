package cypher

import (
	"github.com/protrend/regnet/pkg/record"
)

// Kind is the kind of result a query produces.
type Kind int

const (
	Rows           Kind = iota // one row per source entity, or per source and linked entity
	Count                      // a single row with a single count
	GroupedCount               // one row per source entity holding its identifier and a count
	LastIdentifier             // at most one row holding the greatest identifier
)

func (k Kind) String() string {
	switch k {
	case Rows:
		return "rows"
	case Count:
		return "count"
	case GroupedCount:
		return "grouped_count"
	case LastIdentifier:
		return "last_identifier"
	default:
		return "unknown"
	}
}

// Relation is a named, directed relation from one entity type to another.
type Relation struct {
	Name   string // name of the relation on the source entity, e.g. "data_organism"
	Target string // entity type at the end of the relation
	Type   string // relationship type in the graph, e.g. "HAS"
}

// Variables holds the names of the variables used in a query.
type Variables struct {
	Source       string
	Relationship string // empty unless relationship fields are returned
	Linked       string // empty unless a linked type is queried
}

// Query is a compiled query.
//
// Text holds the query text for a store that understands the query language.
// The remaining fields describe the same query in structured form, for embedded stores
// and for parsing results.
type Query struct {
	Kind Kind
	Text string

	Descriptor record.Descriptor // normalized
	Filters    []Filter
	Window     Window

	SourceLabel string
	Relation    *Relation // nil unless a linked type is queried
	LinkedLabel string

	Variables Variables
	Columns   []string // column labels the store is expected to return

	where string
}

// String returns the query text.
func (q Query) String() string {
	return q.Text
}
