package cypher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/protrend/regnet/pkg/record"
)

var ErrUnknownRelationship = errors.New("cypher: unknown relationship")
var ErrUnknownEntity = errors.New("cypher: unknown entity type")

// RelationshipVariable is the variable bound to the relationship in hyper-linked queries.
const RelationshipVariable = "rel"

// Resolver resolves entity types and their relations.
type Resolver interface {
	// Label returns the node label of an entity type, or an error wrapping ErrUnknownEntity.
	Label(entity string) (string, error)

	// Relation returns the relation with the given name on an entity type,
	// or an error wrapping ErrUnknownRelationship.
	Relation(entity, name string) (Relation, error)
}

// Compiler compiles descriptors into queries.
type Compiler struct {
	Resolver Resolver
}

// Compile compiles a query returning the fields described by d,
// restricted to source entities matching all filters and within window.
func (c Compiler) Compile(d record.Descriptor, filters []Filter, window Window) (Query, error) {
	q, err := c.prepare(d, filters, Rows)
	if err != nil {
		return q, err
	}
	q.Window = window

	var builder strings.Builder
	c.writeMatch(&builder, q)

	if q.Relation != nil {
		// page by source entity, not by row
		if window.Bounded {
			fmt.Fprintf(&builder, " WITH %s ORDER BY %s %s", q.Variables.Source, orderBy(q.Variables.Source, false), window.Clause())
		}
		c.writeOptionalMatch(&builder, q)
	}

	builder.WriteString(" RETURN ")
	builder.WriteString(strings.Join(q.Columns, ", "))

	if q.Relation == nil {
		fmt.Fprintf(&builder, " ORDER BY %s", orderBy(q.Variables.Source, false))
		if window.Bounded {
			builder.WriteString(" ")
			builder.WriteString(window.Clause())
		}
	}

	q.Text = builder.String()
	return q, nil
}

// Count compiles a query counting the entities described by d.
//
// For descriptors without a linked type, the query returns a single count of source entities.
// Otherwise it returns, for each source entity, its identifier and the number of linked entities
// (or relationships, for hyper-linked descriptors).
func (c Compiler) Count(d record.Descriptor, filters []Filter) (Query, error) {
	kind := Count
	if d.Linked != "" {
		kind = GroupedCount
	}

	q, err := c.prepare(d, filters, kind)
	if err != nil {
		return q, err
	}

	var builder strings.Builder
	c.writeMatch(&builder, q)
	if q.Relation != nil {
		c.writeOptionalMatch(&builder, q)
	}
	builder.WriteString(" RETURN ")
	builder.WriteString(strings.Join(q.Columns, ", "))

	q.Text = builder.String()
	return q, nil
}

// Last compiles a query returning the greatest identifier of the given entity type.
// Identifiers are ordered by length first, so that sequences beyond the padding width sort last.
func (c Compiler) Last(entity string) (Query, error) {
	q, err := c.prepare(record.Descriptor{Source: entity}, nil, LastIdentifier)
	if err != nil {
		return q, err
	}

	var builder strings.Builder
	c.writeMatch(&builder, q)
	fmt.Fprintf(&builder, " RETURN %s ORDER BY %s LIMIT 1", strings.Join(q.Columns, ", "), orderBy(q.Variables.Source, true))

	q.Text = builder.String()
	return q, nil
}

// prepare resolves labels and variables and computes the columns of a query.
func (c Compiler) prepare(d record.Descriptor, filters []Filter, kind Kind) (q Query, err error) {
	q.Kind = kind
	q.Filters = filters

	if q.Descriptor, err = d.Normalize(); err != nil {
		return q, err
	}
	for _, filter := range filters {
		if !validName(filter.Field) {
			return q, fmt.Errorf("%w: filter on %q", record.ErrInvalidField, filter.Field)
		}
	}

	if q.SourceLabel, err = c.Resolver.Label(q.Descriptor.Source); err != nil {
		return q, err
	}
	q.Variables.Source = variable(q.SourceLabel)

	if q.where, err = WhereClause(q.Variables.Source, filters); err != nil {
		return q, err
	}

	if q.Descriptor.Linked != "" {
		relation, err := c.Resolver.Relation(q.Descriptor.Source, q.Descriptor.Linked)
		if err != nil {
			return q, err
		}
		q.Relation = &relation

		if q.LinkedLabel, err = c.Resolver.Label(relation.Target); err != nil {
			return q, err
		}
		q.Variables.Linked = variable(q.LinkedLabel)
		if q.Variables.Linked == q.Variables.Source {
			q.Variables.Linked += "_link"
		}
		if len(q.Descriptor.RelationshipFields) > 0 {
			q.Variables.Relationship = RelationshipVariable
		}
	}

	q.Columns = columns(q)
	return q, nil
}

func columns(q Query) []string {
	vars := q.Variables
	switch q.Kind {
	case Count:
		return []string{"count(" + vars.Source + ")"}
	case GroupedCount:
		counted := vars.Linked
		if vars.Relationship != "" {
			counted = vars.Relationship
		}
		return []string{vars.Source + "." + record.IdentifierField, "count(" + counted + ")"}
	case LastIdentifier:
		return []string{vars.Source + "." + record.IdentifierField}
	}

	d := q.Descriptor
	cols := make([]string, 0, len(d.Fields)+len(d.RelationshipFields)+len(d.LinkedFields))
	for _, field := range d.Fields {
		cols = append(cols, vars.Source+"."+field)
	}
	if vars.Relationship != "" {
		for _, field := range d.RelationshipFields {
			cols = append(cols, vars.Relationship+"."+field)
		}
	}
	if vars.Linked != "" {
		for _, field := range d.LinkedFields {
			cols = append(cols, vars.Linked+"."+field)
		}
	}
	return cols
}

func (c Compiler) writeMatch(builder *strings.Builder, q Query) {
	fmt.Fprintf(builder, "MATCH (%s:%s)", q.Variables.Source, q.SourceLabel)

	if q.where != "" {
		builder.WriteString(" WHERE ")
		builder.WriteString(q.where)
	}
}

func (c Compiler) writeOptionalMatch(builder *strings.Builder, q Query) {
	fmt.Fprintf(builder, " OPTIONAL MATCH (%s)-[%s:%s]->(%s:%s)",
		q.Variables.Source,
		q.Variables.Relationship, q.Relation.Type,
		q.Variables.Linked, q.LinkedLabel,
	)
}

// WhereClause renders the conditions of filters on the given variable, joined by AND.
func WhereClause(variable string, filters []Filter) (string, error) {
	fragments := make([]string, len(filters))
	for i, filter := range filters {
		fragment, err := filter.Operator.Fragment(variable+"."+filter.Field, filter.Value)
		if err != nil {
			return "", fmt.Errorf("filter %s: %w", filter, err)
		}
		fragments[i] = fragment
	}
	return strings.Join(fragments, " AND "), nil
}

func orderBy(variable string, descending bool) string {
	id := variable + "." + record.IdentifierField
	if descending {
		return "size(" + id + ") DESC, " + id + " DESC"
	}
	return "size(" + id + "), " + id
}

// variable returns the variable name used for nodes with the given label.
func variable(label string) string {
	return strings.ToLower(label)
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if !(r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || (i > 0 && '0' <= r && r <= '9')) {
			return false
		}
	}
	return true
}
