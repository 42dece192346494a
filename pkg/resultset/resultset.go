// Package resultset turns tabular query results back into records.
package resultset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/protrend/regnet/pkg/cypher"
	"github.com/protrend/regnet/pkg/hashkey"
	"github.com/protrend/regnet/pkg/ident"
	"github.com/protrend/regnet/pkg/record"
	"golang.org/x/exp/slices"
)

var (
	ErrUnexpectedColumn = errors.New("resultset: unexpected column")
	ErrColumnOrder      = errors.New("resultset: columns out of order")
	ErrRowLength        = errors.New("resultset: row length does not match columns")
	ErrNotCount         = errors.New("resultset: result is not a count")
	ErrWrongKind        = errors.New("resultset: query has the wrong kind")
)

// Table holds the rows returned by a store, along with their column labels.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows in this table.
func (t Table) Len() int {
	return len(t.Rows)
}

// Layout is the partition of the columns of a table into source, relationship and linked fields.
type Layout struct {
	Source       []string
	Relationship []string
	Linked       []string
}

// Partition partitions column labels of the form "variable.field" using the given variables.
// Columns must appear in the order source, relationship, linked.
func Partition(columns []string, vars cypher.Variables) (layout Layout, err error) {
	const (
		inSource = iota
		inRelationship
		inLinked
	)
	stage := inSource

	for _, column := range columns {
		variable, field, ok := strings.Cut(column, ".")
		if !ok {
			return layout, fmt.Errorf("%w: %q", ErrUnexpectedColumn, column)
		}

		var next int
		switch {
		case variable == vars.Source:
			next = inSource
			layout.Source = append(layout.Source, field)
		case vars.Relationship != "" && variable == vars.Relationship:
			next = inRelationship
			layout.Relationship = append(layout.Relationship, field)
		case vars.Linked != "" && variable == vars.Linked:
			next = inLinked
			layout.Linked = append(layout.Linked, field)
		default:
			return layout, fmt.Errorf("%w: %q", ErrUnexpectedColumn, column)
		}

		if next < stage {
			return layout, fmt.Errorf("%w: %q", ErrColumnOrder, column)
		}
		stage = next
	}
	return layout, nil
}

// Parse turns the rows of a table returned for q into records of the given shape.
//
// Queries without a linked type produce one record per row.
// Otherwise rows are grouped by their source fields, and one record is produced per group.
// Each row of the group contributes one linked record, unless its linked fields are all null.
func Parse(q cypher.Query, shape *record.Shape, table Table) ([]*record.Record, error) {
	if q.Kind != cypher.Rows {
		return nil, fmt.Errorf("%w: %s", ErrWrongKind, q.Kind)
	}

	layout, err := Partition(table.Columns, q.Variables)
	if err != nil {
		return nil, err
	}
	for i, row := range table.Rows {
		if len(row) != len(table.Columns) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrRowLength, i, len(row), len(table.Columns))
		}
	}

	if shape.Linked() == nil {
		return parsePlain(shape, layout, table.Rows)
	}
	return parseLinked(shape, layout, table.Rows)
}

func parsePlain(shape *record.Shape, layout Layout, rows [][]any) ([]*record.Record, error) {
	records := make([]*record.Record, len(rows))
	for i, row := range rows {
		builder := shape.New()
		if err := fill(builder, layout.Source, row); err != nil {
			return nil, err
		}
		records[i] = builder.Build()
	}
	return records, nil
}

func parseLinked(shape *record.Shape, layout Layout, rows [][]any) ([]*record.Record, error) {
	nSource := len(layout.Source)
	nRelationship := len(layout.Relationship)

	// sort by the source tuple, so that each group is a consecutive run of rows
	keyed := make([]keyedRow, len(rows))
	for i, row := range rows {
		keyed[i] = keyedRow{key: sourceKey(row[:nSource]), row: row}
	}
	slices.SortStableFunc(keyed, func(a, b keyedRow) int {
		return compareKeys(layout.Source, a.key, b.key)
	})

	var records []*record.Record
	for start := 0; start < len(keyed); {
		end := start + 1
		for end < len(keyed) && compareKeys(layout.Source, keyed[start].key, keyed[end].key) == 0 {
			end++
		}

		builder := shape.New()
		if err := fill(builder, layout.Source, keyed[start].row[:nSource]); err != nil {
			return nil, err
		}

		for _, kr := range keyed[start:end] {
			relationshipValues := kr.row[nSource : nSource+nRelationship]
			linkedValues := kr.row[nSource+nRelationship:]

			// an optional match that matched nothing
			if allNull(linkedValues) && allNull(relationshipValues) {
				continue
			}

			linked, err := buildLinked(shape.Linked(), layout, linkedValues, relationshipValues)
			if err != nil {
				return nil, err
			}
			if err := builder.Link(linked); err != nil {
				return nil, err
			}
		}

		records = append(records, builder.Build())
		start = end
	}
	return records, nil
}

func buildLinked(shape *record.Shape, layout Layout, linkedValues, relationshipValues []any) (*record.Record, error) {
	builder := shape.New()
	if err := fill(builder, layout.Linked, linkedValues); err != nil {
		return nil, err
	}

	if rshape := shape.Relationship(); rshape != nil {
		rbuilder := rshape.New()
		if err := fill(rbuilder, layout.Relationship, relationshipValues); err != nil {
			return nil, err
		}
		if err := builder.SetRelationship(rbuilder.Build()); err != nil {
			return nil, err
		}
	}
	return builder.Build(), nil
}

func fill(builder *record.Builder, fields []string, values []any) error {
	for i, field := range fields {
		if err := builder.Set(field, values[i]); err != nil {
			return err
		}
	}
	return nil
}

type keyedRow struct {
	key []string
	row []any
}

// sourceKey turns the source values of a row into a comparable key.
// The type is part of each component, so that 1 and "1" are distinct.
func sourceKey(values []any) []string {
	key := make([]string, len(values))
	for i, value := range values {
		switch v := value.(type) {
		case nil:
			key[i] = ""
		case string:
			key[i] = "s" + v
		default:
			key[i] = fmt.Sprintf("%T", v) + hashkey.Stringify(v)
		}
	}
	return key
}

func compareKeys(fields []string, a, b []string) int {
	for i := range a {
		var c int
		if fields[i] == record.IdentifierField && strings.HasPrefix(a[i], "s") && strings.HasPrefix(b[i], "s") {
			c = ident.Compare(a[i][1:], b[i][1:])
		} else {
			c = strings.Compare(a[i], b[i])
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func allNull(values []any) bool {
	for _, value := range values {
		if value != nil {
			return false
		}
	}
	return true
}
