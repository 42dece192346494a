package graphstore

import (
	"context"
	"fmt"
	"time"

	"github.com/protrend/regnet/pkg/cypher"
	"github.com/protrend/regnet/pkg/ident"
	"github.com/protrend/regnet/pkg/perf"
	"github.com/protrend/regnet/pkg/resultset"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Run evaluates a compiled query against the graph.
// It implements [queryset.Runner].
//
// The store does not interpret the query text.
// It evaluates the structured form of the query, producing the rows a graph database would return for the text.
func (store *Store) Run(ctx context.Context, q cypher.Query) (table resultset.Table, err error) {
	start := time.Now()
	defer func() {
		if err == nil {
			store.Stats.LogDebug("query", "kind", q.Kind, "source", q.Descriptor.Source, "linked", q.Descriptor.Linked, "rows", len(table.Rows), "took", time.Since(start), "rate", perf.Rate(len(table.Rows), "rows", time.Since(start)))
		}
	}()

	store.l.RLock()
	defer store.l.RUnlock()

	if store.nodes == nil {
		return table, ErrClosed
	}

	table.Columns = q.Columns

	sources, err := store.match(ctx, q.Descriptor.Source, q.Filters)
	if err != nil {
		return table, err
	}

	switch q.Kind {
	case cypher.Count:
		table.Rows = [][]any{{int64(len(sources))}}
		return table, nil
	case cypher.LastIdentifier:
		if len(sources) > 0 {
			table.Rows = [][]any{{sources[len(sources)-1].ID()}}
		}
		return table, nil
	case cypher.GroupedCount:
		if q.Relation == nil {
			return table, fmt.Errorf("graphstore: grouped count without a linked type")
		}
		table.Rows = make([][]any, len(sources))
		for i, source := range sources {
			table.Rows[i] = []any{source.ID(), int64(len(store.index.adjacency[source.ID()][q.Relation.Name]))}
		}
		return table, nil
	case cypher.Rows:
	default:
		return table, fmt.Errorf("graphstore: unsupported query kind %s", q.Kind)
	}

	from, to := q.Window.Apply(len(sources))
	sources = sources[from:to]

	d := q.Descriptor
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return table, err
		}

		head := project(source.Fields, d.Fields)
		if q.Relation == nil {
			table.Rows = append(table.Rows, head)
			continue
		}

		targets := slices.Clone(store.index.adjacency[source.ID()][q.Relation.Name])
		slices.SortFunc(targets, ident.Compare)

		relationshipFields := d.RelationshipFields
		if q.Variables.Relationship == "" {
			relationshipFields = nil
		}

		if len(targets) == 0 {
			row := append(slices.Clone(head), make([]any, len(relationshipFields)+len(d.LinkedFields))...)
			table.Rows = append(table.Rows, row)
			continue
		}

		for _, target := range targets {
			node, ok, err := store.nodes.Get(target)
			if err != nil {
				return table, err
			}
			if !ok {
				continue
			}

			row := slices.Clone(head)
			if len(relationshipFields) > 0 {
				edge, _, err := store.edges.Get(edgeKey(source.ID(), q.Relation.Name, target))
				if err != nil {
					return table, err
				}
				row = append(row, project(edge.Fields, relationshipFields)...)
			}
			row = append(row, project(node.Fields, d.LinkedFields)...)
			table.Rows = append(table.Rows, row)
		}
	}

	return table, nil
}

// match returns the nodes of the given entity satisfying all filters, ordered by identifier.
func (store *Store) match(ctx context.Context, entity string, filters []cypher.Filter) ([]Node, error) {
	ids := maps.Keys(store.index.entities[entity])
	slices.SortFunc(ids, ident.Compare)

	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		node, ok, err := store.nodes.Get(id)
		if err != nil {
			return nil, err
		}
		if !ok || !matches(node.Fields, filters) {
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func matches(fields map[string]any, filters []cypher.Filter) bool {
	for _, filter := range filters {
		if !filter.Matches(fields) {
			return false
		}
	}
	return true
}

func project(values map[string]any, fields []string) []any {
	row := make([]any, len(fields))
	for i, field := range fields {
		row[i] = values[field]
	}
	return row
}
