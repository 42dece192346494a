package bolt

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/protrend/regnet/internal/schema"
	"github.com/protrend/regnet/pkg/queryset"
	"github.com/protrend/regnet/pkg/record"
	"github.com/protrend/regnet/pkg/resultset"
	"golang.org/x/exp/slices"
)

// label returns the label of the given entity.
func (store *Store) label(entity string) (string, error) {
	return store.Schema.Label(entity)
}

// write executes a statement that changes the graph.
// Failures of the server are reported as [queryset.ErrStoreUnavailable].
func (store *Store) write(ctx context.Context, text string, params map[string]any) (resultset.Table, error) {
	table, err := store.Executor.Execute(ctx, text, params, true)
	if err != nil {
		return table, fmt.Errorf("%w: %w", queryset.ErrStoreUnavailable, err)
	}
	return table, nil
}

// Create creates nodes of the given entity type in a single statement.
func (store *Store) Create(ctx context.Context, entity string, nodes []map[string]any) error {
	label, err := store.label(entity)
	if err != nil {
		return err
	}

	now := store.now()
	props := make([]map[string]any, len(nodes))
	for i, fields := range nodes {
		props[i] = make(map[string]any, len(fields)+3)
		for field, value := range fields {
			if value != nil {
				props[i][field] = value
			}
		}
		if _, ok := props[i][schema.UIDField]; !ok {
			props[i][schema.UIDField] = uuid.NewString()
		}
		props[i][schema.CreatedField] = now
		props[i][schema.UpdatedField] = now
	}

	text := fmt.Sprintf("UNWIND $nodes AS props CREATE (n:%s) SET n = props", label)
	_, err = store.write(ctx, text, map[string]any{"nodes": props})
	return err
}

// Update changes fields of an existing node.
// A nil value removes the field.
func (store *Store) Update(ctx context.Context, entity, id string, changes map[string]any) error {
	label, err := store.label(entity)
	if err != nil {
		return err
	}

	props := make(map[string]any, len(changes))
	for field, value := range changes {
		if field != record.IdentifierField {
			props[field] = value
		}
	}

	text := fmt.Sprintf("MATCH (n:%s {%s: $id}) SET n += $changes, n.%s = $now RETURN count(n)", label, record.IdentifierField, schema.UpdatedField)
	table, err := store.write(ctx, text, map[string]any{"id": id, "changes": props, "now": store.now()})
	if err != nil {
		return err
	}

	count, err := resultset.Count(table)
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: %s %q", ErrNodeNotFound, entity, id)
	}
	return nil
}

// Delete deletes a node along with all its relationships.
// Deleting a node that does not exist is not an error.
func (store *Store) Delete(ctx context.Context, entity, id string) error {
	label, err := store.label(entity)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("MATCH (n:%s {%s: $id}) DETACH DELETE n", label, record.IdentifierField)
	_, err = store.write(ctx, text, map[string]any{"id": id})
	return err
}

// Connect connects nodes along relations of the schema.
// Every link also creates the relationship along the reverse relation.
func (store *Store) Connect(ctx context.Context, links ...schema.Link) error {
	for _, link := range links {
		text, params, err := store.connect(link)
		if err != nil {
			return err
		}

		table, err := store.write(ctx, text, params)
		if err != nil {
			return err
		}
		count, err := resultset.Count(table)
		if err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: %q or %q", ErrNodeNotFound, link.From, link.To)
		}
	}
	return nil
}

// connect compiles the statement for a single link.
func (store *Store) connect(link schema.Link) (text string, params map[string]any, err error) {
	from, err := store.Schema.Owner(link.From)
	if err != nil {
		return "", nil, err
	}
	to, err := store.Schema.Owner(link.To)
	if err != nil {
		return "", nil, err
	}

	relation, err := store.Schema.Relation(from.Name, link.Relation)
	if err != nil {
		return "", nil, err
	}
	if relation.Target != to.Name {
		return "", nil, fmt.Errorf("%w: %s.%s leads to %s, not %s", ErrWrongEntity, from.Name, link.Relation, relation.Target, to.Name)
	}
	reverse, err := store.Schema.Reverse(from.Name, link.Relation)
	if err != nil {
		return "", nil, err
	}

	allowed := schema.Relation{Type: relation.Type}.Fields()
	fields := make(map[string]any, len(link.Fields))
	for field, value := range link.Fields {
		if !slices.Contains(allowed, field) {
			return "", nil, fmt.Errorf("%w: relationship %s has no field %q", schema.ErrUnknownField, relation.Type, field)
		}
		fields[field] = value
	}

	text = fmt.Sprintf(
		"MATCH (a:%s {%s: $from}), (b:%s {%s: $to}) "+
			"MERGE (a)-[r:%s]->(b) ON CREATE SET r.%s = $now SET r += $fields, r.%s = $now "+
			"MERGE (b)-[s:%s]->(a) ON CREATE SET s.%s = $now SET s += $fields, s.%s = $now "+
			"RETURN count(r)",
		from.Label, record.IdentifierField, to.Label, record.IdentifierField,
		relation.Type, schema.CreatedField, schema.UpdatedField,
		reverse.Type, schema.CreatedField, schema.UpdatedField,
	)
	params = map[string]any{"from": link.From, "to": link.To, "fields": fields, "now": store.now()}
	return text, params, nil
}
