// Package catalog creates, updates, deletes and queries the entities of the regulatory network.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/protrend/regnet/internal/metrics"
	"github.com/protrend/regnet/internal/schema"
	"github.com/protrend/regnet/internal/stats"
	"github.com/protrend/regnet/pkg/cascade"
	"github.com/protrend/regnet/pkg/cypher"
	"github.com/protrend/regnet/pkg/queryset"
	"github.com/protrend/regnet/pkg/record"
	"github.com/protrend/regnet/pkg/resultset"
	"github.com/protrend/regnet/pkg/unique"
)

var (
	ErrNotFound          = errors.New("catalog: entity not found")
	ErrReferenceNotFound = errors.New("catalog: referenced entity not found")
)

// ReferenceNotFoundError indicates that a field references an entity that does not exist.
type ReferenceNotFoundError struct {
	Entity string // entity type holding the reference
	Field  string
	ID     string // referenced identifier, empty if the reference is missing
}

func (re *ReferenceNotFoundError) Error() string {
	if re.ID == "" {
		return fmt.Sprintf("catalog: %s requires a reference in %q", re.Entity, re.Field)
	}
	return fmt.Sprintf("catalog: %s.%s references %q, which does not exist", re.Entity, re.Field, re.ID)
}

func (re *ReferenceNotFoundError) Is(target error) bool {
	return target == ErrReferenceNotFound
}

// Store persists entities and the relationships between them.
// Reads go through the embedded Runner.
type Store interface {
	queryset.Runner

	Create(ctx context.Context, entity string, nodes []map[string]any) error
	Update(ctx context.Context, entity, id string, changes map[string]any) error
	Delete(ctx context.Context, entity, id string) error
	Connect(ctx context.Context, links ...schema.Link) error
}

// Catalog provides access to the entities of a Store.
type Catalog struct {
	schema  *schema.Schema
	store   Store
	runner  queryset.Runner
	stats   *stats.Stats
	metrics *metrics.Metrics

	validator unique.Validator
	cascade   cascade.Manager
}

// New creates a new catalog.
// st and m may be nil.
func New(s *schema.Schema, store Store, st *stats.Stats, m *metrics.Metrics) *Catalog {
	c := &Catalog{
		schema:  s,
		store:   store,
		runner:  m.Runner(store),
		stats:   st,
		metrics: m,
	}

	c.validator = unique.Validator{
		Lookup: c.lookup,
		Last:   c.last,
	}
	c.cascade = cascade.Manager{
		Table:   s.Cascade(),
		Finder:  cascade.QueryFinder{Runner: c.runner, Compiler: s.Compiler()},
		Deleter: deleter{store: store},
		OnDelete: func(d cascade.Deletion) {
			c.metrics.Deleted(d.Entity)
			c.stats.LogDebug("deleted", "entity", d.Entity, "id", d.ID)
		},
	}
	return c
}

// Schema returns the schema of this catalog
func (c *Catalog) Schema() *schema.Schema {
	return c.schema
}

// Query returns a query set for the given descriptor.
// All requested fields must exist on the respective entity or relation.
func (c *Catalog) Query(d record.Descriptor) (*queryset.QuerySet, error) {
	if err := c.checkDescriptor(d); err != nil {
		return nil, err
	}
	return queryset.New(c.runner, c.schema.Compiler(), d)
}

func (c *Catalog) checkDescriptor(d record.Descriptor) error {
	if err := c.schema.CheckFields(d.Source, d.Fields...); err != nil {
		return err
	}
	if d.Linked == "" {
		return nil
	}

	e, err := c.schema.Entity(d.Source)
	if err != nil {
		return err
	}
	relation, ok := e.Relation(d.Linked)
	if !ok {
		return fmt.Errorf("%w: %s has no relation %q", cypher.ErrUnknownRelationship, d.Source, d.Linked)
	}
	if err := c.schema.CheckFields(relation.Target, d.LinkedFields...); err != nil {
		return err
	}

	allowed := relation.Fields()
	for _, field := range d.RelationshipFields {
		if !contains(allowed, field) {
			return fmt.Errorf("%w: relation %s.%s has no field %q", schema.ErrUnknownField, d.Source, d.Linked, field)
		}
	}
	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// Get returns the given fields of a single entity.
// Without fields, all fields of the entity are returned.
func (c *Catalog) Get(ctx context.Context, entity, id string, fields ...string) (*record.Record, error) {
	if len(fields) == 0 {
		e, err := c.schema.Entity(entity)
		if err != nil {
			return nil, err
		}
		fields = e.AllFields()
	}

	qs, err := c.Query(record.Descriptor{Source: entity, Fields: fields})
	if err != nil {
		return nil, err
	}
	r, ok, err := qs.Find(ctx, map[string]any{record.IdentifierField: id})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, entity, id)
	}
	return r, nil
}

// Exists checks if an entity with the given identifier exists.
func (c *Catalog) Exists(ctx context.Context, entity, id string) (bool, error) {
	qs, err := c.Query(record.Descriptor{Source: entity})
	if err != nil {
		return false, err
	}
	return qs.Contains(ctx, id)
}

// lookup implements [unique.LookupFunc] using a query set.
func (c *Catalog) lookup(ctx context.Context, entity, factor, value string) (string, bool, error) {
	qs, err := queryset.Plain(c.runner, c.schema.Compiler(), entity)
	if err != nil {
		return "", false, err
	}
	r, ok, err := qs.Find(ctx, map[string]any{factor: value})
	if err != nil || !ok {
		return "", false, err
	}
	return r.ID(), true, nil
}

// last implements [unique.LastFunc] using the last identifier query.
func (c *Catalog) last(ctx context.Context, entity string) (string, bool, error) {
	q, err := c.schema.Compiler().Last(entity)
	if err != nil {
		return "", false, err
	}
	table, err := c.runner.Run(ctx, q)
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", queryset.ErrStoreUnavailable, err)
	}
	return resultset.Last(table)
}
