// Package exporter exports the entities of a catalog into other formats.
package exporter

import (
	"context"
	"io"

	"github.com/protrend/regnet/internal/catalog"
	"github.com/protrend/regnet/internal/schema"
	"github.com/protrend/regnet/internal/stats"
	"github.com/protrend/regnet/pkg/record"
)

// Exporter receives the entities of a catalog.
type Exporter interface {
	io.Closer

	// Begin signals that count entities will be transmitted for the given entity type
	Begin(entity *schema.Entity, count int) error

	// Add adds an entity
	Add(entity *schema.Entity, r *record.Record) error

	// End signals that no more entities will be submitted for the given entity type
	End(entity *schema.Entity) error

	// Link adds the targets of a single relation of the entity with the given identifier
	Link(entity *schema.Entity, relation schema.Relation, id string, targets []string) error
}

// Export sends all entities of c to e, followed by all relations between them.
// It does not close e.
func Export(ctx context.Context, c *catalog.Catalog, e Exporter, st *stats.Stats) error {
	entities := c.Schema().Entities()

	for _, entity := range entities {
		if err := exportEntity(ctx, c, e, entity, st); err != nil {
			return err
		}
	}
	for _, entity := range entities {
		for _, relation := range entity.Relations {
			if err := exportRelation(ctx, c, e, entity, relation); err != nil {
				return err
			}
		}
	}
	return nil
}

func exportEntity(ctx context.Context, c *catalog.Catalog, e Exporter, entity *schema.Entity, st *stats.Stats) error {
	qs, err := c.Query(record.Descriptor{Source: entity.Name, Fields: entity.AllFields()})
	if err != nil {
		return err
	}
	count, err := qs.Count(ctx)
	if err != nil {
		return err
	}

	if err := e.Begin(entity, count); err != nil {
		return err
	}

	it := qs.Iterate(ctx)
	defer it.Close()

	var index int
	for it.Next() {
		index++
		st.SetCT(index, count)
		if err := e.Add(entity, it.Datum()); err != nil {
			return err
		}
	}
	if err := it.Err(); err != nil {
		return err
	}

	return e.End(entity)
}

func exportRelation(ctx context.Context, c *catalog.Catalog, e Exporter, entity *schema.Entity, relation schema.Relation) error {
	qs, err := c.Query(record.Descriptor{Source: entity.Name, Linked: relation.Name})
	if err != nil {
		return err
	}

	it := qs.Iterate(ctx)
	defer it.Close()

	for it.Next() {
		r := it.Datum()

		linked, _ := r.Linked(relation.Name)
		if len(linked) == 0 {
			continue
		}
		targets := make([]string, len(linked))
		for i, l := range linked {
			targets[i] = l.ID()
		}

		if err := e.Link(entity, relation, r.ID(), targets); err != nil {
			return err
		}
	}
	return it.Err()
}
