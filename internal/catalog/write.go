package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/protrend/regnet/internal/bolt"
	"github.com/protrend/regnet/internal/graphstore"
	"github.com/protrend/regnet/internal/schema"
	"github.com/protrend/regnet/internal/stats"
	"github.com/protrend/regnet/pkg/cascade"
	"github.com/protrend/regnet/pkg/cypher"
	"github.com/protrend/regnet/pkg/hashkey"
	"github.com/protrend/regnet/pkg/ident"
	"github.com/protrend/regnet/pkg/queryset"
	"github.com/protrend/regnet/pkg/record"
	"github.com/protrend/regnet/pkg/unique"
)

// Create creates a single entity, and returns its stored fields.
func (c *Catalog) Create(ctx context.Context, entity string, fields map[string]any) (map[string]any, error) {
	created, err := c.CreateMany(ctx, entity, []map[string]any{fields})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

// CreateMany creates a batch of entities of the same type, and returns their stored fields.
//
// Each candidate is validated against the natural keys of the entity, and receives a fresh identifier.
// References to other entities must exist, and are connected to the new entity.
// If any candidate is rejected, no entity is created.
func (c *Catalog) CreateMany(ctx context.Context, entity string, candidates []map[string]any) ([]map[string]any, error) {
	e, err := c.schema.Entity(entity)
	if err != nil {
		return nil, err
	}
	policy, err := c.schema.Policy(entity)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		if err := checkWritable(e, candidate); err != nil {
			return nil, err
		}
		if err := c.checkReferences(ctx, e, candidate, true); err != nil {
			return nil, err
		}
	}

	created, err := c.validator.Create(ctx, policy, candidates, func(ctx context.Context, entities []map[string]any) error {
		if err := c.store.Create(ctx, entity, entities); err != nil {
			return unavailable(err)
		}

		var links []schema.Link
		for _, fields := range entities {
			links = append(links, references(e, fields)...)
		}
		if len(links) == 0 {
			return nil
		}
		return unavailable(c.store.Connect(ctx, links...))
	})
	if err != nil {
		c.observe(entity, err)
		return nil, err
	}

	c.metrics.Allocated(entity, len(created))
	c.stats.LogDebug("created", "entity", entity, "count", len(created))
	return created, nil
}

// Update changes fields of an existing entity, and returns the applied changes.
//
// Changed natural keys are validated again, hash keys are recomputed.
// Neither the identifier nor references to other entities can be changed.
func (c *Catalog) Update(ctx context.Context, entity, id string, changes map[string]any) (map[string]any, error) {
	e, err := c.schema.Entity(entity)
	if err != nil {
		return nil, err
	}
	policy, err := c.schema.Policy(entity)
	if err != nil {
		return nil, err
	}

	if err := checkWritable(e, changes); err != nil {
		return nil, err
	}

	current, err := c.Get(ctx, entity, id)
	if err != nil {
		return nil, err
	}
	fields := current.Map()

	for _, ref := range e.References {
		value, ok := changes[ref.Field]
		if ok && hashkey.Stringify(value) != hashkey.Stringify(fields[ref.Field]) {
			return nil, fmt.Errorf("%w: reference %q of %s", unique.ErrReadOnlyField, ref.Field, entity)
		}
	}

	applied, err := c.validator.Update(ctx, policy, fields, changes, func(ctx context.Context, updates []map[string]any) error {
		return unavailable(c.store.Update(ctx, entity, id, updates[0]))
	})
	if err != nil {
		c.observe(entity, err)
		return nil, err
	}
	return applied, nil
}

// Delete deletes entities of the given type, after deleting the entities depending on them.
// It returns the deleted entities in deletion order.
//
// When a deletion fails, the error is a [*cascade.PartialCascadeError] describing what was deleted.
func (c *Catalog) Delete(ctx context.Context, entity string, ids ...string) ([]cascade.Deletion, error) {
	if _, err := c.schema.Entity(entity); err != nil {
		return nil, err
	}

	var deleted []cascade.Deletion
	err := c.stats.DoStage(stats.StageDelete, func() (err error) {
		deleted, err = c.cascade.Delete(ctx, entity, ids...)
		return err
	})
	return deleted, err
}

// Import stores entities that already carry their identifiers, such as those read from a dump.
//
// Uniqueness keys are recomputed, and the natural keys are validated as for [Catalog.CreateMany].
// References are not connected, imported links must be connected separately.
func (c *Catalog) Import(ctx context.Context, entity string, nodes []map[string]any) ([]map[string]any, error) {
	policy, err := c.schema.Policy(entity)
	if err != nil {
		return nil, err
	}

	imported, err := c.validator.Import(ctx, policy, nodes, func(ctx context.Context, entities []map[string]any) error {
		return unavailable(c.store.Create(ctx, entity, entities))
	})
	if err != nil {
		c.observe(entity, err)
		return nil, err
	}

	c.stats.LogDebug("imported", "entity", entity, "count", len(imported))
	return imported, nil
}

// Connect connects existing entities.
func (c *Catalog) Connect(ctx context.Context, links ...schema.Link) error {
	return unavailable(c.store.Connect(ctx, links...))
}

// rejections are errors of a store refusing a write, rather than failing to perform it.
var rejections = []error{
	context.Canceled,
	context.DeadlineExceeded,
	schema.ErrUnknownField,
	cypher.ErrUnknownEntity,
	cypher.ErrUnknownRelationship,
	ident.ErrMalformedIdentifier,
	graphstore.ErrNodeExists,
	graphstore.ErrNodeNotFound,
	graphstore.ErrNoIdentifier,
	graphstore.ErrWrongEntity,
	bolt.ErrNodeNotFound,
	bolt.ErrWrongEntity,
}

// unavailable reports a failed write as [queryset.ErrStoreUnavailable], unless the store rejected it.
func unavailable(err error) error {
	if err == nil || errors.Is(err, queryset.ErrStoreUnavailable) {
		return err
	}
	for _, rejection := range rejections {
		if errors.Is(err, rejection) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", queryset.ErrStoreUnavailable, err)
}

// deleter deletes entities for the cascade manager.
type deleter struct {
	store Store
}

func (d deleter) Delete(ctx context.Context, entity, id string) error {
	return unavailable(d.store.Delete(ctx, entity, id))
}

func (c *Catalog) observe(entity string, err error) {
	if errors.Is(err, unique.ErrDuplicateEntity) {
		c.metrics.Duplicate(entity)
	}
	c.stats.LogDebug("rejected", "entity", entity, "err", err)
}

// checkWritable checks that all fields may be written by a caller.
func checkWritable(e *schema.Entity, fields map[string]any) error {
	for field := range fields {
		if field == record.IdentifierField {
			continue // rejected by the validator
		}
		if !contains(e.Fields, field) {
			return fmt.Errorf("%w: %s has no writable field %q", schema.ErrUnknownField, e.Name, field)
		}
	}
	return nil
}

// checkReferences checks that all references of fields exist.
func (c *Catalog) checkReferences(ctx context.Context, e *schema.Entity, fields map[string]any, create bool) error {
	for _, ref := range e.References {
		id, _ := fields[ref.Field].(string)
		if id == "" {
			if create && ref.Required {
				return &ReferenceNotFoundError{Entity: e.Name, Field: ref.Field}
			}
			continue
		}

		relation, _ := e.Relation(ref.Relation)
		owner, err := c.schema.Owner(id)
		if err != nil || owner.Name != relation.Target {
			return &ReferenceNotFoundError{Entity: e.Name, Field: ref.Field, ID: id}
		}

		ok, err := c.Exists(ctx, relation.Target, id)
		if err != nil {
			return err
		}
		if !ok {
			return &ReferenceNotFoundError{Entity: e.Name, Field: ref.Field, ID: id}
		}
	}
	return nil
}

// references returns the links from a new entity to the entities it references.
func references(e *schema.Entity, fields map[string]any) []schema.Link {
	id, _ := fields[record.IdentifierField].(string)

	var links []schema.Link
	for _, ref := range e.References {
		target, _ := fields[ref.Field].(string)
		if target == "" {
			continue
		}
		links = append(links, schema.Link{From: id, Relation: ref.Relation, To: target})
	}
	return links
}
