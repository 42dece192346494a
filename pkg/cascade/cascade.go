// Package cascade deletes entities together with the entities that depend on them.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/protrend/regnet/pkg/cypher"
	"github.com/protrend/regnet/pkg/queryset"
	"github.com/protrend/regnet/pkg/record"
)

var ErrPartialCascade = errors.New("cascade: partial cascade")

// Dependent is an entity type that must be deleted before the entity type it depends on.
type Dependent struct {
	Relation string // relation of the deleted entity leading to its dependents
	Entity   string // entity type of the dependents
}

// Table maps each entity type to its dependents, in deletion order.
type Table map[string][]Dependent

// Deletion identifies a single deleted entity.
type Deletion struct {
	Entity string
	ID     string
}

func (d Deletion) String() string {
	return d.Entity + " " + d.ID
}

// PartialCascadeError indicates that a cascade was aborted after some entities had already been deleted.
type PartialCascadeError struct {
	Entity string // entity type of the member that could not be deleted
	ID     string // identifier of the member that could not be deleted

	Deleted []Deletion // entities deleted before the failure, in order
	Cause   error
}

func (pe *PartialCascadeError) Error() string {
	deleted := make([]string, len(pe.Deleted))
	for i, d := range pe.Deleted {
		deleted[i] = d.String()
	}
	return fmt.Sprintf("cascade: deleting %s %s failed after deleting [%s]: %s", pe.Entity, pe.ID, strings.Join(deleted, ", "), pe.Cause)
}

func (pe *PartialCascadeError) Is(target error) bool {
	return target == ErrPartialCascade
}

func (pe *PartialCascadeError) Unwrap() error {
	return pe.Cause
}

// Finder finds the identifiers of the dependents of an entity.
type Finder interface {
	Dependents(ctx context.Context, entity, id string, dependent Dependent) ([]string, error)
}

// Deleter deletes a single entity from the store.
type Deleter interface {
	Delete(ctx context.Context, entity, id string) error
}

// Manager deletes entities, and the entities depending on them first.
type Manager struct {
	Table   Table
	Finder  Finder
	Deleter Deleter

	// OnDelete, if non-nil, is called after each successful deletion.
	OnDelete func(Deletion)
}

// Delete deletes the given entities of the given type, each after its dependents.
//
// Dependents are found and deleted recursively, and every entity is deleted at most once.
// The first failure aborts the remaining deletions and is returned as a *PartialCascadeError.
// Entities deleted up to that point stay deleted.
func (m *Manager) Delete(ctx context.Context, entity string, ids ...string) ([]Deletion, error) {
	c := cascade{
		Manager: m,
		visited: make(map[Deletion]struct{}),
	}

	for _, id := range ids {
		if err := c.delete(ctx, Deletion{Entity: entity, ID: id}); err != nil {
			return c.deleted, &PartialCascadeError{
				Entity:  entity,
				ID:      id,
				Deleted: c.deleted,
				Cause:   err,
			}
		}
	}

	return c.deleted, nil
}

// Plan returns the order in which Delete would delete the given entities, without deleting anything.
func (m *Manager) Plan(ctx context.Context, entity string, ids ...string) ([]Deletion, error) {
	c := cascade{
		Manager: m,
		visited: make(map[Deletion]struct{}),
		dry:     true,
	}

	for _, id := range ids {
		if err := c.delete(ctx, Deletion{Entity: entity, ID: id}); err != nil {
			return nil, err
		}
	}
	return c.deleted, nil
}

// cascade is the state of a single call to Delete or Plan
type cascade struct {
	*Manager

	visited map[Deletion]struct{}
	deleted []Deletion
	dry     bool
}

func (c *cascade) delete(ctx context.Context, target Deletion) error {
	if _, ok := c.visited[target]; ok {
		return nil
	}
	c.visited[target] = struct{}{}

	if err := ctx.Err(); err != nil {
		return err
	}

	for _, dependent := range c.Table[target.Entity] {
		ids, err := c.Finder.Dependents(ctx, target.Entity, target.ID, dependent)
		if err != nil {
			return fmt.Errorf("finding %s of %s: %w", dependent.Relation, target, err)
		}
		for _, id := range ids {
			if err := c.delete(ctx, Deletion{Entity: dependent.Entity, ID: id}); err != nil {
				return err
			}
		}
	}

	if !c.dry {
		if err := c.Deleter.Delete(ctx, target.Entity, target.ID); err != nil {
			return fmt.Errorf("deleting %s: %w", target, err)
		}
		if c.OnDelete != nil {
			c.OnDelete(target)
		}
	}
	c.deleted = append(c.deleted, target)
	return nil
}

// QueryFinder finds dependents using linked query sets.
type QueryFinder struct {
	Runner   queryset.Runner
	Compiler cypher.Compiler
}

func (qf QueryFinder) Dependents(ctx context.Context, entity, id string, dependent Dependent) ([]string, error) {
	qs, err := queryset.Linked(qf.Runner, qf.Compiler, entity, nil, dependent.Relation, nil)
	if err != nil {
		return nil, err
	}

	filter, err := cypher.NewFilter(record.IdentifierField, "exact", id)
	if err != nil {
		return nil, err
	}

	records, err := qs.Filter(filter).All(ctx)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, r := range records {
		linked, _ := r.Linked(dependent.Relation)
		for _, l := range linked {
			ids = append(ids, l.ID())
		}
	}
	return ids, nil
}
