// Package schema describes the entity types of the regulatory network and the relations between them.
package schema

import (
	"errors"
	"fmt"

	"github.com/protrend/regnet/pkg/cascade"
	"github.com/protrend/regnet/pkg/cypher"
	"github.com/protrend/regnet/pkg/ident"
	"github.com/protrend/regnet/pkg/record"
	"github.com/protrend/regnet/pkg/unique"
	"golang.org/x/exp/slices"
)

// Relationship types
const (
	Has   = "HAS"
	Owner = "OWNER"
)

// Fields maintained by the store for every node.
const (
	UIDField     = "uid"
	CreatedField = "created"
	UpdatedField = "updated"
)

// Fields of every relationship
var (
	HasFields   = []string{CreatedField, UpdatedField}
	OwnerFields = []string{"key", "url", "external_identifier", CreatedField, UpdatedField}
)

var ErrUnknownField = errors.New("schema: unknown field")

// Relation is a relation from one entity type to another.
type Relation struct {
	Name   string
	Target string
	Type   string
}

// Fields returns the fields of relationships of this relation.
func (r Relation) Fields() []string {
	if r.Type == Owner {
		return OwnerFields
	}
	return HasFields
}

// Reference is a field of an entity that holds the identifier of another entity.
// The entity is connected to the referenced entity via Relation.
type Reference struct {
	Field    string
	Relation string
	Required bool
}

// Entity describes a single entity type.
type Entity struct {
	Name  string
	Label string
	Tag   string

	Fields     []string // data fields, excluding the identifier and store-maintained fields
	Keys       []unique.Key
	Relations  []Relation
	References []Reference
}

// Relation returns the relation with the given name.
func (e *Entity) Relation(name string) (Relation, bool) {
	for _, r := range e.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

// AllFields returns all fields a node of this entity carries, starting with the identifier.
func (e *Entity) AllFields() []string {
	fields := make([]string, 0, 4+len(e.Fields)+len(e.Keys))
	fields = append(fields, record.IdentifierField, UIDField, CreatedField, UpdatedField)
	fields = append(fields, e.Fields...)
	for _, key := range e.Keys {
		if len(key.Hash) > 0 {
			fields = append(fields, key.Field)
		}
		fields = append(fields, key.Factor())
	}
	return fields
}

// HasField checks if nodes of this entity carry the given field.
func (e *Entity) HasField(name string) bool {
	return slices.Contains(e.AllFields(), name)
}

// Schema is a set of entity types.
// A Schema implements [cypher.Resolver].
type Schema struct {
	Header string

	entities []*Entity
	byName   map[string]*Entity
	byTag    map[string]*Entity
	cascade  cascade.Table
}

// New creates a new schema from the given entities.
func New(header string, entities []*Entity, table cascade.Table) (*Schema, error) {
	s := &Schema{
		Header:   header,
		entities: entities,
		byName:   make(map[string]*Entity, len(entities)),
		byTag:    make(map[string]*Entity, len(entities)),
		cascade:  table,
	}

	for _, e := range entities {
		if _, ok := s.byName[e.Name]; ok {
			return nil, fmt.Errorf("schema: duplicate entity %q", e.Name)
		}
		if _, ok := s.byTag[e.Tag]; ok {
			return nil, fmt.Errorf("schema: duplicate tag %q", e.Tag)
		}
		if !s.Prefix(e).Valid() {
			return nil, fmt.Errorf("schema: entity %q: %w", e.Name, ident.ErrInvalidPrefix)
		}
		s.byName[e.Name] = e
		s.byTag[e.Tag] = e
	}

	for _, e := range entities {
		for _, r := range e.Relations {
			if _, ok := s.byName[r.Target]; !ok {
				return nil, fmt.Errorf("schema: relation %s.%s: %w: %q", e.Name, r.Name, cypher.ErrUnknownEntity, r.Target)
			}
		}
		for _, ref := range e.References {
			if _, ok := e.Relation(ref.Relation); !ok {
				return nil, fmt.Errorf("schema: reference %s.%s: %w: %q", e.Name, ref.Field, cypher.ErrUnknownRelationship, ref.Relation)
			}
		}
	}

	for entity, dependents := range table {
		e, ok := s.byName[entity]
		if !ok {
			return nil, fmt.Errorf("schema: cascade: %w: %q", cypher.ErrUnknownEntity, entity)
		}
		for _, d := range dependents {
			r, ok := e.Relation(d.Relation)
			if !ok || r.Target != d.Entity {
				return nil, fmt.Errorf("schema: cascade %s.%s: %w", entity, d.Relation, cypher.ErrUnknownRelationship)
			}
		}
	}

	return s, nil
}

// Entities returns all entity types, in definition order.
func (s *Schema) Entities() []*Entity {
	return slices.Clone(s.entities)
}

// Entity returns the entity type with the given name.
func (s *Schema) Entity(name string) (*Entity, error) {
	e, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", cypher.ErrUnknownEntity, name)
	}
	return e, nil
}

// Owner returns the entity type owning the given identifier.
func (s *Schema) Owner(id string) (*Entity, error) {
	prefix, _, err := ident.Split(id)
	if err != nil {
		return nil, err
	}
	e, ok := s.byTag[prefix.Tag]
	if !ok || prefix.Header != s.Header {
		return nil, fmt.Errorf("%w: no entity owns %q", cypher.ErrUnknownEntity, id)
	}
	return e, nil
}

// Prefix returns the identifier prefix of the given entity type.
func (s *Schema) Prefix(e *Entity) ident.Prefix {
	return ident.Prefix{Header: s.Header, Tag: e.Tag}
}

// Policy returns the uniqueness policy of the given entity type.
func (s *Schema) Policy(name string) (unique.Policy, error) {
	e, err := s.Entity(name)
	if err != nil {
		return unique.Policy{}, err
	}
	return unique.Policy{
		Entity: e.Name,
		Prefix: s.Prefix(e),
		Keys:   e.Keys,
	}, nil
}

// Cascade returns the cascade table of this schema.
func (s *Schema) Cascade() cascade.Table {
	return s.cascade
}

// Label implements [cypher.Resolver].
func (s *Schema) Label(entity string) (string, error) {
	e, err := s.Entity(entity)
	if err != nil {
		return "", err
	}
	return e.Label, nil
}

// Relation implements [cypher.Resolver].
func (s *Schema) Relation(entity, name string) (cypher.Relation, error) {
	e, err := s.Entity(entity)
	if err != nil {
		return cypher.Relation{}, err
	}
	r, ok := e.Relation(name)
	if !ok {
		return cypher.Relation{}, fmt.Errorf("%w: %s has no relation %q", cypher.ErrUnknownRelationship, entity, name)
	}
	return cypher.Relation{Name: r.Name, Target: r.Target, Type: r.Type}, nil
}

// Reverse returns the relation of the target entity leading back to the source of the given relation.
func (s *Schema) Reverse(entity, name string) (Relation, error) {
	e, err := s.Entity(entity)
	if err != nil {
		return Relation{}, err
	}
	r, ok := e.Relation(name)
	if !ok {
		return Relation{}, fmt.Errorf("%w: %s has no relation %q", cypher.ErrUnknownRelationship, entity, name)
	}

	target := s.byName[r.Target]
	for _, back := range target.Relations {
		if back.Target == e.Name && back.Type == r.Type {
			return back, nil
		}
	}
	return Relation{}, fmt.Errorf("%w: %s.%s has no reverse", cypher.ErrUnknownRelationship, entity, name)
}

// Compiler returns a query compiler resolving entities through this schema.
func (s *Schema) Compiler() cypher.Compiler {
	return cypher.Compiler{Resolver: s}
}

// CheckFields checks that nodes of entity carry all the given fields.
func (s *Schema) CheckFields(entity string, fields ...string) error {
	e, err := s.Entity(entity)
	if err != nil {
		return err
	}
	all := e.AllFields()
	for _, field := range fields {
		if !slices.Contains(all, field) {
			return fmt.Errorf("%w: %s has no field %q", ErrUnknownField, entity, field)
		}
	}
	return nil
}

// Link requests a connection from one entity to another along a relation of the source entity.
type Link struct {
	From     string
	Relation string
	To       string
	Fields   map[string]any // fields of the relationship
}
