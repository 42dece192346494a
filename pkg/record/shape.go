package record

import (
	"errors"
	"fmt"
	"sync"
)

// RelationshipKind is the kind of records holding relationship attributes.
const RelationshipKind = "relationship"

var (
	ErrUnknownField = errors.New("record: field not part of shape")
	ErrSlotWritten  = errors.New("record: field already written")
	ErrFrozen       = errors.New("record: builder already frozen")
	ErrNoLink       = errors.New("record: shape has no linked type")
	ErrWrongShape   = errors.New("record: nested record has the wrong shape")
)

// Shape is the type of a record.
// It is created from a descriptor by [ShapeOf], and shared by all records of the same descriptor.
type Shape struct {
	descriptor Descriptor
	kind       string
	fields     []string
	index      map[string]int

	linked       *Shape // shape of linked records, if any
	relationship *Shape // shape of relationship records, only set on linked shapes
}

var shapes struct {
	m     sync.RWMutex
	cache map[string]*Shape
}

// ShapeOf returns the shape for the given descriptor.
// Repeated calls with equivalent descriptors return the same shape.
func ShapeOf(descriptor Descriptor) (*Shape, error) {
	normal, err := descriptor.Normalize()
	if err != nil {
		return nil, err
	}
	signature := normal.Signature()

	shapes.m.RLock()
	shape, ok := shapes.cache[signature]
	shapes.m.RUnlock()
	if ok {
		return shape, nil
	}

	shapes.m.Lock()
	defer shapes.m.Unlock()

	// someone else may have created it in the meantime
	if shape, ok := shapes.cache[signature]; ok {
		return shape, nil
	}

	if shapes.cache == nil {
		shapes.cache = make(map[string]*Shape)
	}
	shape = newShape(normal)
	shapes.cache[signature] = shape
	return shape, nil
}

func newShape(d Descriptor) *Shape {
	shape := newFlatShape(d.Source, d.Fields)
	shape.descriptor = d

	if d.Linked != "" {
		shape.linked = newFlatShape(d.Linked, d.LinkedFields)
		if len(d.RelationshipFields) > 0 {
			shape.linked.relationship = newFlatShape(RelationshipKind, d.RelationshipFields)
		}
	}
	return shape
}

func newFlatShape(kind string, fields []string) *Shape {
	shape := &Shape{
		kind:   kind,
		fields: append([]string(nil), fields...),
		index:  make(map[string]int, len(fields)),
	}
	for i, field := range fields {
		shape.index[field] = i
	}
	return shape
}

// Descriptor returns the normalized descriptor of this shape.
// Only shapes returned by [ShapeOf] have a descriptor.
func (s *Shape) Descriptor() Descriptor {
	return s.descriptor
}

// Kind returns the entity type, relation name or [RelationshipKind] of this shape.
func (s *Shape) Kind() string {
	return s.kind
}

// Fields returns the fields of this shape, in order.
func (s *Shape) Fields() []string {
	return append([]string(nil), s.fields...)
}

// Has checks if this shape has the given field.
func (s *Shape) Has(field string) bool {
	_, ok := s.index[field]
	return ok
}

// Linked returns the shape of linked records, or nil.
func (s *Shape) Linked() *Shape {
	return s.linked
}

// Relationship returns the shape of relationship records, or nil.
func (s *Shape) Relationship() *Shape {
	return s.relationship
}

// New creates a new builder for a record of this shape.
func (s *Shape) New() *Builder {
	return &Builder{
		shape:  s,
		values: make([]any, len(s.fields)),
		set:    make([]bool, len(s.fields)),
	}
}

// Builder builds a single record.
// Every field may be written at most once; Build freezes the builder.
type Builder struct {
	shape  *Shape
	values []any
	set    []bool

	links        []*Record
	relationship *Record

	frozen bool
}

// Set writes a field of the record.
func (b *Builder) Set(field string, value any) error {
	if b.frozen {
		return ErrFrozen
	}
	i, ok := b.shape.index[field]
	if !ok {
		return fmt.Errorf("%w: %q in %s", ErrUnknownField, field, b.shape.kind)
	}
	if b.set[i] {
		return fmt.Errorf("%w: %q", ErrSlotWritten, field)
	}
	b.values[i] = value
	b.set[i] = true
	return nil
}

// Link adds a linked record.
// The record must have been built from the linked shape of this builder's shape.
func (b *Builder) Link(linked *Record) error {
	if b.frozen {
		return ErrFrozen
	}
	if b.shape.linked == nil {
		return ErrNoLink
	}
	if linked.shape != b.shape.linked {
		return ErrWrongShape
	}
	b.links = append(b.links, linked)
	return nil
}

// SetRelationship sets the relationship record of a linked record.
func (b *Builder) SetRelationship(relationship *Record) error {
	if b.frozen {
		return ErrFrozen
	}
	if b.shape.relationship == nil || relationship.shape != b.shape.relationship {
		return ErrWrongShape
	}
	if b.relationship != nil {
		return fmt.Errorf("%w: %q", ErrSlotWritten, RelationshipKind)
	}
	b.relationship = relationship
	return nil
}

// Build freezes the builder and returns the record.
// Fields that were never written hold nil.
//
// Records with a linked shape always carry a (possibly empty) linked collection.
func (b *Builder) Build() *Record {
	b.frozen = true

	record := &Record{
		shape:        b.shape,
		kind:         b.shape.kind,
		fields:       b.shape.fields,
		values:       make(map[string]any, len(b.values)),
		relationship: b.relationship,
	}
	for i, field := range b.shape.fields {
		record.values[field] = b.values[i]
	}
	if b.shape.linked != nil {
		record.links = []link{{name: b.shape.linked.kind, records: b.links}}
		if record.links[0].records == nil {
			record.links[0].records = []*Record{}
		}
	}
	return record
}
