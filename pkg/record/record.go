package record

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/protrend/regnet/pkg/hashkey"
)

var ErrIdentityMismatch = errors.New("record: records describe different entities")

// Record is an immutable, dynamically shaped value.
//
// A record holds a set of fields, an ordered list of linked collections keyed by relation name,
// and, for linked records of a hyper-linked query, a relationship record.
type Record struct {
	shape *Shape // shape this record was built from; nil for merged records

	kind         string
	fields       []string
	values       map[string]any
	links        []link
	relationship *Record
}

type link struct {
	name    string
	records []*Record
}

// Kind returns the entity type or relation name of this record.
func (r *Record) Kind() string {
	return r.kind
}

// Shape returns the shape this record was built from.
// Records created by [Record.Add] have no shape and return nil.
func (r *Record) Shape() *Shape {
	return r.shape
}

// ID returns the identifier of this record, or the empty string.
func (r *Record) ID() string {
	return hashkey.Stringify(r.values[IdentifierField])
}

// Fields returns the names of the fields of this record, in order.
func (r *Record) Fields() []string {
	return append([]string(nil), r.fields...)
}

// Has checks if the record has the given field.
func (r *Record) Has(field string) bool {
	_, ok := r.values[field]
	return ok
}

// Get returns the value of field.
func (r *Record) Get(field string) (value any, ok bool) {
	value, ok = r.values[field]
	return
}

// String returns the value of field formatted as a string.
// Missing fields and nil values produce the empty string.
func (r *Record) String(field string) string {
	return hashkey.Stringify(r.values[field])
}

// Int returns the value of field as an integer, if it holds one.
func (r *Record) Int(field string) (int64, bool) {
	switch v := r.values[field].(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), v == float64(int64(v))
	default:
		return 0, false
	}
}

// Links returns the names of the linked collections of this record, in order.
func (r *Record) Links() []string {
	names := make([]string, len(r.links))
	for i, l := range r.links {
		names[i] = l.name
	}
	return names
}

// Linked returns the linked records of the given relation.
// ok indicates if the record carries that collection at all.
func (r *Record) Linked(name string) (records []*Record, ok bool) {
	for _, l := range r.links {
		if l.name == name {
			return append([]*Record(nil), l.records...), true
		}
	}
	return nil, false
}

// Relationship returns the relationship record of a linked record, or nil.
func (r *Record) Relationship() *Record {
	return r.relationship
}

// Add merges other into a copy of r and returns the copy.
//
// Fields and linked collections of other that r does not have are appended.
// Where both have a field or collection, the value of r wins.
// Both records must describe the same entity.
func (r *Record) Add(other *Record) (*Record, error) {
	if r.kind != other.kind || r.ID() == "" || r.ID() != other.ID() {
		return nil, fmt.Errorf("%w: %s %q and %s %q", ErrIdentityMismatch, r.kind, r.ID(), other.kind, other.ID())
	}
	if r == other {
		return r, nil
	}

	merged := &Record{
		kind:         r.kind,
		fields:       append([]string(nil), r.fields...),
		values:       make(map[string]any, len(r.values)+len(other.values)),
		links:        append([]link(nil), r.links...),
		relationship: r.relationship,
	}
	for field, value := range r.values {
		merged.values[field] = value
	}
	for _, field := range other.fields {
		if _, ok := merged.values[field]; ok {
			continue
		}
		merged.fields = append(merged.fields, field)
		merged.values[field] = other.values[field]
	}
	for _, l := range other.links {
		if _, ok := r.Linked(l.name); ok {
			continue
		}
		merged.links = append(merged.links, l)
	}
	if merged.relationship == nil {
		merged.relationship = other.relationship
	}

	// a merge that added nothing returns the original record
	if len(merged.fields) == len(r.fields) && len(merged.links) == len(r.links) && merged.relationship == r.relationship {
		return r, nil
	}
	return merged, nil
}

// Map returns a representation of this record as nested maps.
// Linked collections are stored under their relation name, the relationship record under [RelationshipKind].
func (r *Record) Map() map[string]any {
	m := make(map[string]any, len(r.values)+len(r.links)+1)
	for field, value := range r.values {
		m[field] = value
	}
	for _, l := range r.links {
		linked := make([]map[string]any, len(l.records))
		for i, record := range l.records {
			linked[i] = record.Map()
		}
		m[l.name] = linked
	}
	if r.relationship != nil {
		m[RelationshipKind] = r.relationship.Map()
	}
	return m
}

// MarshalJSON marshals the record as a json object, see [Record.Map].
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}
