// Package record implements dynamically shaped, immutable query result records.
//
// The fields a record holds are described by a [Descriptor].
// Each distinct descriptor is turned into a [Shape] exactly once; records are then built from
// shapes using a write-once [Builder].
package record

import (
	"errors"
	"fmt"
	"strings"
)

// IdentifierField is the field holding the identifier of every entity.
const IdentifierField = "protrend_id"

var (
	ErrNoSource                = errors.New("record: descriptor has no source")
	ErrInvalidField            = errors.New("record: invalid field name")
	ErrRelationshipWithoutLink = errors.New("record: relationship fields require a linked type")
)

// Variant classifies a descriptor by how much of the graph it reaches.
type Variant int

const (
	NoLink      Variant = iota // only the source entity
	Linked                     // the source entity and one linked entity type
	HyperLinked                // like Linked, plus attributes of the connecting relationship
)

func (v Variant) String() string {
	switch v {
	case NoLink:
		return "NoLink"
	case Linked:
		return "Linked"
	case HyperLinked:
		return "HyperLinked"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// Descriptor describes which fields to retrieve for a source entity,
// and optionally for one linked entity type and the relationship connecting them.
type Descriptor struct {
	Source string   // entity type of the source
	Fields []string // fields of the source

	Linked       string   // name of the relation leading to the linked entity, if any
	LinkedFields []string // fields of the linked entity

	RelationshipFields []string // fields of the relationship itself
}

// Variant returns the variant of this descriptor.
func (d Descriptor) Variant() Variant {
	switch {
	case d.Linked == "":
		return NoLink
	case len(d.RelationshipFields) == 0:
		return Linked
	default:
		return HyperLinked
	}
}

// Normalize validates d and returns a normalized copy.
//
// The normalized copy lists the identifier first in both the source and linked fields,
// and contains no duplicate field names.
func (d Descriptor) Normalize() (Descriptor, error) {
	if d.Source == "" {
		return d, ErrNoSource
	}
	if !validName(d.Source) {
		return d, fmt.Errorf("%w: %q", ErrInvalidField, d.Source)
	}

	var err error
	var n Descriptor

	n.Source = d.Source
	if n.Fields, err = normalizeFields(d.Fields, true); err != nil {
		return d, err
	}

	if d.Linked == "" {
		if len(d.RelationshipFields) > 0 {
			return d, ErrRelationshipWithoutLink
		}
		if len(d.LinkedFields) > 0 {
			return d, fmt.Errorf("%w: linked fields without a linked type", ErrInvalidField)
		}
		return n, nil
	}
	if !validName(d.Linked) {
		return d, fmt.Errorf("%w: %q", ErrInvalidField, d.Linked)
	}

	n.Linked = d.Linked
	if n.LinkedFields, err = normalizeFields(d.LinkedFields, true); err != nil {
		return d, err
	}
	if n.RelationshipFields, err = normalizeFields(d.RelationshipFields, false); err != nil {
		return d, err
	}
	return n, nil
}

// Signature returns a string uniquely identifying a normalized descriptor.
func (d Descriptor) Signature() string {
	var builder strings.Builder
	builder.WriteString(d.Source)
	builder.WriteByte('(')
	builder.WriteString(strings.Join(d.Fields, ","))
	builder.WriteByte(')')
	if d.Linked != "" {
		builder.WriteString("-[")
		builder.WriteString(strings.Join(d.RelationshipFields, ","))
		builder.WriteString("]->")
		builder.WriteString(d.Linked)
		builder.WriteByte('(')
		builder.WriteString(strings.Join(d.LinkedFields, ","))
		builder.WriteByte(')')
	}
	return builder.String()
}

func normalizeFields(fields []string, withIdentifier bool) ([]string, error) {
	result := make([]string, 0, len(fields)+1)
	seen := make(map[string]struct{}, len(fields)+1)

	if withIdentifier {
		result = append(result, IdentifierField)
		seen[IdentifierField] = struct{}{}
	}

	for _, field := range fields {
		if !validName(field) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidField, field)
		}
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		result = append(result, field)
	}
	return result, nil
}

// validName checks that name can be used as a field or variable name in a query.
func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_':
		case 'a' <= r && r <= 'z':
		case 'A' <= r && r <= 'Z':
		case '0' <= r && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
