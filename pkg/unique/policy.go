package unique

import (
	"github.com/protrend/regnet/pkg/hashkey"
	"github.com/protrend/regnet/pkg/ident"
)

// FactorSuffix is appended to a field name to name the field holding its uniqueness key.
const FactorSuffix = "_factor"

// Key describes a natural key of an entity type.
type Key struct {
	// Field is the field holding the raw key.
	// For hash keys, it is the field the composed hash is written to.
	Field string

	// Hash lists the fields a hash key is composed from, in order.
	// Empty for plain keys.
	Hash []string

	// Integer indicates that the key is interpreted as an integer before normalization.
	Integer bool

	// Optional indicates that candidates without the field are not checked for this key.
	Optional bool
}

// Factor returns the name of the field holding the uniqueness key.
func (k Key) Factor() string {
	return k.Field + FactorSuffix
}

// raw returns the raw value of this key for the given fields.
func (k Key) raw(fields map[string]any) (value any, ok bool) {
	if len(k.Hash) > 0 {
		return string(hashkey.Fields(fields, k.Hash...)), true
	}
	value, ok = fields[k.Field]
	if value == nil {
		return nil, false
	}
	return value, ok
}

// normalize returns the uniqueness key for a raw value.
func (k Key) normalize(value any) (string, error) {
	if k.Integer {
		return NormalizeInt(value)
	}
	return Normalize(value), nil
}

// Policy describes the uniqueness constraints of an entity type.
type Policy struct {
	Entity string
	Prefix ident.Prefix

	// Keys are the natural keys of the entity type.
	// The first key is the primary key; candidates for creation must always carry it.
	Keys []Key
}
