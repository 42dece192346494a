// Package hashkey composes content hashes used as secondary uniqueness keys.
package hashkey

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/zeebo/xxh3"
)

// Key is a hex-encoded 128 bit digest over an ordered tuple of values.
type Key string

// Compose hashes the given values in order.
//
// Each value is length-prefixed before being hashed.
// This makes the tuple boundaries part of the digest, so that ("ab", "c") and ("a", "bc") differ.
func Compose(values ...string) Key {
	hasher := xxh3.New()

	// count first, so that appending an empty value changes the digest
	var prefix [binary.MaxVarintLen64]byte
	hasher.Write(prefix[:binary.PutUvarint(prefix[:], uint64(len(values)))])

	for _, value := range values {
		hasher.Write(prefix[:binary.PutUvarint(prefix[:], uint64(len(value)))])
		hasher.WriteString(value)
	}

	sum := hasher.Sum128().Bytes()
	return Key(hex.EncodeToString(sum[:]))
}

// Fields composes a key from the named fields of values, in the given order.
// Missing fields and nil values contribute the empty string.
func Fields(values map[string]any, fields ...string) Key {
	tuple := make([]string, len(fields))
	for i, field := range fields {
		tuple[i] = Stringify(values[field])
	}
	return Compose(tuple...)
}

// Stringify turns a scalar field value into its canonical string form.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
