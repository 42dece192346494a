// Package ident implements the canonical entity identifier format.
//
// An identifier looks like "PRT.ORG.0000001".
// It consists of a header, an entity tag and a sequence number, separated by dots.
// The sequence number is zero-padded to [Width] digits.
package ident

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Header is the header used by all identifiers of this database.
const Header = "PRT"

// Width is the minimal number of digits of the sequence number.
//
// Sequences with more than Width digits are formatted without truncation.
const Width = 7

// Separator separates the segments of an identifier.
const Separator = "."

var (
	ErrInvalidSequence     = errors.New("ident: invalid sequence")
	ErrMalformedIdentifier = errors.New("ident: malformed identifier")
	ErrInvalidPrefix       = errors.New("ident: invalid header or tag")
)

// Prefix represents the non-numeric part of an identifier.
type Prefix struct {
	Header string
	Tag    string
}

// NewPrefix returns the prefix for the given tag using the default [Header].
func NewPrefix(tag string) Prefix {
	return Prefix{Header: Header, Tag: tag}
}

// Valid checks that both segments of this prefix are non-empty and contain no separator.
func (p Prefix) Valid() bool {
	return validSegment(p.Header) && validSegment(p.Tag)
}

func validSegment(s string) bool {
	return s != "" && !strings.Contains(s, Separator)
}

// String returns the prefix including the trailing separator.
func (p Prefix) String() string {
	return p.Header + Separator + p.Tag + Separator
}

// Encode encodes sequence into an identifier with this prefix.
func (p Prefix) Encode(sequence int) (string, error) {
	if !p.Valid() {
		return "", ErrInvalidPrefix
	}
	if sequence < 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidSequence, sequence)
	}
	return fmt.Sprintf("%s%s%s%s%0*d", p.Header, Separator, p.Tag, Separator, Width, sequence), nil
}

// Batch encodes count consecutive identifiers, starting at start.
func (p Prefix) Batch(start, count int) ([]string, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: negative count %d", ErrInvalidSequence, count)
	}

	ids := make([]string, count)
	for i := 0; i < count; i++ {
		id, err := p.Encode(start + i)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// Owns checks if id is a well-formed identifier with this prefix.
func (p Prefix) Owns(id string) bool {
	other, _, err := Split(id)
	return err == nil && other == p
}

// Encode formats sequence as an identifier of the form header.tag.sequence.
func Encode(header, tag string, sequence int) (string, error) {
	return Prefix{Header: header, Tag: tag}.Encode(sequence)
}

// BatchEncode encodes count consecutive identifiers starting at start, in ascending order.
func BatchEncode(header, tag string, start, count int) ([]string, error) {
	return Prefix{Header: header, Tag: tag}.Batch(start, count)
}

// Decode returns the sequence number encoded in id.
func Decode(id string) (int, error) {
	_, sequence, err := Split(id)
	return sequence, err
}

// Split splits id into its prefix and sequence number.
func Split(id string) (prefix Prefix, sequence int, err error) {
	segments := strings.Split(id, Separator)
	if len(segments) != 3 {
		return prefix, 0, fmt.Errorf("%w: %q has %d segments", ErrMalformedIdentifier, id, len(segments))
	}

	digits := segments[2]
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return prefix, 0, fmt.Errorf("%w: %q has a non-numeric sequence", ErrMalformedIdentifier, id)
	}

	sequence, err = strconv.Atoi(digits)
	if err != nil {
		return prefix, 0, fmt.Errorf("%w: %q: %w", ErrMalformedIdentifier, id, err)
	}

	return Prefix{Header: segments[0], Tag: segments[1]}, sequence, nil
}

// Compare compares two identifiers by sequence number.
// Malformed identifiers sort before well-formed ones, and are compared as strings among each other.
func Compare(a, b string) int {
	sa, errA := Decode(a)
	sb, errB := Decode(b)

	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
