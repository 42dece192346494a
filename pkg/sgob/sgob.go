// Package sgob streams sequences of gob-encoded values.
//
// Encoding a large slice with [gob] builds the entire encoding in memory before writing it.
// This package instead writes a count followed by each item, so that items can be produced and consumed one at a time.
// Streams written by this package can only be read by this package.
package sgob

import (
	"encoding/gob"
	"errors"
	"fmt"
)

var ErrCountMismatch = errors.New("sgob: number of items does not match announced count")

// Encode writes count items to encoder.
// items is called once and must call yield exactly count times.
func Encode[T any](encoder *gob.Encoder, count uint64, items func(yield func(T) error) error) error {
	if err := encoder.Encode(count); err != nil {
		return err
	}

	var written uint64
	err := items(func(item T) error {
		if written == count {
			return fmt.Errorf("%w: more than %d", ErrCountMismatch, count)
		}
		written++
		return encoder.Encode(item)
	})
	if err != nil {
		return err
	}
	if written != count {
		return fmt.Errorf("%w: wrote %d of %d", ErrCountMismatch, written, count)
	}
	return nil
}

// Decode reads a sequence written by Encode from decoder, calling f for each item in order.
// When f returns a non-nil error, decoding stops and the error is returned.
func Decode[T any](decoder *gob.Decoder, f func(T) error) error {
	var count uint64
	if err := decoder.Decode(&count); err != nil {
		return err
	}

	for i := uint64(0); i < count; i++ {
		var item T
		if err := decoder.Decode(&item); err != nil {
			return fmt.Errorf("sgob: item %d of %d: %w", i, count, err)
		}
		if err := f(item); err != nil {
			return err
		}
	}
	return nil
}

// EncodeSlice is like Encode, but writes the items of a slice.
func EncodeSlice[T any](encoder *gob.Encoder, items []T) error {
	return Encode(encoder, uint64(len(items)), func(yield func(T) error) error {
		for _, item := range items {
			if err := yield(item); err != nil {
				return err
			}
		}
		return nil
	})
}

// DecodeSlice is like Decode, but collects all items into a slice.
func DecodeSlice[T any](decoder *gob.Decoder) (items []T, err error) {
	err = Decode(decoder, func(item T) error {
		items = append(items, item)
		return nil
	})
	return items, err
}
