package cypher

import (
	"errors"
	"fmt"
)

var ErrInvalidWindow = errors.New("cypher: invalid window")

// Window restricts a query to a contiguous page of source entities.
// The zero window is unrestricted.
type Window struct {
	Skip  int
	Limit int

	Bounded bool
}

// Range returns the window for the half-open range [start, stop).
func Range(start, stop int) (Window, error) {
	if start < 0 || stop < start {
		return Window{}, fmt.Errorf("%w: [%d, %d)", ErrInvalidWindow, start, stop)
	}
	return Window{Skip: start, Limit: stop - start, Bounded: true}, nil
}

// Index returns the window holding only the entity at position index.
func Index(index int) (Window, error) {
	if index < 0 {
		return Window{}, fmt.Errorf("%w: index %d", ErrInvalidWindow, index)
	}
	return Window{Skip: index, Limit: 1, Bounded: true}, nil
}

// Clause renders the SKIP and LIMIT clause, or the empty string for an unbounded window.
func (w Window) Clause() string {
	if !w.Bounded {
		return ""
	}
	return fmt.Sprintf("SKIP %d LIMIT %d", w.Skip, w.Limit)
}

// Apply returns the portion of n sorted items selected by this window, as a slice range.
func (w Window) Apply(n int) (from, to int) {
	if !w.Bounded {
		return 0, n
	}
	from = min(w.Skip, n)
	to = min(from+w.Limit, n)
	return from, to
}
