package graphstore

import (
	"context"
	"encoding/gob"
	"io"

	"github.com/protrend/regnet/pkg/sgob"
)

// Snapshot writes all nodes and edges of the store to w.
func (store *Store) Snapshot(ctx context.Context, w io.Writer) error {
	store.l.RLock()
	defer store.l.RUnlock()

	if store.nodes == nil {
		return ErrClosed
	}

	encoder := gob.NewEncoder(w)

	size := store.sizes()
	if err := sgob.Encode(encoder, size.Nodes, func(yield func(Node) error) error {
		return store.nodes.Iterate(func(_ string, node Node) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return yield(node)
		})
	}); err != nil {
		return err
	}

	return sgob.Encode(encoder, size.Edges, func(yield func(Edge) error) error {
		return store.edges.Iterate(func(_ string, edge Edge) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return yield(edge)
		})
	})
}

// Restore reads nodes and edges written by Snapshot from r into the store.
// Existing nodes and edges with the same keys are overwritten.
func (store *Store) Restore(ctx context.Context, r io.Reader) error {
	store.l.Lock()
	defer store.l.Unlock()

	if store.nodes == nil {
		return ErrClosed
	}

	decoder := gob.NewDecoder(r)

	var count int
	if err := sgob.Decode(decoder, func(node Node) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		count++
		store.Stats.SetCT(count, 0)
		return store.nodes.Set(node.ID(), node)
	}); err != nil {
		return err
	}

	if err := sgob.Decode(decoder, func(edge Edge) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return store.edges.Set(edge.Key(), edge)
	}); err != nil {
		return err
	}

	return store.reindex()
}
