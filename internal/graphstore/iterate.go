package graphstore

import (
	"context"

	"github.com/protrend/regnet/pkg/ident"
	"github.com/tkw1536/pkglib/iterator"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Nodes iterates over the nodes of the given entity, ordered by identifier.
// Nodes deleted during iteration are skipped.
func (store *Store) Nodes(ctx context.Context, entity string) iterator.Iterator[Node] {
	return iterator.New(func(sender iterator.Generator[Node]) {
		defer sender.Return()

		store.l.RLock()
		ids := maps.Keys(store.index.entities[entity])
		store.l.RUnlock()

		slices.SortFunc(ids, ident.Compare)
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				sender.YieldError(err)
				return
			}

			node, ok, err := store.Get(ctx, entity, id)
			if err != nil {
				sender.YieldError(err)
				return
			}
			if !ok {
				continue
			}
			if sender.Yield(node) {
				return
			}
		}
	})
}

// Edges iterates over the outgoing edges of the node with the given identifier, ordered by relation and target.
func (store *Store) Edges(ctx context.Context, id string) iterator.Iterator[Edge] {
	return iterator.New(func(sender iterator.Generator[Edge]) {
		defer sender.Return()

		store.l.RLock()
		var keys []string
		for relation, targets := range store.index.adjacency[id] {
			for _, to := range targets {
				keys = append(keys, edgeKey(id, relation, to))
			}
		}
		store.l.RUnlock()

		slices.Sort(keys)
		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				sender.YieldError(err)
				return
			}

			store.l.RLock()
			var (
				edge Edge
				ok   bool
				err  error
			)
			if store.edges == nil {
				err = ErrClosed
			} else {
				edge, ok, err = store.edges.Get(key)
			}
			store.l.RUnlock()

			if err != nil {
				sender.YieldError(err)
				return
			}
			if !ok {
				continue
			}
			if sender.Yield(edge) {
				return
			}
		}
	})
}
