// Package graphstore implements an embedded property graph holding the regulatory network.
package graphstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/protrend/regnet/internal/schema"
	"github.com/protrend/regnet/internal/stats"
	"github.com/protrend/regnet/pkg/ident"
	"github.com/protrend/regnet/pkg/record"
	"github.com/protrend/regnet/pkg/unique"
	"golang.org/x/exp/slices"
)

var (
	ErrClosed       = errors.New("graphstore: store is closed")
	ErrNodeExists   = errors.New("graphstore: node already exists")
	ErrNodeNotFound = errors.New("graphstore: node not found")
	ErrNoIdentifier = errors.New("graphstore: node has no identifier")
	ErrWrongEntity  = errors.New("graphstore: node belongs to a different entity")
)

// Node is a single entity in the graph.
type Node struct {
	Entity string
	Fields map[string]any // including the identifier and store-maintained fields
}

// ID returns the identifier of this node.
func (n Node) ID() string {
	id, _ := n.Fields[record.IdentifierField].(string)
	return id
}

// Edge is a directed relationship between two nodes.
type Edge struct {
	From     string
	Relation string // name of the relation on the From entity
	To       string
	Type     string
	Fields   map[string]any
}

// Key returns the key this edge is stored under.
func (e Edge) Key() string {
	return edgeKey(e.From, e.Relation, e.To)
}

func edgeKey(from, relation, to string) string {
	return from + "\x00" + relation + "\x00" + to
}

// Store is an embedded property graph.
//
// A Store may be used concurrently.
type Store struct {
	Schema *schema.Schema
	Stats  *stats.Stats

	// Now returns the current time, used for created and updated timestamps.
	// Defaults to time.Now.
	Now func() time.Time

	l     sync.RWMutex
	nodes KeyValueStore[string, Node]
	edges KeyValueStore[string, Edge]
	index index
}

// index holds in-memory indexes of the graph.
type index struct {
	entities  map[string]map[string]struct{} // entity => ids
	adjacency map[string]map[string][]string // from => relation => to
	keys      map[string]string              // entity, factor and value => id
}

func (idx *index) reset() {
	idx.entities = make(map[string]map[string]struct{})
	idx.adjacency = make(map[string]map[string][]string)
	idx.keys = make(map[string]string)
}

func keysKey(entity, factor string, value any) string {
	s, _ := value.(string)
	return entity + "\x00" + factor + "\x00" + s
}

func (idx *index) addNode(node Node) {
	id := node.ID()
	if idx.entities[node.Entity] == nil {
		idx.entities[node.Entity] = make(map[string]struct{})
	}
	idx.entities[node.Entity][id] = struct{}{}

	for field, value := range node.Fields {
		if strings.HasSuffix(field, unique.FactorSuffix) && value != nil {
			idx.keys[keysKey(node.Entity, field, value)] = id
		}
	}
}

func (idx *index) removeNode(node Node) {
	delete(idx.entities[node.Entity], node.ID())
	for field, value := range node.Fields {
		if strings.HasSuffix(field, unique.FactorSuffix) && value != nil {
			key := keysKey(node.Entity, field, value)
			if idx.keys[key] == node.ID() {
				delete(idx.keys, key)
			}
		}
	}
}

func (idx *index) addEdge(edge Edge) {
	if idx.adjacency[edge.From] == nil {
		idx.adjacency[edge.From] = make(map[string][]string)
	}
	targets := idx.adjacency[edge.From][edge.Relation]
	if !slices.Contains(targets, edge.To) {
		idx.adjacency[edge.From][edge.Relation] = append(targets, edge.To)
	}
}

func (idx *index) removeEdge(edge Edge) {
	targets := idx.adjacency[edge.From][edge.Relation]
	if i := slices.Index(targets, edge.To); i >= 0 {
		idx.adjacency[edge.From][edge.Relation] = slices.Delete(targets, i, i+1)
	}
}

// Open opens a store using the given engine, and indexes any existing data.
func Open(s *schema.Schema, engine Engine, st *stats.Stats) (*Store, error) {
	store := &Store{Schema: s, Stats: st}

	var err error
	if store.nodes, err = engine.Nodes(); err != nil {
		return nil, err
	}
	if store.edges, err = engine.Edges(); err != nil {
		store.nodes.Close()
		return nil, err
	}

	if err := store.reindex(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// reindex rebuilds the in-memory index from the storages.
// st.l must be held for writing, or the store not yet shared.
func (store *Store) reindex() error {
	store.index.reset()

	if err := store.nodes.Iterate(func(_ string, node Node) error {
		store.index.addNode(node)
		return nil
	}); err != nil {
		return err
	}
	if err := store.edges.Iterate(func(_ string, edge Edge) error {
		store.index.addEdge(edge)
		return nil
	}); err != nil {
		return err
	}

	store.Stats.StoreStoreStats(store.sizes())
	return nil
}

func (store *Store) sizes() (s stats.StoreStats) {
	s.Nodes, _ = store.nodes.Count()
	s.Edges, _ = store.edges.Count()
	return s
}

// Size returns the number of nodes and edges in the store.
func (store *Store) Size() (stats.StoreStats, error) {
	store.l.RLock()
	defer store.l.RUnlock()

	if store.nodes == nil {
		return stats.StoreStats{}, ErrClosed
	}
	return store.sizes(), nil
}

// Close closes the underlying storages.
func (store *Store) Close() error {
	store.l.Lock()
	defer store.l.Unlock()

	var errs []error
	if store.nodes != nil {
		errs = append(errs, store.nodes.Close())
		store.nodes = nil
	}
	if store.edges != nil {
		errs = append(errs, store.edges.Close())
		store.edges = nil
	}
	return errors.Join(errs...)
}

func (store *Store) now() time.Time {
	if store.Now != nil {
		return store.Now().UTC()
	}
	return time.Now().UTC()
}

// Create inserts new nodes of the given entity type.
// Each node must carry an identifier owned by the entity, and no node with that identifier may exist.
func (store *Store) Create(ctx context.Context, entity string, nodes []map[string]any) error {
	e, err := store.Schema.Entity(entity)
	if err != nil {
		return err
	}
	prefix := store.Schema.Prefix(e)

	store.l.Lock()
	defer store.l.Unlock()

	if store.nodes == nil {
		return ErrClosed
	}

	// validate everything before writing anything
	for _, fields := range nodes {
		id, _ := fields[record.IdentifierField].(string)
		if id == "" {
			return ErrNoIdentifier
		}
		if !prefix.Owns(id) {
			return fmt.Errorf("%w: %q is not a %s identifier", ErrWrongEntity, id, entity)
		}
		exists, err := store.nodes.Has(id)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %q", ErrNodeExists, id)
		}
	}

	now := store.now()
	for _, fields := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}

		node := Node{Entity: entity, Fields: make(map[string]any, len(fields)+3)}
		for field, value := range fields {
			if value != nil {
				node.Fields[field] = value
			}
		}
		if _, ok := node.Fields[schema.UIDField]; !ok {
			node.Fields[schema.UIDField] = uuid.NewString()
		}
		node.Fields[schema.CreatedField] = now
		node.Fields[schema.UpdatedField] = now

		if err := store.nodes.Set(node.ID(), node); err != nil {
			return err
		}
		store.index.addNode(node)
	}
	return nil
}

// Get returns the node with the given identifier.
func (store *Store) Get(ctx context.Context, entity, id string) (Node, bool, error) {
	store.l.RLock()
	defer store.l.RUnlock()

	return store.get(entity, id)
}

func (store *Store) get(entity, id string) (Node, bool, error) {
	if store.nodes == nil {
		return Node{}, false, ErrClosed
	}

	node, ok, err := store.nodes.Get(id)
	if err != nil || !ok {
		return Node{}, false, err
	}
	if entity != "" && node.Entity != entity {
		return Node{}, false, nil
	}
	return node, true, nil
}

// Update changes fields of an existing node.
// A nil value removes the field.
func (store *Store) Update(ctx context.Context, entity, id string, changes map[string]any) error {
	store.l.Lock()
	defer store.l.Unlock()

	node, ok, err := store.get(entity, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s %q", ErrNodeNotFound, entity, id)
	}

	store.index.removeNode(node)

	fields := make(map[string]any, len(node.Fields)+len(changes))
	for field, value := range node.Fields {
		fields[field] = value
	}
	for field, value := range changes {
		if field == record.IdentifierField {
			continue
		}
		if value == nil {
			delete(fields, field)
			continue
		}
		fields[field] = value
	}
	fields[schema.UpdatedField] = store.now()
	node.Fields = fields

	if err := store.nodes.Set(id, node); err != nil {
		return err
	}
	store.index.addNode(node)
	return nil
}

// Delete deletes a node and all edges from and to it.
// Deleting a node that does not exist is not an error.
func (store *Store) Delete(ctx context.Context, entity, id string) error {
	store.l.Lock()
	defer store.l.Unlock()

	node, ok, err := store.get(entity, id)
	if err != nil || !ok {
		return err
	}

	for relation, targets := range store.index.adjacency[id] {
		for _, to := range slices.Clone(targets) {
			if err := store.disconnect(Edge{From: id, Relation: relation, To: to}); err != nil {
				return err
			}
			for back, sources := range store.index.adjacency[to] {
				if slices.Contains(sources, id) {
					if err := store.disconnect(Edge{From: to, Relation: back, To: id}); err != nil {
						return err
					}
				}
			}
		}
	}
	delete(store.index.adjacency, id)

	if err := store.nodes.Delete(id); err != nil {
		return err
	}
	store.index.removeNode(node)
	return nil
}

func (store *Store) disconnect(edge Edge) error {
	if err := store.edges.Delete(edge.Key()); err != nil {
		return err
	}
	store.index.removeEdge(edge)
	return nil
}

// Connect connects nodes along relations of the schema.
// Every link also creates the edge along the reverse relation.
// Connecting already connected nodes updates the fields of the existing edges.
func (store *Store) Connect(ctx context.Context, links ...schema.Link) error {
	store.l.Lock()
	defer store.l.Unlock()

	if store.nodes == nil {
		return ErrClosed
	}

	type pair struct{ forward, reverse Edge }
	pairs := make([]pair, 0, len(links))

	for _, link := range links {
		from, ok, err := store.get("", link.From)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %q", ErrNodeNotFound, link.From)
		}
		to, ok, err := store.get("", link.To)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %q", ErrNodeNotFound, link.To)
		}

		relation, err := store.Schema.Relation(from.Entity, link.Relation)
		if err != nil {
			return err
		}
		if relation.Target != to.Entity {
			return fmt.Errorf("%w: %s.%s leads to %s, not %s", ErrWrongEntity, from.Entity, link.Relation, relation.Target, to.Entity)
		}
		reverse, err := store.Schema.Reverse(from.Entity, link.Relation)
		if err != nil {
			return err
		}

		pairs = append(pairs, pair{
			forward: Edge{From: link.From, Relation: relation.Name, To: link.To, Type: relation.Type, Fields: link.Fields},
			reverse: Edge{From: link.To, Relation: reverse.Name, To: link.From, Type: reverse.Type, Fields: link.Fields},
		})
	}

	now := store.now()
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, edge := range []Edge{p.forward, p.reverse} {
			if err := store.connect(edge, now); err != nil {
				return err
			}
		}
	}
	return nil
}

func (store *Store) connect(edge Edge, now time.Time) error {
	old, exists, err := store.edges.Get(edge.Key())
	if err != nil {
		return err
	}

	fields := make(map[string]any, len(edge.Fields)+2)
	if exists {
		for field, value := range old.Fields {
			fields[field] = value
		}
	} else {
		fields[schema.CreatedField] = now
	}
	for field, value := range edge.Fields {
		if value != nil {
			fields[field] = value
		}
	}
	fields[schema.UpdatedField] = now
	edge.Fields = fields

	if err := store.edges.Set(edge.Key(), edge); err != nil {
		return err
	}
	store.index.addEdge(edge)
	return nil
}

// Lookup returns the identifier of the node of the given entity whose factor field holds value.
// It implements [unique.LookupFunc].
func (store *Store) Lookup(ctx context.Context, entity, factor, value string) (string, bool, error) {
	store.l.RLock()
	defer store.l.RUnlock()

	if store.nodes == nil {
		return "", false, ErrClosed
	}
	id, ok := store.index.keys[keysKey(entity, factor, value)]
	return id, ok, nil
}

// Last returns the greatest identifier of the given entity.
// It implements [unique.LastFunc].
func (store *Store) Last(ctx context.Context, entity string) (string, bool, error) {
	store.l.RLock()
	defer store.l.RUnlock()

	if store.nodes == nil {
		return "", false, ErrClosed
	}

	var last string
	for id := range store.index.entities[entity] {
		if last == "" || ident.Compare(id, last) > 0 {
			last = id
		}
	}
	return last, last != "", nil
}
