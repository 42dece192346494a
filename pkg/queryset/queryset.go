// Package queryset implements stateful handles over compiled record queries.
//
// A [QuerySet] wraps a record descriptor together with filters and a window.
// It compiles the descriptor into a query on demand, runs it against a [Runner],
// and caches the resulting records until the next call that changes the query.
package queryset

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/protrend/regnet/pkg/cypher"
	"github.com/protrend/regnet/pkg/record"
	"github.com/protrend/regnet/pkg/resultset"
	"github.com/tkw1536/pkglib/iterator"
)

var (
	ErrStoreUnavailable     = errors.New("queryset: store unavailable")
	ErrNoSuchRecord         = errors.New("queryset: no such record")
	ErrLinkRequired         = errors.New("queryset: linked query sets need a linked type")
	ErrRelationshipRequired = errors.New("queryset: hyper-linked query sets need relationship fields")
	ErrNotLinked            = errors.New("queryset: query set has no linked type")
)

// Runner executes compiled queries against a store.
type Runner interface {
	// Run executes q and returns the rows it produced.
	// The rows must carry the column labels of q.
	Run(ctx context.Context, q cypher.Query) (resultset.Table, error)
}

// QuerySet is a handle to a set of records described by a descriptor.
//
// Counting is split in two for linked and hyper-linked query sets.
// [QuerySet.Count] always returns the number of source entities,
// while [QuerySet.GroupedCount] returns the number of linked entities per source.
//
// A QuerySet is safe for concurrent use.
// The zero value is not valid; use [New], [Plain], [Linked] or [HyperLinked].
type QuerySet struct {
	runner   Runner
	compiler cypher.Compiler
	shape    *record.Shape

	m       sync.Mutex
	filters []cypher.Filter
	window  cypher.Window

	query   *cypher.Query    // compiled query, nil if not compiled yet
	records []*record.Record // cached records, nil if not fetched yet
}

// New creates a new QuerySet of the variant implied by descriptor.
func New(runner Runner, compiler cypher.Compiler, descriptor record.Descriptor) (*QuerySet, error) {
	shape, err := record.ShapeOf(descriptor)
	if err != nil {
		return nil, err
	}
	return &QuerySet{
		runner:   runner,
		compiler: compiler,
		shape:    shape,
	}, nil
}

// Plain creates a query set returning fields of the source entity only.
func Plain(runner Runner, compiler cypher.Compiler, source string, fields ...string) (*QuerySet, error) {
	return New(runner, compiler, record.Descriptor{Source: source, Fields: fields})
}

// Linked creates a query set returning fields of the source entity and of the entities linked via link.
func Linked(runner Runner, compiler cypher.Compiler, source string, fields []string, link string, linkFields []string) (*QuerySet, error) {
	if link == "" {
		return nil, ErrLinkRequired
	}
	return New(runner, compiler, record.Descriptor{
		Source:       source,
		Fields:       fields,
		Linked:       link,
		LinkedFields: linkFields,
	})
}

// HyperLinked is like Linked, but additionally returns fields of the connecting relationships.
func HyperLinked(runner Runner, compiler cypher.Compiler, source string, fields []string, link string, linkFields []string, relFields []string) (*QuerySet, error) {
	if link == "" {
		return nil, ErrLinkRequired
	}
	if len(relFields) == 0 {
		return nil, ErrRelationshipRequired
	}
	return New(runner, compiler, record.Descriptor{
		Source:             source,
		Fields:             fields,
		Linked:             link,
		LinkedFields:       linkFields,
		RelationshipFields: relFields,
	})
}

// Variant returns the variant of this query set.
func (qs *QuerySet) Variant() record.Variant {
	return qs.shape.Descriptor().Variant()
}

// Descriptor returns the normalized descriptor of this query set.
func (qs *QuerySet) Descriptor() record.Descriptor {
	return qs.shape.Descriptor()
}

// Shape returns the shape of records of this query set.
func (qs *QuerySet) Shape() *record.Shape {
	return qs.shape
}

// Clone returns a copy of this query set with the same filters and window, but no cached state.
func (qs *QuerySet) Clone() *QuerySet {
	qs.m.Lock()
	defer qs.m.Unlock()

	return &QuerySet{
		runner:   qs.runner,
		compiler: qs.compiler,
		shape:    qs.shape,
		filters:  append([]cypher.Filter(nil), qs.filters...),
		window:   qs.window,
	}
}

// Filter restricts this query set to source entities matching all the given filters,
// in addition to existing filters.
// The query set is returned for convenience.
func (qs *QuerySet) Filter(filters ...cypher.Filter) *QuerySet {
	qs.m.Lock()
	defer qs.m.Unlock()

	qs.filters = append(qs.filters, filters...)
	qs.invalidate()
	return qs
}

// Lookup is like Filter, but parses lookups of the form "field__operator".
func (qs *QuerySet) Lookup(lookups map[string]any) (*QuerySet, error) {
	filters, err := cypher.ParseLookups(lookups)
	if err != nil {
		return qs, err
	}
	return qs.Filter(filters...), nil
}

// Window restricts this query set to the given window of source entities.
// The query set is returned for convenience.
func (qs *QuerySet) Window(window cypher.Window) *QuerySet {
	qs.m.Lock()
	defer qs.m.Unlock()

	qs.window = window
	qs.invalidate()
	return qs
}

// invalidate drops the compiled query and cached records.
// qs.m must be held.
func (qs *QuerySet) invalidate() {
	qs.query = nil
	qs.records = nil
}

// Query returns the compiled query of this query set.
func (qs *QuerySet) Query() (cypher.Query, error) {
	qs.m.Lock()
	defer qs.m.Unlock()

	return qs.compile()
}

// compile compiles the query, unless it is already compiled.
// qs.m must be held.
func (qs *QuerySet) compile() (cypher.Query, error) {
	if qs.query != nil {
		return *qs.query, nil
	}

	query, err := qs.compiler.Compile(qs.shape.Descriptor(), qs.filters, qs.window)
	if err != nil {
		return query, err
	}
	qs.query = &query
	return query, nil
}

// Fetched reports if the records of this query set are currently cached.
func (qs *QuerySet) Fetched() bool {
	qs.m.Lock()
	defer qs.m.Unlock()

	return qs.records != nil
}

// All returns all records of this query set.
// Records are fetched from the store only if they are not cached.
func (qs *QuerySet) All(ctx context.Context) ([]*record.Record, error) {
	qs.m.Lock()
	defer qs.m.Unlock()

	if qs.records != nil {
		return append([]*record.Record(nil), qs.records...), nil
	}

	query, err := qs.compile()
	if err != nil {
		return nil, err
	}

	table, err := run(ctx, qs.runner, query)
	if err != nil {
		return nil, err
	}

	records, err := resultset.Parse(query, qs.shape, table)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*record.Record{}
	}

	qs.records = records
	return append([]*record.Record(nil), records...), nil
}

// Slice returns the records in the half-open range [start, stop) of source entities.
// It changes the window of this query set.
func (qs *QuerySet) Slice(ctx context.Context, start, stop int) ([]*record.Record, error) {
	window, err := cypher.Range(start, stop)
	if err != nil {
		return nil, err
	}
	return qs.Window(window).All(ctx)
}

// Get returns the record at position index.
// It changes the window of this query set.
func (qs *QuerySet) Get(ctx context.Context, index int) (*record.Record, error) {
	window, err := cypher.Index(index)
	if err != nil {
		return nil, err
	}
	records, err := qs.Window(window).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: index %d", ErrNoSuchRecord, index)
	}
	return records[0], nil
}

// Find returns the first record matching the given exact lookups.
// The query set itself is not modified.
func (qs *QuerySet) Find(ctx context.Context, lookups map[string]any) (*record.Record, bool, error) {
	clone := qs.Clone()
	if _, err := clone.Lookup(lookups); err != nil {
		return nil, false, err
	}
	records, err := clone.All(ctx)
	if err != nil || len(records) == 0 {
		return nil, false, err
	}
	return records[0], true, nil
}

// Iterate returns an iterator over the records of this query set.
func (qs *QuerySet) Iterate(ctx context.Context) iterator.Iterator[*record.Record] {
	return iterator.New(func(sender iterator.Generator[*record.Record]) {
		defer sender.Return()

		records, err := qs.All(ctx)
		if err != nil {
			sender.YieldError(err)
			return
		}
		for _, r := range records {
			if sender.Yield(r) {
				return
			}
		}
	})
}

// Count returns the number of source entities matching the filters of this query set.
// The window is ignored.
// It does not count linked entities, see [QuerySet.GroupedCount] for those.
func (qs *QuerySet) Count(ctx context.Context) (int, error) {
	qs.m.Lock()
	filters := append([]cypher.Filter(nil), qs.filters...)
	qs.m.Unlock()

	d := qs.shape.Descriptor()
	query, err := qs.compiler.Count(record.Descriptor{Source: d.Source, Fields: d.Fields}, filters)
	if err != nil {
		return 0, err
	}

	table, err := run(ctx, qs.runner, query)
	if err != nil {
		return 0, err
	}
	return resultset.Count(table)
}

// GroupedCount returns, for every source entity, the number of linked entities.
// Hyper-linked query sets count connecting relationships instead.
func (qs *QuerySet) GroupedCount(ctx context.Context) (map[string]int, error) {
	if qs.Variant() == record.NoLink {
		return nil, ErrNotLinked
	}

	qs.m.Lock()
	filters := append([]cypher.Filter(nil), qs.filters...)
	qs.m.Unlock()

	query, err := qs.compiler.Count(qs.shape.Descriptor(), filters)
	if err != nil {
		return nil, err
	}

	table, err := run(ctx, qs.runner, query)
	if err != nil {
		return nil, err
	}
	return resultset.GroupedCount(table)
}

// Exists reports if any source entity matches the filters of this query set.
func (qs *QuerySet) Exists(ctx context.Context) (bool, error) {
	count, err := qs.Count(ctx)
	return count > 0, err
}

// Contains reports if the entity with the given identifier matches the filters of this query set.
func (qs *QuerySet) Contains(ctx context.Context, id string) (bool, error) {
	filter, err := cypher.NewFilter(record.IdentifierField, "exact", id)
	if err != nil {
		return false, err
	}
	return qs.Clone().Filter(filter).Exists(ctx)
}

// run runs a query, classifying store failures.
func run(ctx context.Context, runner Runner, query cypher.Query) (resultset.Table, error) {
	table, err := runner.Run(ctx, query)
	if err != nil {
		return table, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return table, nil
}
