package queryset

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/protrend/regnet/pkg/cypher"
	"github.com/protrend/regnet/pkg/resultset"
)

type testResolver struct{}

func (testResolver) Label(entity string) (string, error) {
	switch entity {
	case "gene":
		return "Gene", nil
	case "organism":
		return "Organism", nil
	}
	return "", fmt.Errorf("%w: %q", cypher.ErrUnknownEntity, entity)
}

func (testResolver) Relation(entity, name string) (cypher.Relation, error) {
	if entity == "gene" && name == "organism" {
		return cypher.Relation{Name: "organism", Target: "organism", Type: "HAS"}, nil
	}
	return cypher.Relation{}, fmt.Errorf("%w: %q", cypher.ErrUnknownRelationship, name)
}

var compiler = cypher.Compiler{Resolver: testResolver{}}

// fakeRunner answers queries with a fixed table per kind, and records all queries it has seen.
type fakeRunner struct {
	m      sync.Mutex
	tables map[cypher.Kind]resultset.Table
	seen   []string
	err    error
}

func (fr *fakeRunner) Run(ctx context.Context, q cypher.Query) (resultset.Table, error) {
	fr.m.Lock()
	defer fr.m.Unlock()

	fr.seen = append(fr.seen, q.Text)
	if fr.err != nil {
		return resultset.Table{}, fr.err
	}
	table := fr.tables[q.Kind]
	table.Columns = q.Columns
	return table, nil
}

func (fr *fakeRunner) calls() int {
	fr.m.Lock()
	defer fr.m.Unlock()
	return len(fr.seen)
}

func genes() *fakeRunner {
	return &fakeRunner{tables: map[cypher.Kind]resultset.Table{
		cypher.Rows: {Rows: [][]any{
			{"PRT.GEN.0000001", "thrL"},
			{"PRT.GEN.0000002", "thrA"},
		}},
		cypher.Count: {Rows: [][]any{{int64(2)}}},
	}}
}

func TestQuerySet_AllCaches(t *testing.T) {
	ctx := context.Background()
	runner := genes()

	qs, err := Plain(runner, compiler, "gene", "name")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		records, err := qs.All(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != 2 || records[1].String("name") != "thrA" {
			t.Fatalf("All() got = %v", records)
		}
	}
	if got := runner.calls(); got != 1 {
		t.Errorf("All() ran %d queries, want = %d", got, 1)
	}

	// filtering invalidates the cache
	if _, err := qs.Lookup(map[string]any{"name__startswith": "thr"}); err != nil {
		t.Fatal(err)
	}
	if qs.Fetched() {
		t.Error("Filter() did not invalidate cached records")
	}
	if _, err := qs.All(ctx); err != nil {
		t.Fatal(err)
	}
	if got := runner.calls(); got != 2 {
		t.Errorf("All() after Filter() ran %d queries, want = %d", got, 2)
	}
	if last := runner.seen[1]; !strings.Contains(last, "WHERE gene.name STARTS WITH 'thr'") {
		t.Errorf("query after Filter() got = %q", last)
	}
}

func TestQuerySet_Window(t *testing.T) {
	ctx := context.Background()
	runner := genes()

	qs, err := Plain(runner, compiler, "gene", "name")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := qs.Slice(ctx, 5, 15); err != nil {
		t.Fatal(err)
	}
	if last := runner.seen[0]; !strings.HasSuffix(last, "SKIP 5 LIMIT 10") {
		t.Errorf("Slice() query got = %q", last)
	}

	record, err := qs.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if record.ID() != "PRT.GEN.0000001" {
		t.Errorf("Get() got = %q", record.ID())
	}
	if last := runner.seen[1]; !strings.HasSuffix(last, "SKIP 1 LIMIT 1") {
		t.Errorf("Get() query got = %q", last)
	}

	runner.tables[cypher.Rows] = resultset.Table{}
	if _, err := qs.Get(ctx, 100); !errors.Is(err, ErrNoSuchRecord) {
		t.Errorf("Get() past the end got error = %v, want = %v", err, ErrNoSuchRecord)
	}
}

func TestQuerySet_Counts(t *testing.T) {
	ctx := context.Background()
	runner := genes()
	runner.tables[cypher.GroupedCount] = resultset.Table{Rows: [][]any{{"PRT.GEN.0000001", int64(1)}, {"PRT.GEN.0000002", int64(0)}}}

	plain, _ := Plain(runner, compiler, "gene")
	if n, err := plain.Count(ctx); err != nil || n != 2 {
		t.Errorf("Count() got = %d, %v", n, err)
	}
	if ok, err := plain.Exists(ctx); err != nil || !ok {
		t.Errorf("Exists() got = %v, %v", ok, err)
	}
	if _, err := plain.GroupedCount(ctx); !errors.Is(err, ErrNotLinked) {
		t.Errorf("GroupedCount() on plain got error = %v, want = %v", err, ErrNotLinked)
	}

	linked, err := Linked(runner, compiler, "gene", nil, "organism", nil)
	if err != nil {
		t.Fatal(err)
	}
	counts, err := linked.GroupedCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := map[string]int{"PRT.GEN.0000001": 1, "PRT.GEN.0000002": 0}; !reflect.DeepEqual(counts, want) {
		t.Errorf("GroupedCount() got = %v, want = %v", counts, want)
	}

	// on linked sets, Count still counts sources
	if n, err := linked.Count(ctx); err != nil || n != 2 {
		t.Errorf("Count() on linked got = %d, %v, want = 2", n, err)
	}
}

func TestQuerySet_Constructors(t *testing.T) {
	runner := genes()
	if _, err := Linked(runner, compiler, "gene", nil, "", nil); !errors.Is(err, ErrLinkRequired) {
		t.Errorf("Linked() got error = %v, want = %v", err, ErrLinkRequired)
	}
	if _, err := HyperLinked(runner, compiler, "gene", nil, "organism", nil, nil); !errors.Is(err, ErrRelationshipRequired) {
		t.Errorf("HyperLinked() got error = %v, want = %v", err, ErrRelationshipRequired)
	}

	qs, err := Linked(runner, compiler, "gene", nil, "operon", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := qs.All(context.Background()); !errors.Is(err, cypher.ErrUnknownRelationship) {
		t.Errorf("All() with unknown link got error = %v, want = %v", err, cypher.ErrUnknownRelationship)
	}
	if runner.calls() != 0 {
		t.Error("All() with unknown link reached the store")
	}
}

func TestQuerySet_StoreUnavailable(t *testing.T) {
	runner := genes()
	runner.err = errors.New("connection refused")

	qs, _ := Plain(runner, compiler, "gene")
	if _, err := qs.All(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("All() got error = %v, want = %v", err, ErrStoreUnavailable)
	}
	if qs.Fetched() {
		t.Error("All() cached a failed fetch")
	}
}

func TestQuerySet_Iterate(t *testing.T) {
	qs, _ := Plain(genes(), compiler, "gene", "name")

	it := qs.Iterate(context.Background())
	defer it.Close()

	var names []string
	for it.Next() {
		names = append(names, it.Datum().String("name"))
	}
	if err := it.Err(); err != nil {
		t.Fatal(err)
	}
	if want := []string{"thrL", "thrA"}; !reflect.DeepEqual(names, want) {
		t.Errorf("Iterate() got = %v, want = %v", names, want)
	}
}

func TestCombine(t *testing.T) {
	ctx := context.Background()

	names := genes()
	tags := &fakeRunner{tables: map[cypher.Kind]resultset.Table{
		cypher.Rows: {Rows: [][]any{
			{"PRT.GEN.0000002", "b0002"},
			{"PRT.GEN.0000003", "b0003"},
		}},
	}}

	a, _ := Plain(names, compiler, "gene", "name")
	b, _ := Plain(tags, compiler, "gene", "locus_tag")

	combined, err := Combine(ctx, a, b)
	if err != nil {
		t.Fatal(err)
	}

	got := make([]map[string]any, len(combined))
	for i, r := range combined {
		got[i] = r.Map()
	}
	want := []map[string]any{
		{"protrend_id": "PRT.GEN.0000001", "name": "thrL"},
		{"protrend_id": "PRT.GEN.0000002", "name": "thrA", "locus_tag": "b0002"},
		{"protrend_id": "PRT.GEN.0000003", "locus_tag": "b0003"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Combine() got = %v, want = %v", got, want)
	}

	// combining with itself is idempotent
	self, err := Combine(ctx, a, a)
	if err != nil {
		t.Fatal(err)
	}
	all, _ := a.All(ctx)
	if !reflect.DeepEqual(self, all) {
		t.Errorf("Combine(a, a) got = %v, want = %v", self, all)
	}
}
