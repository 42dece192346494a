package cypher

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/protrend/regnet/pkg/record"
)

// testResolver resolves a tiny schema.
type testResolver struct{}

var testLabels = map[string]string{
	"gene":      "Gene",
	"regulator": "Regulator",
	"source":    "Source",
	"organism":  "Organism",
}

var testRelations = map[string]Relation{
	"regulator.gene":        {Name: "gene", Target: "gene", Type: "HAS"},
	"regulator.data_source": {Name: "data_source", Target: "source", Type: "OWNER"},
	"organism.organism":     {Name: "organism", Target: "organism", Type: "HAS"},
}

func (testResolver) Label(entity string) (string, error) {
	label, ok := testLabels[entity]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}
	return label, nil
}

func (testResolver) Relation(entity, name string) (Relation, error) {
	relation, ok := testRelations[entity+"."+name]
	if !ok {
		return relation, fmt.Errorf("%w: %q on %q", ErrUnknownRelationship, name, entity)
	}
	return relation, nil
}

var compiler = Compiler{Resolver: testResolver{}}

func mustFilter(t *testing.T, lookup string, value any) Filter {
	t.Helper()
	filter, err := ParseLookup(lookup, value)
	if err != nil {
		t.Fatalf("ParseLookup(%q) returned error %s", lookup, err)
	}
	return filter
}

func ExampleCompiler_Compile() {
	query, _ := compiler.Compile(record.Descriptor{
		Source:       "regulator",
		Fields:       []string{"locus_tag"},
		Linked:       "gene",
		LinkedFields: []string{"locus_tag"},
	}, nil, Window{})
	fmt.Println(query)

	// Output: MATCH (regulator:Regulator) OPTIONAL MATCH (regulator)-[:HAS]->(gene:Gene) RETURN regulator.protrend_id, regulator.locus_tag, gene.protrend_id, gene.locus_tag
}

func TestCompiler_Compile(t *testing.T) {
	page, _ := Range(10, 30)
	index, _ := Index(3)

	tests := []struct {
		name       string
		descriptor record.Descriptor
		filters    []Filter
		window     Window
		want       string
		wantCols   []string
	}{
		{
			name:       "plain",
			descriptor: record.Descriptor{Source: "gene", Fields: []string{"name"}},
			want:       "MATCH (gene:Gene) RETURN gene.protrend_id, gene.name ORDER BY size(gene.protrend_id), gene.protrend_id",
			wantCols:   []string{"gene.protrend_id", "gene.name"},
		},
		{
			name:       "plain with filters and window",
			descriptor: record.Descriptor{Source: "gene", Fields: []string{"name"}},
			filters:    []Filter{mustFilter(t, "name__contains", "thr"), mustFilter(t, "start__gte", 100)},
			window:     page,
			want:       "MATCH (gene:Gene) WHERE gene.name CONTAINS 'thr' AND gene.start >= 100 RETURN gene.protrend_id, gene.name ORDER BY size(gene.protrend_id), gene.protrend_id SKIP 10 LIMIT 20",
			wantCols:   []string{"gene.protrend_id", "gene.name"},
		},
		{
			name: "hyper-linked with index",
			descriptor: record.Descriptor{
				Source:             "regulator",
				Fields:             []string{"locus_tag"},
				Linked:             "data_source",
				LinkedFields:       []string{"name"},
				RelationshipFields: []string{"url", "key"},
			},
			window:   index,
			want:     "MATCH (regulator:Regulator) WITH regulator ORDER BY size(regulator.protrend_id), regulator.protrend_id SKIP 3 LIMIT 1 OPTIONAL MATCH (regulator)-[rel:OWNER]->(source:Source) RETURN regulator.protrend_id, regulator.locus_tag, rel.url, rel.key, source.protrend_id, source.name",
			wantCols: []string{"regulator.protrend_id", "regulator.locus_tag", "rel.url", "rel.key", "source.protrend_id", "source.name"},
		},
		{
			name:       "self link gets a distinct variable",
			descriptor: record.Descriptor{Source: "organism", Linked: "organism"},
			want:       "MATCH (organism:Organism) OPTIONAL MATCH (organism)-[:HAS]->(organism_link:Organism) RETURN organism.protrend_id, organism_link.protrend_id",
			wantCols:   []string{"organism.protrend_id", "organism_link.protrend_id"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := compiler.Compile(tt.descriptor, tt.filters, tt.window)
			if err != nil {
				t.Fatalf("Compile() returned error %s", err)
			}
			if got.Text != tt.want {
				t.Errorf("Compile() got = %q, want = %q", got.Text, tt.want)
			}
			if !reflect.DeepEqual(got.Columns, tt.wantCols) {
				t.Errorf("Compile() columns got = %v, want = %v", got.Columns, tt.wantCols)
			}
		})
	}
}

func TestCompiler_Count(t *testing.T) {
	plain, err := compiler.Count(record.Descriptor{Source: "gene"}, []Filter{mustFilter(t, "name", "thrL")})
	if err != nil {
		t.Fatal(err)
	}
	if want := "MATCH (gene:Gene) WHERE gene.name = 'thrL' RETURN count(gene)"; plain.Text != want {
		t.Errorf("Count() got = %q, want = %q", plain.Text, want)
	}
	if plain.Kind != Count {
		t.Errorf("Count() kind got = %s, want = %s", plain.Kind, Count)
	}

	grouped, err := compiler.Count(record.Descriptor{Source: "regulator", Linked: "gene"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := "MATCH (regulator:Regulator) OPTIONAL MATCH (regulator)-[:HAS]->(gene:Gene) RETURN regulator.protrend_id, count(gene)"; grouped.Text != want {
		t.Errorf("Count() got = %q, want = %q", grouped.Text, want)
	}

	hyper, err := compiler.Count(record.Descriptor{Source: "regulator", Linked: "data_source", RelationshipFields: []string{"url"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(hyper.Text, "RETURN regulator.protrend_id, count(rel)") {
		t.Errorf("Count() of hyper-linked does not count relationships: %q", hyper.Text)
	}
}

func TestCompiler_Last(t *testing.T) {
	got, err := compiler.Last("gene")
	if err != nil {
		t.Fatal(err)
	}
	if want := "MATCH (gene:Gene) RETURN gene.protrend_id ORDER BY size(gene.protrend_id) DESC, gene.protrend_id DESC LIMIT 1"; got.Text != want {
		t.Errorf("Last() got = %q, want = %q", got.Text, want)
	}
}

func TestCompiler_Errors(t *testing.T) {
	if _, err := compiler.Compile(record.Descriptor{Source: "regulator", Linked: "pathway"}, nil, Window{}); !errors.Is(err, ErrUnknownRelationship) {
		t.Errorf("Compile() with unknown link got error = %v, want = %v", err, ErrUnknownRelationship)
	}
	if _, err := compiler.Compile(record.Descriptor{Source: "motif"}, nil, Window{}); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("Compile() with unknown source got error = %v, want = %v", err, ErrUnknownEntity)
	}
	if _, err := compiler.Compile(record.Descriptor{Source: "gene", RelationshipFields: []string{"url"}}, nil, Window{}); !errors.Is(err, record.ErrRelationshipWithoutLink) {
		t.Errorf("Compile() with relationship fields but no link got error = %v", err)
	}
	bad := Filter{Field: "name = '' OR 1=1 //", Operator: Operators["exact"], Value: "x"}
	if _, err := compiler.Compile(record.Descriptor{Source: "gene"}, []Filter{bad}, Window{}); !errors.Is(err, record.ErrInvalidField) {
		t.Errorf("Compile() with injected field got error = %v", err)
	}
}

func TestOperator_Fragment(t *testing.T) {
	tests := []struct {
		op    string
		value any
		want  string
	}{
		{"exact", "E. coli", "n.f = 'E. coli'"},
		{"exact", 42, "n.f = 42"},
		{"ne", "x", "n.f <> 'x'"},
		{"lt", 1.5, "n.f < 1.5"},
		{"gt", 2, "n.f > 2"},
		{"lte", int64(3), "n.f <= 3"},
		{"gte", 4, "n.f >= 4"},
		{"in", []string{"a", "b'"}, `n.f IN ['a', 'b\'']`},
		{"in", 3, "n.f IN [3]"},
		{"isnull", nil, "n.f IS NULL"},
		{"isnull", "ignored", "n.f IS NULL"},
		{"contains", 5, "n.f CONTAINS '5'"},
		{"startswith", "thr", "n.f STARTS WITH 'thr'"},
		{"endswith", `a\b`, `n.f ENDS WITH 'a\\b'`},
	}
	for _, tt := range tests {
		op, err := Lookup(tt.op)
		if err != nil {
			t.Fatal(err)
		}
		got, err := op.Fragment("n.f", tt.value)
		if err != nil {
			t.Errorf("Fragment(%s, %v) returned error %s", tt.op, tt.value, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Fragment(%s, %v) got = %q, want = %q", tt.op, tt.value, got, tt.want)
		}
	}

	if _, err := Lookup("regex"); !errors.Is(err, ErrUnknownOperator) {
		t.Errorf("Lookup(regex) got error = %v", err)
	}
}

func TestOperator_Table(t *testing.T) {
	want := []string{"contains", "endswith", "exact", "gt", "gte", "in", "isnull", "lt", "lte", "ne", "startswith"}
	if got := OperatorNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("OperatorNames() got = %v, want = %v", got, want)
	}
	for _, name := range want {
		op := Operators[name]
		if op.TakesOperand == (name == "isnull") {
			t.Errorf("operator %s: TakesOperand = %v", name, op.TakesOperand)
		}
	}
}

func TestOperator_Match(t *testing.T) {
	tests := []struct {
		op          string
		left, right any
		want        bool
	}{
		{"exact", "thrL", "thrL", true},
		{"exact", int64(42), 42, true},
		{"exact", nil, nil, false},
		{"exact", "42", 42, false},
		{"ne", "a", "b", true},
		{"ne", nil, "b", false},
		{"lt", 1, 2.5, true},
		{"gt", "b", "a", true},
		{"gte", 3, 3, true},
		{"lte", "a", 1, false},
		{"in", "b", []string{"a", "b"}, true},
		{"in", 2, []any{1, int64(2)}, true},
		{"in", "c", []string{"a", "b"}, false},
		{"isnull", nil, nil, true},
		{"isnull", "", nil, false},
		{"contains", "threonine", "reo", true},
		{"contains", 12345, "3", false},
		{"startswith", "thrL", "thr", true},
		{"endswith", "thrL", "L", true},
	}
	for _, tt := range tests {
		if got := Operators[tt.op].Match(tt.left, tt.right); got != tt.want {
			t.Errorf("%s.Match(%v, %v) got = %v, want = %v", tt.op, tt.left, tt.right, got, tt.want)
		}
	}
}

func TestParseLookups(t *testing.T) {
	filters, err := ParseLookups(map[string]any{"name__startswith": "thr", "protrend_id": "PRT.GEN.0000001"})
	if err != nil {
		t.Fatal(err)
	}
	got := make([]string, len(filters))
	for i, f := range filters {
		got[i] = f.String()
	}
	want := []string{"name__startswith=thr", "protrend_id__exact=PRT.GEN.0000001"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseLookups() got = %v, want = %v", got, want)
	}

	if _, err := ParseLookup("name__contains__x", "a"); !errors.Is(err, ErrInvalidLookup) {
		t.Errorf("ParseLookup() got error = %v, want = %v", err, ErrInvalidLookup)
	}
}

func TestWindow(t *testing.T) {
	w, err := Range(5, 8)
	if err != nil {
		t.Fatal(err)
	}
	if w.Skip != 5 || w.Limit != 3 {
		t.Errorf("Range(5, 8) got = %+v", w)
	}
	if from, to := w.Apply(6); from != 5 || to != 6 {
		t.Errorf("Apply(6) got = [%d, %d)", from, to)
	}
	if _, err := Range(4, 2); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("Range(4, 2) got error = %v", err)
	}
	if _, err := Index(-1); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("Index(-1) got error = %v", err)
	}
	if from, to := (Window{}).Apply(7); from != 0 || to != 7 {
		t.Errorf("unbounded Apply(7) got = [%d, %d)", from, to)
	}
}
