package rdfio

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/protrend/regnet/internal/catalog"
	"github.com/protrend/regnet/internal/graphstore"
	"github.com/protrend/regnet/internal/schema"
	"github.com/protrend/regnet/pkg/unique"
)

func open(t *testing.T) *graphstore.Store {
	t.Helper()

	store, err := graphstore.Open(schema.Default(), &graphstore.MemoryEngine{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestName(t *testing.T) {
	tests := []struct {
		iri     string
		want    string
		wantErr error
	}{
		{"prt:PRT.ORG.0000001", "PRT.ORG.0000001", nil},
		{"prt:name", "name", nil},
		{"prt:", "", ErrNotInNamespace},
		{"http://example.com/name", "", ErrNotInNamespace},
	}
	for _, tt := range tests {
		t.Run(tt.iri, func(t *testing.T) {
			got, err := Name(tt.iri)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Name() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Name() got = %v, want = %v", got, tt.want)
			}
		})
	}
}

const ecoli = `<prt:PRT.ORG.0000001> <prt:name> "E. coli" .
<prt:PRT.ORG.0000001> <prt:name_factor> "e. coli" .
<prt:PRT.ORG.0000001> <prt:ncbi_taxonomy> "511145"^^<http://www.w3.org/2001/XMLSchema#integer> .
<prt:PRT.ORG.0000001> <prt:regulator> <prt:PRT.REG.0000001> <prt:graph> .
<prt:PRT.REG.0000001> <prt:locus_tag> "b3357" .
<prt:PRT.REG.0000001> <prt:synonyms> "crp1" .
<prt:PRT.REG.0000001> <prt:synonyms> "cap" .
<http://example.com/other> <prt:name> "ignored" .
`

func TestRead(t *testing.T) {
	graph, err := Read(strings.NewReader(ecoli), nil)
	if err != nil {
		t.Fatal(err)
	}

	wantNodes := map[string]map[string]any{
		"PRT.ORG.0000001": {"protrend_id": "PRT.ORG.0000001", "name": "E. coli", "name_factor": "e. coli", "ncbi_taxonomy": int64(511145)},
		"PRT.REG.0000001": {"protrend_id": "PRT.REG.0000001", "locus_tag": "b3357", "synonyms": []any{"crp1", "cap"}},
	}
	if !reflect.DeepEqual(graph.Nodes, wantNodes) {
		t.Errorf("Read() got nodes = %v, want = %v", graph.Nodes, wantNodes)
	}

	wantLinks := []schema.Link{{From: "PRT.ORG.0000001", Relation: "regulator", To: "PRT.REG.0000001"}}
	if !reflect.DeepEqual(graph.Links, wantLinks) {
		t.Errorf("Read() got links = %v, want = %v", graph.Links, wantLinks)
	}
}

func TestImport(t *testing.T) {
	store := open(t)
	ctx := context.Background()

	c := catalog.New(store.Schema, store, nil, nil)
	if err := Import(ctx, c, strings.NewReader(ecoli), nil); err != nil {
		t.Fatal(err)
	}

	size, err := store.Size()
	if err != nil {
		t.Fatal(err)
	}
	if size.Nodes != 2 || size.Edges != 2 {
		t.Errorf("Import() got size = %v, want 2 nodes and 2 edges", size)
	}

	// imported keys are visible to the catalog
	_, err = c.Create(ctx, schema.Organism, map[string]any{"name": "E. Coli"})
	if !errors.Is(err, unique.ErrDuplicateEntity) {
		t.Errorf("Create() error = %v, want = %v", err, unique.ErrDuplicateEntity)
	}
	created, err := c.Create(ctx, schema.Organism, map[string]any{"name": "B. subtilis"})
	if err != nil {
		t.Fatal(err)
	}
	if got := created["protrend_id"]; got != "PRT.ORG.0000002" {
		t.Errorf("Create() got id = %v, want = %v", got, "PRT.ORG.0000002")
	}
}

func TestImport_duplicates(t *testing.T) {
	tests := []struct {
		name  string
		quads string
	}{
		{
			"normalized name",
			`<prt:PRT.ORG.0000001> <prt:name> "E. coli" .
<prt:PRT.ORG.0000002> <prt:name> "e. coli " .
`,
		},
		{
			"stale factor",
			`<prt:PRT.ORG.0000001> <prt:name> "E. coli" .
<prt:PRT.ORG.0000002> <prt:name> "e. coli" .
<prt:PRT.ORG.0000002> <prt:name_factor> "something else" .
`,
		},
		{
			"taxonomy",
			`<prt:PRT.ORG.0000001> <prt:name> "E. coli" .
<prt:PRT.ORG.0000001> <prt:ncbi_taxonomy> "511145"^^<http://www.w3.org/2001/XMLSchema#integer> .
<prt:PRT.ORG.0000002> <prt:name> "Escherichia coli" .
<prt:PRT.ORG.0000002> <prt:ncbi_taxonomy> "511145" .
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := open(t)
			c := catalog.New(store.Schema, store, nil, nil)

			err := Import(context.Background(), c, strings.NewReader(tt.quads), nil)
			if !errors.Is(err, unique.ErrDuplicateEntity) {
				t.Errorf("Import() error = %v, want = %v", err, unique.ErrDuplicateEntity)
			}

			size, err := store.Size()
			if err != nil {
				t.Fatal(err)
			}
			if size.Nodes != 0 {
				t.Errorf("Import() stored %d nodes, want = 0", size.Nodes)
			}
		})
	}
}

func TestImport_existing(t *testing.T) {
	store := open(t)
	ctx := context.Background()

	c := catalog.New(store.Schema, store, nil, nil)
	if _, err := c.Create(ctx, schema.Organism, map[string]any{"name": "E. coli"}); err != nil {
		t.Fatal(err)
	}

	err := Import(ctx, c, strings.NewReader(`<prt:PRT.ORG.0000002> <prt:name> "E. COLI" .`+"\n"), nil)
	var de *unique.DuplicateEntityError
	if !errors.As(err, &de) {
		t.Fatalf("Import() error = %v, want = %v", err, unique.ErrDuplicateEntity)
	}
	if de.Existing != "PRT.ORG.0000001" || de.Field != "name_factor" {
		t.Errorf("Import() got error = %#v", de)
	}

	// the uniqueness key is computed when the file does not carry one
	if err := Import(ctx, c, strings.NewReader(`<prt:PRT.ORG.0000002> <prt:name> "B. subtilis" .`+"\n"), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Create(ctx, schema.Organism, map[string]any{"name": " b. SUBTILIS"}); !errors.Is(err, unique.ErrDuplicateEntity) {
		t.Errorf("Create() error = %v, want = %v", err, unique.ErrDuplicateEntity)
	}
}

func TestDump(t *testing.T) {
	store := open(t)
	ctx := context.Background()

	c := catalog.New(store.Schema, store, nil, nil)
	org, err := c.Create(ctx, schema.Organism, map[string]any{"name": "E. coli", "ncbi_taxonomy": 511145})
	if err != nil {
		t.Fatal(err)
	}
	reg, err := c.Create(ctx, schema.Regulator, map[string]any{"locus_tag": "b3357", "synonyms": []any{"crp1", "cap"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Connect(ctx, schema.Link{From: org["protrend_id"].(string), Relation: schema.Regulator, To: reg["protrend_id"].(string)}); err != nil {
		t.Fatal(err)
	}

	var buffer bytes.Buffer
	if err := Dump(ctx, store, &buffer, nil); err != nil {
		t.Fatal(err)
	}
	dump := buffer.String()

	for _, want := range []string{
		`<prt:PRT.ORG.0000001> <prt:name> "E. coli"`,
		`<prt:PRT.ORG.0000001> <prt:regulator> <prt:PRT.REG.0000001> .`,
		`<prt:PRT.REG.0000001> <prt:organism> <prt:PRT.ORG.0000001> .`,
		`<prt:PRT.REG.0000001> <prt:synonyms> "cap"`,
	} {
		if !strings.Contains(dump, want) {
			t.Errorf("Dump() got = %q, want to contain %q", dump, want)
		}
	}
	if strings.Contains(dump, "<prt:created>") {
		t.Error("Dump() contains timestamps")
	}

	// load the dump into a fresh store
	other := open(t)
	if err := Import(ctx, catalog.New(other.Schema, other, nil, nil), strings.NewReader(dump), nil); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"PRT.ORG.0000001", "PRT.REG.0000001"} {
		want, _, _ := store.Get(ctx, "", id)
		got, ok, err := other.Get(ctx, "", id)
		if err != nil || !ok {
			t.Fatalf("Get(%q) = %v, %v", id, ok, err)
		}
		for _, field := range []string{"uid", "name", "name_factor", "locus_tag", "locus_tag_factor", "ncbi_taxonomy_factor"} {
			if got.Fields[field] != want.Fields[field] {
				t.Errorf("%s.%s got = %v, want = %v", id, field, got.Fields[field], want.Fields[field])
			}
		}
	}
}
