package bolt

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/protrend/regnet/internal/schema"
	"github.com/protrend/regnet/pkg/queryset"
	"github.com/protrend/regnet/pkg/record"
	"github.com/protrend/regnet/pkg/resultset"
)

var fixed = time.Date(2023, 11, 23, 7, 52, 23, 0, time.UTC)

type statement struct {
	Text   string
	Params map[string]any
	Write  bool
}

// recorder records executed statements and answers them with a fixed table.
type recorder struct {
	statements []statement
	table      resultset.Table
	err        error
}

func (r *recorder) Execute(ctx context.Context, text string, params map[string]any, write bool) (resultset.Table, error) {
	r.statements = append(r.statements, statement{Text: text, Params: params, Write: write})
	return r.table, r.err
}

func newStore(table resultset.Table) (*Store, *recorder) {
	r := &recorder{table: table}
	return &Store{Schema: schema.Default(), Executor: r, Now: func() time.Time { return fixed }}, r
}

var one = resultset.Table{Columns: []string{"count(n)"}, Rows: [][]any{{int64(1)}}}

func TestStore_Run(t *testing.T) {
	table := resultset.Table{
		Columns: []string{"organism.protrend_id", "organism.name"},
		Rows:    [][]any{{"PRT.ORG.0000001", "E. coli"}},
	}
	store, r := newStore(table)

	qs, err := queryset.Plain(store, store.Schema.Compiler(), schema.Organism, "name")
	if err != nil {
		t.Fatal(err)
	}
	records, err := qs.All(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].String("name") != "E. coli" {
		t.Errorf("All() got = %v", records)
	}

	if len(r.statements) != 1 {
		t.Fatalf("Run() executed %d statements, want = 1", len(r.statements))
	}
	got := r.statements[0]
	if got.Write || !strings.HasPrefix(got.Text, "MATCH (organism:Organism)") {
		t.Errorf("Run() got = %#v", got)
	}
}

func TestStore_Run_error(t *testing.T) {
	store, r := newStore(resultset.Table{})
	boom := errors.New("connection refused")
	r.err = boom

	qs, err := queryset.Plain(store, store.Schema.Compiler(), schema.Organism)
	if err != nil {
		t.Fatal(err)
	}
	_, err = qs.Count(context.Background())
	if !errors.Is(err, boom) || !errors.Is(err, queryset.ErrStoreUnavailable) {
		t.Errorf("Count() error = %v, want = %v", err, boom)
	}
}

func TestStore_Create(t *testing.T) {
	store, r := newStore(resultset.Table{})

	err := store.Create(context.Background(), schema.Organism, []map[string]any{
		{record.IdentifierField: "PRT.ORG.0000001", "name": "E. coli", "strain": nil},
	})
	if err != nil {
		t.Fatal(err)
	}

	got := r.statements[0]
	if want := "UNWIND $nodes AS props CREATE (n:Organism) SET n = props"; got.Text != want || !got.Write {
		t.Errorf("Create() got = %q, want = %q", got.Text, want)
	}

	nodes := got.Params["nodes"].([]map[string]any)
	node := nodes[0]
	if _, ok := node["strain"]; ok {
		t.Error("Create() sent a nil field")
	}
	if node[schema.UIDField] == "" || node[schema.CreatedField] != fixed || node[schema.UpdatedField] != fixed {
		t.Errorf("Create() got node = %v", node)
	}
}

func TestStore_Update(t *testing.T) {
	store, r := newStore(one)
	ctx := context.Background()

	if err := store.Update(ctx, schema.Gene, "PRT.GEN.0000001", map[string]any{"name": "thrA", record.IdentifierField: "PRT.GEN.0000002"}); err != nil {
		t.Fatal(err)
	}

	got := r.statements[0]
	if want := "MATCH (n:Gene {protrend_id: $id}) SET n += $changes, n.updated = $now RETURN count(n)"; got.Text != want {
		t.Errorf("Update() got = %q, want = %q", got.Text, want)
	}
	if want := map[string]any{"name": "thrA"}; !reflect.DeepEqual(got.Params["changes"], want) {
		t.Errorf("Update() got changes = %v, want = %v", got.Params["changes"], want)
	}

	r.table = resultset.Table{Columns: []string{"count(n)"}, Rows: [][]any{{int64(0)}}}
	if err := store.Update(ctx, schema.Gene, "PRT.GEN.0000009", map[string]any{"name": "thrB"}); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("Update() error = %v, want = %v", err, ErrNodeNotFound)
	}
}

func TestStore_Delete(t *testing.T) {
	store, r := newStore(resultset.Table{})

	if err := store.Delete(context.Background(), schema.Regulator, "PRT.REG.0000001"); err != nil {
		t.Fatal(err)
	}
	got := r.statements[0]
	if want := "MATCH (n:Regulator {protrend_id: $id}) DETACH DELETE n"; got.Text != want {
		t.Errorf("Delete() got = %q, want = %q", got.Text, want)
	}
	if got.Params["id"] != "PRT.REG.0000001" {
		t.Errorf("Delete() got params = %v", got.Params)
	}
}

func TestStore_write_error(t *testing.T) {
	store, r := newStore(one)
	boom := errors.New("connection refused")
	r.err = boom
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"Create", func() error {
			return store.Create(ctx, schema.Organism, []map[string]any{{"protrend_id": "PRT.ORG.0000001"}})
		}},
		{"Update", func() error {
			return store.Update(ctx, schema.Organism, "PRT.ORG.0000001", map[string]any{"name": "E. coli"})
		}},
		{"Delete", func() error {
			return store.Delete(ctx, schema.Organism, "PRT.ORG.0000001")
		}},
		{"Connect", func() error {
			return store.Connect(ctx, schema.Link{From: "PRT.ORG.0000001", Relation: schema.Regulator, To: "PRT.REG.0000001"})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, boom) || !errors.Is(err, queryset.ErrStoreUnavailable) {
				t.Errorf("%s() error = %v, want = %v", tt.name, err, queryset.ErrStoreUnavailable)
			}
		})
	}
}

func TestStore_Connect(t *testing.T) {
	store, r := newStore(one)
	ctx := context.Background()

	err := store.Connect(ctx, schema.Link{From: "PRT.ORG.0000001", Relation: "data_source", To: "PRT.SRC.0000001", Fields: map[string]any{"key": "511145"}})
	if err != nil {
		t.Fatal(err)
	}

	got := r.statements[0]
	for _, want := range []string{
		"MATCH (a:Organism {protrend_id: $from}), (b:Source {protrend_id: $to})",
		"MERGE (a)-[r:OWNER]->(b)",
		"MERGE (b)-[s:OWNER]->(a)",
	} {
		if !strings.Contains(got.Text, want) {
			t.Errorf("Connect() got = %q, want to contain %q", got.Text, want)
		}
	}

	tests := []struct {
		name    string
		link    schema.Link
		wantErr error
	}{
		{"wrong target", schema.Link{From: "PRT.ORG.0000001", Relation: "regulator", To: "PRT.GEN.0000001"}, ErrWrongEntity},
		{"unknown field", schema.Link{From: "PRT.ORG.0000001", Relation: "regulator", To: "PRT.REG.0000001", Fields: map[string]any{"url": "x"}}, schema.ErrUnknownField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.Connect(ctx, tt.link); !errors.Is(err, tt.wantErr) {
				t.Errorf("Connect() error = %v, want = %v", err, tt.wantErr)
			}
		})
	}
}
