package rdfio

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/nquads"
	"github.com/protrend/regnet/internal/catalog"
	"github.com/protrend/regnet/internal/schema"
	"github.com/protrend/regnet/internal/stats"
	"github.com/protrend/regnet/pkg/ident"
	"github.com/protrend/regnet/pkg/progress"
	"github.com/protrend/regnet/pkg/record"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Graph holds entities and links read from a file.
type Graph struct {
	Nodes map[string]map[string]any // fields by identifier
	Links []schema.Link
}

// Read reads quads from r into a graph.
// Quads whose subject or predicate lies outside the namespace are ignored.
func Read(r io.Reader, st *stats.Stats) (*Graph, error) {
	reader := nquads.NewReader(&progress.Reader{Reader: r, Rewritable: rewritable(st)}, true)
	defer reader.Close()

	graph := &Graph{Nodes: make(map[string]map[string]any)}
	for {
		value, err := reader.ReadQuad()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		subject, sOK := name(value.Subject)
		predicate, pOK := name(value.Predicate)
		if !(sOK && pOK) {
			continue
		}

		fields := graph.Nodes[subject]
		if fields == nil {
			fields = map[string]any{record.IdentifierField: subject}
			graph.Nodes[subject] = fields
		}

		if object, ok := name(value.Object); ok {
			graph.Links = append(graph.Links, schema.Link{From: subject, Relation: predicate, To: object})
			continue
		}

		datum, err := native(value.Object)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", subject, predicate, err)
		}
		switch old := fields[predicate].(type) {
		case nil:
			fields[predicate] = datum
		case []any:
			fields[predicate] = append(old, datum)
		default:
			fields[predicate] = []any{old, datum}
		}
	}
	return graph, nil
}

// Load writes a graph through a catalog.
// Nodes are imported in batches per entity, in identifier order, followed by all links.
// Natural keys are validated like those of newly created entities.
func Load(ctx context.Context, c *catalog.Catalog, graph *Graph, st *stats.Stats) error {
	byEntity := make(map[string][]map[string]any)
	for id, fields := range graph.Nodes {
		entity, err := c.Schema().Owner(id)
		if err != nil {
			return err
		}
		byEntity[entity.Name] = append(byEntity[entity.Name], fields)
	}

	entities := maps.Keys(byEntity)
	slices.Sort(entities)

	var done int
	for _, entity := range entities {
		nodes := byEntity[entity]
		slices.SortFunc(nodes, func(a, b map[string]any) int {
			return ident.Compare(a[record.IdentifierField].(string), b[record.IdentifierField].(string))
		})

		if _, err := c.Import(ctx, entity, nodes); err != nil {
			return fmt.Errorf("load %s: %w", entity, err)
		}
		done += len(nodes)
		st.SetCT(done, len(graph.Nodes))
	}

	if len(graph.Links) == 0 {
		return nil
	}
	return c.Connect(ctx, graph.Links...)
}

// Import reads quads from r and loads them through a catalog.
func Import(ctx context.Context, c *catalog.Catalog, r io.Reader, st *stats.Stats) error {
	return st.DoStage(stats.StageImport, func() error {
		graph, err := Read(r, st)
		if err != nil {
			return err
		}
		st.Log("read graph", "nodes", len(graph.Nodes), "links", len(graph.Links))
		return Load(ctx, c, graph, st)
	})
}

func name(value quad.Value) (string, bool) {
	iri, ok := value.(quad.IRI)
	if !ok {
		return "", false
	}
	name, err := Name(string(iri))
	return name, err == nil
}

// native turns a literal into a field value
func native(value quad.Value) (any, error) {
	switch v := value.(type) {
	case quad.String:
		return string(v), nil
	case quad.LangString:
		return string(v.Value), nil
	case quad.TypedString:
		return typed(string(v.Value), string(v.Type))
	case quad.BNode:
		return nil, fmt.Errorf("unexpected blank node %q", string(v))
	default:
		return fmt.Sprint(value.Native()), nil
	}
}

// typed parses a literal of an xml schema datatype
func typed(value, datatype string) (any, error) {
	_, kind, _ := strings.Cut(datatype, "#")
	switch kind {
	case "integer", "int", "long", "short":
		return strconv.ParseInt(value, 10, 64)
	case "double", "float", "decimal":
		return strconv.ParseFloat(value, 64)
	case "boolean":
		return strconv.ParseBool(value)
	case "dateTime":
		return time.Parse(time.RFC3339Nano, value)
	default:
		return value, nil
	}
}
