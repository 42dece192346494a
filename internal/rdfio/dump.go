package rdfio

import (
	"context"
	"io"
	"time"

	"github.com/anglo-korean/rdf"
	"github.com/protrend/regnet/internal/graphstore"
	"github.com/protrend/regnet/internal/schema"
	"github.com/protrend/regnet/internal/stats"
	"github.com/protrend/regnet/pkg/hashkey"
	"github.com/protrend/regnet/pkg/progress"
	"github.com/protrend/regnet/pkg/record"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Dump writes all nodes and edges of store to w as N-Triples.
// Timestamps maintained by the store are omitted.
func Dump(ctx context.Context, store *graphstore.Store, w io.Writer, st *stats.Stats) error {
	return st.DoStage(stats.StageDump, func() error {
		encoder := rdf.NewTripleEncoder(&progress.Writer{Writer: w, Rewritable: rewritable(st)}, rdf.NTriples)

		for _, entity := range store.Schema.Entities() {
			if err := dumpEntity(ctx, store, encoder, entity.Name); err != nil {
				return err
			}
		}
		return encoder.Close()
	})
}

func dumpEntity(ctx context.Context, store *graphstore.Store, encoder *rdf.TripleEncoder, entity string) error {
	nodes := store.Nodes(ctx, entity)
	defer nodes.Close()

	for nodes.Next() {
		node := nodes.Datum()

		triples, err := NodeTriples(node)
		if err != nil {
			return err
		}

		edges := store.Edges(ctx, node.ID())
		for edges.Next() {
			triple, err := EdgeTriple(edges.Datum())
			if err != nil {
				edges.Close()
				return err
			}
			triples = append(triples, triple)
		}
		if err := edges.Err(); err != nil {
			edges.Close()
			return err
		}
		edges.Close()

		if err := encoder.EncodeAll(triples); err != nil {
			return err
		}
	}
	return nodes.Err()
}

// NodeTriples returns the triples representing the fields of a node, ordered by field.
func NodeTriples(node graphstore.Node) ([]rdf.Triple, error) {
	subject, err := rdf.NewIRI(IRI(node.ID()))
	if err != nil {
		return nil, err
	}

	fields := maps.Keys(node.Fields)
	slices.Sort(fields)

	var triples []rdf.Triple
	for _, field := range fields {
		if field == record.IdentifierField || field == schema.CreatedField || field == schema.UpdatedField {
			continue
		}

		predicate, err := rdf.NewIRI(IRI(field))
		if err != nil {
			return nil, err
		}

		values, ok := node.Fields[field].([]any)
		if !ok {
			values = []any{node.Fields[field]}
		}
		for _, value := range values {
			if value == nil {
				continue
			}
			object, err := rdf.NewLiteral(literal(value))
			if err != nil {
				return nil, err
			}
			triples = append(triples, rdf.Triple{Subj: subject, Pred: predicate, Obj: object})
		}
	}
	return triples, nil
}

// EdgeTriple returns the triple representing an edge.
func EdgeTriple(edge graphstore.Edge) (spo rdf.Triple, err error) {
	if spo.Subj, err = rdf.NewIRI(IRI(edge.From)); err != nil {
		return rdf.Triple{}, err
	}
	if spo.Pred, err = rdf.NewIRI(IRI(edge.Relation)); err != nil {
		return rdf.Triple{}, err
	}
	if spo.Obj, err = rdf.NewIRI(IRI(edge.To)); err != nil {
		return rdf.Triple{}, err
	}
	return spo, nil
}

// literal turns a field value into a value accepted by [rdf.NewLiteral]
func literal(value any) any {
	switch v := value.(type) {
	case string, bool, int64, float64, time.Time:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float32:
		return float64(v)
	default:
		return hashkey.Stringify(v)
	}
}
