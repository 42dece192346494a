// Package rdfio reads and writes the contents of a store as rdf.
//
// Every entity is represented by the IRI of its identifier within [Namespace].
// Fields of an entity are literal-valued triples, relations are IRI-valued triples.
// A field with multiple values is represented by one triple per value.
package rdfio

import (
	"errors"
	"strings"

	"github.com/protrend/regnet/internal/stats"
	"github.com/protrend/regnet/pkg/progress"
)

// Namespace is the namespace of all IRIs.
const Namespace = "prt:"

var ErrNotInNamespace = errors.New("rdfio: iri not in namespace")

// IRI returns the iri of a name within the namespace.
func IRI(name string) string {
	return Namespace + name
}

// Name returns the name of an iri within the namespace.
func Name(iri string) (string, error) {
	name, ok := strings.CutPrefix(iri, Namespace)
	if !ok || name == "" {
		return "", ErrNotInNamespace
	}
	return name, nil
}

// rewritable returns a copy of the rewritable of st to report progress on.
func rewritable(st *stats.Stats) progress.Rewritable {
	rw := st.Rewritable()
	if rw == nil {
		return progress.Rewritable{}
	}
	return progress.Rewritable{Writer: rw.Writer, FlushInterval: rw.FlushInterval}
}
