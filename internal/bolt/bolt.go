// Package bolt implements a store backed by a Neo4j server, accessed via the Bolt protocol.
package bolt

import (
	"context"
	"errors"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/protrend/regnet/internal/schema"
	"github.com/protrend/regnet/internal/stats"
	"github.com/protrend/regnet/pkg/cypher"
	"github.com/protrend/regnet/pkg/perf"
	"github.com/protrend/regnet/pkg/resultset"
)

var (
	ErrNodeNotFound = errors.New("bolt: node not found")
	ErrWrongEntity  = errors.New("bolt: relation leads to a different entity")
)

// Config holds connection parameters of a server.
type Config struct {
	URI      string
	User     string
	Password string
	Database string // empty for the default database
}

// Executor executes a single statement with parameters, and returns the resulting columns and rows.
type Executor interface {
	Execute(ctx context.Context, text string, params map[string]any, write bool) (resultset.Table, error)
}

// Driver is an Executor using a neo4j driver.
type Driver struct {
	Driver   neo4j.DriverWithContext
	Database string
}

// Dial connects to the server described by config, and verifies connectivity.
func Dial(ctx context.Context, config Config) (*Driver, error) {
	driver, err := neo4j.NewDriverWithContext(config.URI, neo4j.BasicAuth(config.User, config.Password, ""))
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}
	return &Driver{Driver: driver, Database: config.Database}, nil
}

func (d *Driver) Execute(ctx context.Context, text string, params map[string]any, write bool) (table resultset.Table, err error) {
	options := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithReadersRouting()}
	if write {
		options[0] = neo4j.ExecuteQueryWithWritersRouting()
	}
	if d.Database != "" {
		options = append(options, neo4j.ExecuteQueryWithDatabase(d.Database))
	}

	result, err := neo4j.ExecuteQuery(ctx, d.Driver, text, params, neo4j.EagerResultTransformer, options...)
	if err != nil {
		return table, err
	}

	table.Columns = result.Keys
	table.Rows = make([][]any, len(result.Records))
	for i, record := range result.Records {
		table.Rows[i] = record.Values
	}
	return table, nil
}

// Close closes the underlying driver.
func (d *Driver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

// Store stores entities on a server.
// It implements the same operations as the embedded graph store.
type Store struct {
	Schema   *schema.Schema
	Executor Executor
	Stats    *stats.Stats

	Now func() time.Time // defaults to time.Now
}

// Run executes a compiled query, and returns the rows it produced.
// Errors of the server are returned unchanged.
func (store *Store) Run(ctx context.Context, q cypher.Query) (resultset.Table, error) {
	start := time.Now()
	table, err := store.Executor.Execute(ctx, q.Text, nil, false)
	if err != nil {
		return table, err
	}

	took := time.Since(start)
	store.Stats.LogDebug("query", "kind", q.Kind, "rows", table.Len(), "took", took, "rate", perf.Rate(table.Len(), "rows", took))
	return table, nil
}

func (store *Store) now() time.Time {
	if store.Now != nil {
		return store.Now().UTC()
	}
	return time.Now().UTC()
}
