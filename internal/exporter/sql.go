package exporter

import (
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/protrend/regnet/internal/schema"
	"github.com/protrend/regnet/pkg/hashkey"
	"github.com/protrend/regnet/pkg/record"
)

// SQL implements an exporter for storing entities inside an sql database.
//
// Every entity type is stored in its own table, with one text column per field.
// Every relation is stored in a table with a source and a target column.
type SQL struct {
	DB          *sql.DB
	Separator   string // separator for multi-valued fields
	BatchSize   int    // maximum number of rows per insert
	MaxQueryVar int    // maximum number of query variables (overrides BatchSize)

	dbLock    sync.Mutex
	batchLock sync.Mutex
	batches   map[string][]*record.Record
	links     map[string]bool // link tables created so far
}

const (
	sourceColumn = "source"
	targetColumn = "target"

	entityTablePrefix = "entity__"
	linkTablePrefix   = "link__"
	linkTableInfix    = "__"
)

// Limits of common databases
const (
	SQLiteMaxQueryVar = 32766 // see https://www.sqlite.org/limits.html
	MySQLMaxQueryVar  = 65535
	DefaultBatchSize  = 1000
)

var (
	nullString               sql.NullString
	errInsufficientQueryVars = errors.New("exporter: insufficient query variables")
)

func (*SQL) EntityTable(entity *schema.Entity) string {
	return entityTablePrefix + entity.Name
}

func (*SQL) LinkTable(entity *schema.Entity, relation schema.Relation) string {
	return linkTablePrefix + entity.Name + linkTableInfix + relation.Name
}

// exec executes an sql query
func (sql *SQL) exec(query string, args []any) (err error) {
	sql.dbLock.Lock()
	defer sql.dbLock.Unlock()

	_, err = sql.DB.Exec(query, args...)
	return
}

// execInsert executes an insert into the given table, the given columns, and the given values.
// When this would exceed limits on maximum number of query variables, multiple inserts are executed.
func (sql *SQL) execInsert(table string, columns []string, values [][]any) error {
	if len(values) == 0 {
		return nil
	}

	chunkSize := sql.MaxQueryVar / len(columns)
	if chunkSize == 0 {
		return errInsufficientQueryVars
	}
	if sql.BatchSize > 0 && sql.BatchSize < chunkSize {
		chunkSize = sql.BatchSize
	}

	for i := 0; i < len(values); i += chunkSize {
		insert := sqlbuilder.InsertInto(table)
		insert.Cols(columns...)

		for _, v := range values[i:min(i+chunkSize, len(values))] {
			insert.Values(v...)
		}

		if err := sql.exec(insert.Build()); err != nil {
			return err
		}
	}
	return nil
}

// createTable drops and re-creates a table with the given text columns
func (sql *SQL) createTable(name string, columns []string) error {
	if err := sql.exec("DROP TABLE IF EXISTS "+name+";", nil); err != nil {
		return err
	}

	table := sqlbuilder.CreateTable(name).IfNotExists()
	for i, column := range columns {
		if i == 0 {
			table.Define(column, "TEXT", "NOT NULL")
			continue
		}
		table.Define(column, "TEXT")
	}
	return sql.exec(table.Build())
}

func (sql *SQL) Begin(entity *schema.Entity, count int) error {
	func() {
		sql.batchLock.Lock()
		defer sql.batchLock.Unlock()

		if sql.batches == nil {
			sql.batches = make(map[string][]*record.Record)
		}
	}()

	return sql.createTable(sql.EntityTable(entity), entity.AllFields())
}

func (sql *SQL) Add(entity *schema.Entity, r *record.Record) error {
	batch := func() []*record.Record {
		sql.batchLock.Lock()
		defer sql.batchLock.Unlock()

		sql.batches[entity.Name] = append(sql.batches[entity.Name], r)
		if len(sql.batches[entity.Name]) < sql.batchSize() {
			return nil
		}

		batch := sql.batches[entity.Name]
		sql.batches[entity.Name] = nil
		return batch
	}()

	return sql.insert(entity, batch)
}

func (sql *SQL) End(entity *schema.Entity) error {
	rest := func() []*record.Record {
		sql.batchLock.Lock()
		defer sql.batchLock.Unlock()

		result := sql.batches[entity.Name]
		delete(sql.batches, entity.Name)
		return result
	}()

	return sql.insert(entity, rest)
}

func (sql *SQL) batchSize() int {
	if sql.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return sql.BatchSize
}

// insert inserts records into the table of the given entity
func (sql *SQL) insert(entity *schema.Entity, records []*record.Record) error {
	columns := entity.AllFields()

	values := make([][]any, len(records))
	for i, r := range records {
		values[i] = make([]any, len(columns))
		for j, column := range columns {
			value, _ := r.Get(column)
			values[i][j] = sql.value(value)
		}
	}
	return sql.execInsert(sql.EntityTable(entity), columns, values)
}

// value turns a field value into a value to insert into a text column
func (sql *SQL) value(value any) any {
	switch v := value.(type) {
	case nil:
		return nullString
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case []any:
		parts := make([]string, len(v))
		for i, part := range v {
			parts[i] = hashkey.Stringify(part)
		}
		return strings.Join(parts, sql.Separator)
	case []string:
		return strings.Join(v, sql.Separator)
	default:
		return hashkey.Stringify(v)
	}
}

func (sql *SQL) Link(entity *schema.Entity, relation schema.Relation, id string, targets []string) error {
	table := sql.LinkTable(entity, relation)

	created := func() bool {
		sql.batchLock.Lock()
		defer sql.batchLock.Unlock()

		if sql.links == nil {
			sql.links = make(map[string]bool)
		}
		if sql.links[table] {
			return false
		}
		sql.links[table] = true
		return true
	}()
	if created {
		if err := sql.createTable(table, []string{sourceColumn, targetColumn}); err != nil {
			return err
		}
	}

	values := make([][]any, len(targets))
	for i, target := range targets {
		values[i] = []any{id, target}
	}
	return sql.execInsert(table, []string{sourceColumn, targetColumn}, values)
}

func (sql *SQL) Close() error {
	return sql.DB.Close()
}
