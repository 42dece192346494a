// Command regnet loads, queries, exports and edits a ProTReND regulatory network.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/protrend/regnet"
	"github.com/protrend/regnet/internal/catalog"
	"github.com/protrend/regnet/internal/config"
	"github.com/protrend/regnet/internal/metrics"
	"github.com/protrend/regnet/internal/rdfio"
	"github.com/protrend/regnet/internal/schema"
	"github.com/protrend/regnet/internal/stats"
)

// cspell:words nquads regnet

var (
	errBothSqliteAndMysql = errors.New("both -sqlite and -mysql were given")
	errDumpNeedsGraph     = errors.New("-dump is not supported for a bolt store")
	errSnapshotNeedsGraph = errors.New("-snapshot and -restore are not supported for a bolt store")
)

var level = new(slog.LevelVar)
var st = stats.NewStats(os.Stderr, level)

func main() {
	if debugProfile != "" {
		defer profile.Start(profile.ProfilePath(debugProfile)).Stop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		st.LogFatal("load config", err)
	}
	level.Set(cfg.LogLevel)

	if mysql != "" && sqlite != "" {
		st.LogFatal("parse arguments", errBothSqliteAndMysql)
	}

	s, err := schema.ProTReND(cfg.Header)
	if err != nil {
		st.LogFatal("load schema", err)
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		st.LogFatal("register metrics", err)
	}
	if debugServer != "" {
		go listenDebug(registry)
	}

	var opened *openedStore
	err = st.DoStage(stats.StageOpen, func() (err error) {
		opened, err = openStore(ctx, cfg, s)
		return err
	})
	if err != nil {
		st.LogFatal("open store", err)
	}
	defer opened.Close(ctx)

	c := catalog.New(s, opened.Store, st, m)

	if (restorePath != "" || snapshotPath != "") && opened.Graph == nil {
		st.LogFatal("open store", errSnapshotNeedsGraph)
	}

	if restorePath != "" {
		if err := restoreFile(ctx, opened, restorePath); err != nil {
			st.LogFatal("restore", err)
		}
	}

	if importPath != "" {
		nq, err := regnet.FindSource(importPath)
		if err != nil {
			st.LogFatal("find source", err)
		}
		if err := importFile(ctx, c, nq); err != nil {
			st.LogFatal("import", err)
		}
	}

	switch {
	case mysql != "":
		doSQL(ctx, c, "mysql", mysql)
	case sqlite != "":
		doSQL(ctx, c, "sqlite", sqlite)
	}

	if dumpPath != "" {
		if opened.Graph == nil {
			st.LogFatal("dump", errDumpNeedsGraph)
		}
		if err := dumpFile(ctx, opened, dumpPath); err != nil {
			st.LogFatal("dump", err)
		}
	}

	if snapshotPath != "" {
		if err := snapshotFile(ctx, opened, snapshotPath); err != nil {
			st.LogFatal("snapshot", err)
		}
	}

	if len(nArgs) == 0 {
		return
	}

	switch {
	case createFields != "":
		doCreate(ctx, c, nArgs[0])
	case deleteMode:
		doDelete(ctx, c, nArgs[0], nArgs[1:])
	default:
		doQuery(ctx, c, nArgs[0], nArgs[1:])
	}
}

func importFile(ctx context.Context, c *catalog.Catalog, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	st.Log("importing", "path", path)
	return rdfio.Import(ctx, c, f, st)
}

func dumpFile(ctx context.Context, opened *openedStore, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := rdfio.Dump(ctx, opened.Graph, f, st); err != nil {
		return err
	}
	return f.Close()
}

func snapshotFile(ctx context.Context, opened *openedStore, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	err = st.DoStage(stats.StageSnapshot, func() error {
		w := bufio.NewWriter(f)
		if err := opened.Graph.Snapshot(ctx, w); err != nil {
			return err
		}
		return w.Flush()
	})
	if err != nil {
		return err
	}
	return f.Close()
}

func restoreFile(ctx context.Context, opened *openedStore, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	st.Log("restoring", "path", path)
	return st.DoStage(stats.StageRestore, func() error {
		return opened.Graph.Restore(ctx, bufio.NewReader(f))
	})
}

// loadConfig loads the configuration file and applies flag overrides
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	if storeKind != "" {
		cfg.Store = storeKind
	}
	if leveldbPath != "" {
		cfg.LevelDB.Path = leveldbPath
	}
	if wipe {
		cfg.LevelDB.Wipe = true
	}
	if boltURI != "" {
		cfg.Bolt.URI = boltURI
	}
	if boltUser != "" {
		cfg.Bolt.User = boltUser
	}
	if logLevel != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

func writeJSON(value any) {
	encoder := json.NewEncoder(os.Stdout)
	if err := encoder.Encode(value); err != nil {
		st.LogFatal("write output", err)
	}
}

// ===================

var nArgs []string

var configPath string
var storeKind string
var leveldbPath string
var wipe bool
var boltURI string
var boltUser string
var logLevel string

var importPath string
var dumpPath string
var snapshotPath string
var restorePath string
var sqlite string
var mysql string
var sqlSeparator string = ","

var link string
var linkFields listFlag
var relFields listFlag
var filters []string
var countMode bool
var groupedMode bool

var createFields string
var deleteMode bool

var debugProfile string
var debugServer string

// listFlag is a comma separated list of values
type listFlag []string

func (lf *listFlag) String() string {
	return strings.Join(*lf, ",")
}

func (lf *listFlag) Set(value string) error {
	*lf = nil
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*lf = append(*lf, v)
		}
	}
	return nil
}

func init() {
	flag.StringVar(&configPath, "config", configPath, "read configuration from the given yaml file")
	flag.StringVar(&storeKind, "store", storeKind, "kind of store to use: memory, leveldb or bolt (overrides config)")
	flag.StringVar(&leveldbPath, "leveldb", leveldbPath, "directory of the leveldb store (overrides config)")
	flag.BoolVar(&wipe, "wipe", wipe, "wipe the leveldb store before opening it")
	flag.StringVar(&boltURI, "bolt", boltURI, "uri of the bolt server (overrides config)")
	flag.StringVar(&boltUser, "bolt-user", boltUser, "user of the bolt server (overrides config), the password is read from $"+config.PasswordEnv)
	flag.StringVar(&logLevel, "log-level", logLevel, "minimal level of log messages (overrides config)")

	flag.StringVar(&importPath, "import", importPath, "import entities from the given N-Quads file, or directory containing one")
	flag.StringVar(&dumpPath, "dump", dumpPath, "dump all entities as N-Triples to the given path")
	flag.StringVar(&snapshotPath, "snapshot", snapshotPath, "write a binary snapshot of the store to the given path")
	flag.StringVar(&restorePath, "restore", restorePath, "restore a binary snapshot into the store before importing")
	flag.StringVar(&sqlite, "sqlite", sqlite, "export an sqlite database to the given path")
	flag.StringVar(&mysql, "mysql", mysql, "export a mysql database. Use a connection string of the form `username:password@host/database`")
	flag.StringVar(&sqlSeparator, "sql-separator", sqlSeparator, "separator for multi-valued fields in sql exports")

	flag.StringVar(&link, "link", link, "query entities linked along the given relation")
	flag.Var(&linkFields, "link-fields", "comma separated fields of linked entities to return")
	flag.Var(&relFields, "rel-fields", "comma separated fields of relationships to return")
	flag.Func("filter", "filter entities by `field__op=value`, may be repeated", func(s string) error {
		filters = append(filters, s)
		return nil
	})
	flag.BoolVar(&countMode, "count", countMode, "print the number of matching entities")
	flag.BoolVar(&groupedMode, "grouped", groupedMode, "print the number of linked entities per entity")

	flag.StringVar(&createFields, "create", createFields, "create an entity with the given json fields")
	flag.BoolVar(&deleteMode, "delete", deleteMode, "delete the entities with the given identifiers, and all entities depending on them")

	flag.StringVar(&debugProfile, "debug-profile", debugProfile, "write out a debugging profile to the given path")
	flag.StringVar(&debugServer, "debug-listen", debugServer, "start a profiling and metrics server on the given address")

	flag.Parse()
	nArgs = flag.Args()
}
