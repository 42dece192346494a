package main

import (
	"context"
	"database/sql"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/go-sql-driver/mysql"
	"github.com/protrend/regnet/internal/catalog"
	"github.com/protrend/regnet/internal/exporter"
	"github.com/protrend/regnet/internal/stats"
)

func doSQL(ctx context.Context, c *catalog.Catalog, proto, addr string) {
	db, err := sql.Open(proto, addr)
	if err != nil {
		st.LogFatal("open sql", err)
	}

	maxQueryVar := exporter.SQLiteMaxQueryVar
	if proto == "mysql" {
		maxQueryVar = exporter.MySQLMaxQueryVar
	}

	e := &exporter.SQL{
		DB:          db,
		Separator:   sqlSeparator,
		BatchSize:   exporter.DefaultBatchSize,
		MaxQueryVar: maxQueryVar,
	}
	defer e.Close()

	err = st.DoStage(stats.StageExportSQL, func() error {
		return exporter.Export(ctx, c, e, st)
	})
	if err != nil {
		st.LogFatal("export sql", err)
	}
}
