package main

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/protrend/regnet/internal/catalog"
	"github.com/protrend/regnet/internal/stats"
	"github.com/protrend/regnet/pkg/cypher"
	"github.com/protrend/regnet/pkg/record"
)

// doQuery prints entities of the given type as json lines, or their count
func doQuery(ctx context.Context, c *catalog.Catalog, entity string, fields []string) {
	parsed, err := parseFilters(filters)
	if err != nil {
		st.LogFatal("parse filters", err)
	}

	qs, err := c.Query(record.Descriptor{
		Source:             entity,
		Fields:             fields,
		Linked:             link,
		LinkedFields:       linkFields,
		RelationshipFields: relFields,
	})
	if err != nil {
		st.LogFatal("query", err)
	}
	qs = qs.Filter(parsed...)

	err = st.DoStage(stats.StageQuery, func() error {
		switch {
		case countMode:
			count, err := qs.Count(ctx)
			if err != nil {
				return err
			}
			writeJSON(count)
		case groupedMode:
			counts, err := qs.GroupedCount(ctx)
			if err != nil {
				return err
			}
			writeJSON(counts)
		default:
			it := qs.Iterate(ctx)
			defer it.Close()

			for it.Next() {
				writeJSON(it.Datum())
			}
			return it.Err()
		}
		return nil
	})
	if err != nil {
		st.LogFatal("query", err)
	}
}

// parseFilters parses filters of the form "field__op=value".
// Values that are valid json are decoded, others are used as strings.
func parseFilters(specs []string) ([]cypher.Filter, error) {
	lookups := make(map[string]any, len(specs))
	for _, spec := range specs {
		key, raw, _ := strings.Cut(spec, "=")

		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		lookups[key] = value
	}
	return cypher.ParseLookups(lookups)
}

// doCreate creates a single entity from the -create flag and prints it
func doCreate(ctx context.Context, c *catalog.Catalog, entity string) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(createFields), &fields); err != nil {
		st.LogFatal("parse fields", err)
	}

	created, err := c.Create(ctx, entity, fields)
	if err != nil {
		st.LogFatal("create", err)
	}
	writeJSON(created)
}

// doDelete deletes entities and prints the deleted identifiers
func doDelete(ctx context.Context, c *catalog.Catalog, entity string, ids []string) {
	deleted, err := c.Delete(ctx, entity, ids...)
	for _, d := range deleted {
		writeJSON(d.String())
	}
	if err != nil {
		st.LogFatal("delete", err)
	}
}
