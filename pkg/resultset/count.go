package resultset

import (
	"fmt"

	"github.com/protrend/regnet/pkg/hashkey"
)

// Count parses the result of a count query.
// An empty table counts as zero.
func Count(table Table) (int, error) {
	if len(table.Rows) == 0 {
		return 0, nil
	}
	if len(table.Rows) != 1 || len(table.Rows[0]) != 1 {
		return 0, fmt.Errorf("%w: %d rows", ErrNotCount, len(table.Rows))
	}
	return toInt(table.Rows[0][0])
}

// GroupedCount parses the result of a grouped count query into a map from identifier to count.
// Counts for the same identifier spread over several rows are added up.
func GroupedCount(table Table) (map[string]int, error) {
	counts := make(map[string]int, len(table.Rows))
	for i, row := range table.Rows {
		if len(row) != 2 {
			return nil, fmt.Errorf("%w: row %d has %d values", ErrNotCount, i, len(row))
		}
		id := hashkey.Stringify(row[0])
		if id == "" {
			continue
		}
		count, err := toInt(row[1])
		if err != nil {
			return nil, err
		}
		counts[id] += count
	}
	return counts, nil
}

// Last parses the result of a last identifier query.
func Last(table Table) (id string, ok bool, err error) {
	if len(table.Rows) == 0 {
		return "", false, nil
	}
	if len(table.Rows[0]) != 1 {
		return "", false, fmt.Errorf("%w: %d columns", ErrUnexpectedColumn, len(table.Rows[0]))
	}
	id = hashkey.Stringify(table.Rows[0][0])
	return id, id != "", nil
}

func toInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	}
	return 0, fmt.Errorf("%w: %T %v", ErrNotCount, value, value)
}
