package queryset

import (
	"context"

	"github.com/protrend/regnet/pkg/record"
	"golang.org/x/sync/errgroup"
)

// Fetch fetches the records of all query sets concurrently.
// Query sets that already hold cached records are not fetched again.
func Fetch(ctx context.Context, sets ...*QuerySet) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, qs := range sets {
		qs := qs
		group.Go(func() error {
			_, err := qs.All(ctx)
			return err
		})
	}
	return group.Wait()
}

// Combine merges the records of several query sets by source identifier.
//
// Records for the same identifier are folded into one using [record.Record.Add].
// The result is ordered by first appearance.
// Combining a query set with itself returns its records unchanged.
func Combine(ctx context.Context, sets ...*QuerySet) ([]*record.Record, error) {
	if err := Fetch(ctx, sets...); err != nil {
		return nil, err
	}

	var list record.List
	for _, qs := range sets {
		records, err := qs.All(ctx)
		if err != nil {
			return nil, err
		}
		if err := list.Append(records...); err != nil {
			return nil, err
		}
	}
	return list.Records(), nil
}
