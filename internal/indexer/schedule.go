package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/gorhill/cronexpr"
)

// RunSchedule reindexes on a cron schedule until the context is cancelled.
// The job runs at each cron boundary, never concurrently with itself.
func (ix *Indexer) RunSchedule(ctx context.Context, cronSpec string, job func(context.Context) error) error {
	expr, err := cronexpr.Parse(cronSpec)
	if err != nil {
		return fmt.Errorf("parse reindex schedule %q: %w", cronSpec, err)
	}
	for {
		next := expr.Next(time.Now())
		if next.IsZero() {
			return fmt.Errorf("reindex schedule %q has no future run", cronSpec)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}
		if err := job(ctx); err != nil {
			ix.logger.Printf("scheduled reindex failed: %v", err)
		}
	}
}
