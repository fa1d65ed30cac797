package models

import (
	"context"
)

// ResultStore defines operations for result persistence
type ResultStore interface {
	SaveResult(result Result) error
	GetResult(testID string) (Result, error)
	GetRecent(limit int) ([]Result, error)
	GetStats(days int) (Stats, error)
	PruneOlderThan(days int) (int64, error)
	Close() error
}

// Prober measures the round-trip time to a server in milliseconds
type Prober interface {
	Probe(ctx context.Context, server Server) (float64, error)
}
