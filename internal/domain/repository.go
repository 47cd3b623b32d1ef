package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching serialized values
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SnapshotRepository persists the catalog snapshot. It is the seam to the
// backend that owns products, suppliers and price rows.
type SnapshotRepository interface {
	// Load returns ErrSnapshotNotFound when nothing has been saved yet
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
}

// Exporter serializes a snapshot into a portable document and back. Import
// of an exported document reconstructs an equivalent snapshot.
type Exporter interface {
	Export(snapshot *Snapshot, exportedAt time.Time) ([]byte, error)
	Import(data []byte) (*Snapshot, time.Time, error)
}

// ObservationSource supplies prices for (product, supplier) pairs. Both
// methods return nil for an unknown price rather than an error.
type ObservationSource interface {
	GetPrice(ctx context.Context, product Product, supplier Supplier) (*float64, error)
	RefreshAll(ctx context.Context, snapshot *Snapshot) (*RefreshResult, error)
}
