// Package store persists PageRecord data: metadata and passage embeddings
// backed by SQLite, with an in-memory exact vector scan layered on top for
// semantic ranking.
package store

import "context"

// CurrentSchemaVersion is the schema version this package writes and reads.
// A store opened against a different version fails with SchemaMismatch
// rather than attempting a silent migration.
const CurrentSchemaVersion = 1

// Passage is a retrievable chunk of page content carrying its own embedding.
type Passage struct {
	ID        string
	Text      string
	WordCount int
	Position  int
	Quality   float64
	Embedding []float32
}

// PageRecord is the unit of persistence: one indexed page plus its passages.
type PageRecord struct {
	ID            string
	URL           string
	Title         string
	Content       string
	Passages      []Passage
	Timestamp     int64 // first-seen, ms epoch
	LastAccessed  int64 // 0 if never re-accessed via search
	VisitCount    int
	DwellTimeSec  int
}

// PageMetadata is the lightweight projection returned by GetMetadataAll:
// no passages, no embeddings.
type PageMetadata struct {
	ID           string
	URL          string
	Title        string
	Timestamp    int64
	LastAccessed int64
	VisitCount   int
}

// Stats summarizes store contents for reporting and eviction decisions.
type Stats struct {
	TotalPages   int
	SizeBytes    int64
	OldestTS     int64
	NewestTS     int64
	LastAccessTS int64
}

// Store is the persistent keyed store of PageRecord, per spec.md §4.3.
type Store interface {
	// Put replaces any existing record sharing page.ID. Atomic per page:
	// readers never observe a half-written record.
	Put(ctx context.Context, page *PageRecord) error

	// Get returns the full record for id, or (nil, nil) if absent.
	Get(ctx context.Context, id string) (*PageRecord, error)

	// GetByURL returns the full record for url, or (nil, nil) if absent.
	// Backs the dedup-by-url rule in the page lifecycle.
	GetByURL(ctx context.Context, url string) (*PageRecord, error)

	// GetMetadataAll streams lightweight metadata for every page, in
	// insertion order, without loading passages or embeddings.
	GetMetadataAll(ctx context.Context) ([]PageMetadata, error)

	// GetAll streams full records, in insertion order.
	GetAll(ctx context.Context) ([]*PageRecord, error)

	// RecordSearchAccess updates last_accessed for id to now.
	RecordSearchAccess(ctx context.Context, id string, now int64) error

	// Delete removes a page and all its passages atomically.
	Delete(ctx context.Context, id string) error

	// Clear removes every page.
	Clear(ctx context.Context) error

	// Stats reports aggregate store statistics.
	Stats(ctx context.Context) (Stats, error)

	// Close releases underlying resources (DB handle, file lock).
	Close() error
}
