package corpus

import "context"

// DocumentStore provides access to persisted corpus collections.
type DocumentStore interface {
	// GetCollection returns a handle to the named collection.
	// Fails with CollectionNotFound when the collection does not exist.
	GetCollection(ctx context.Context, name string) (Collection, error)

	// ListCollections returns the names of all collections.
	ListCollections(ctx context.Context) ([]string, error)

	// Close releases store resources.
	Close() error
}

// Collection is a named set of ingested chunks.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// Count returns the number of chunks in the collection.
	Count(ctx context.Context) (int, error)

	// GetAll returns every chunk in ingest order in a single pass.
	GetAll(ctx context.Context) ([]Chunk, error)
}
