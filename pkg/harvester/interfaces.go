package harvester

import (
	"context"

	"seedharvest/pkg/catalog"
)

// Catalog lists one page of the remote catalog
type Catalog interface {
	FetchPage(ctx context.Context, page int) ([]catalog.Item, error)
}

// Downloader makes sure an item's artifact is stored and returns its key
type Downloader interface {
	Download(ctx context.Context, id string) (string, error)
}

// ArtifactStore reads stored artifacts
type ArtifactStore interface {
	Key(id string) string
	Exists(ctx context.Context, key string) (bool, error)
	Read(ctx context.Context, key string) ([]byte, error)
}

// Inventory answers whether the consumer already holds a hash
type Inventory interface {
	Contains(ctx context.Context, hash string) (bool, error)
	RecordAdded(hash string)
}
