package pricing

import "context"

// Repository defines the interface for price record storage.
type Repository interface {
	// GetByVariant returns (nil, nil) when no record exists for the pair.
	GetByVariant(ctx context.Context, shopID string, variantID int64) (*PriceRecord, error)
	ListByShop(ctx context.Context, shopID string) ([]*PriceRecord, error)
	Begin(ctx context.Context) (Batch, error)
}

// Batch groups all record writes of one ledger operation into a single
// all-or-nothing commit. Catalog writes issued alongside are not part of the
// batch and cannot be rolled back. Reads go through the batch too, so that a
// variant touched twice in one operation sees its own staged write.
type Batch interface {
	// Get returns (nil, nil) when no record exists for the pair.
	Get(ctx context.Context, shopID string, variantID int64) (*PriceRecord, error)
	Upsert(ctx context.Context, rec *PriceRecord) error
	Commit() error
	Rollback() error
}
