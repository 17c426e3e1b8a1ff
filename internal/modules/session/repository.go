package session

import "context"

// Repository defines the interface for session storage.
type Repository interface {
	// GetByShop returns (nil, nil) when the shop has no stored session.
	GetByShop(ctx context.Context, shop string) (*Session, error)
	Upsert(ctx context.Context, s *Session) error
	DeleteByShop(ctx context.Context, shop string) error
}
