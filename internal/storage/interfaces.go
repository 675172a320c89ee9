package storage

import (
	"context"

	"github.com/Kernlog/pump-sniper/internal/domain"
)

// TokenStore provides access to tokens storage.
type TokenStore interface {
	// Insert adds a discovered token. Returns ErrDuplicateKey if the mint exists.
	Insert(ctx context.Context, t *domain.DiscoveredToken) error

	// GetByMint retrieves a token by mint. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.DiscoveredToken, error)

	// GetByTimeRange retrieves tokens created within [start, end] (inclusive, Unix ms),
	// ordered by creation time ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.DiscoveredToken, error)
}

// BuyAttemptStore provides access to buy_attempts storage.
type BuyAttemptStore interface {
	// Insert adds an attempt. Returns ErrDuplicateKey if attempt_id exists.
	Insert(ctx context.Context, a *domain.BuyAttempt) error

	// GetByID retrieves an attempt. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, attemptID string) (*domain.BuyAttempt, error)

	// GetByMint retrieves all attempts for a mint, ordered by trigger time ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.BuyAttempt, error)

	// GetByStatus retrieves all attempts with the given status, ordered by trigger time ASC.
	GetByStatus(ctx context.Context, status domain.BuyStatus) ([]*domain.BuyAttempt, error)
}

// MarketSnapshotStore provides access to market_snapshots storage.
type MarketSnapshotStore interface {
	// InsertBulk adds points. Fails the entire batch on a duplicate snapshot_id.
	InsertBulk(ctx context.Context, points []*domain.MarketCapPoint) error

	// GetByMint retrieves all points for a mint, ordered by timestamp ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.MarketCapPoint, error)

	// GetByTimeRange retrieves points for a mint within [start, end] (inclusive, Unix ms).
	GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.MarketCapPoint, error)
}
