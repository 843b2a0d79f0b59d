package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainbooks/chainbooks/internal/domain"
)

// PriceOracle looks up the USD unit price of an asset at a timestamp.
// A (zero, false, nil) return means the asset is unpriced at that
// time; errors are reserved for lookup failures after bounded retries.
// Implementations must be idempotent and safe for concurrent use.
type PriceOracle interface {
	GetUnitPrice(ctx context.Context, asset string, at time.Time) (decimal.Decimal, bool, error)
}

// ActivityFeed supplies the raw activity records for a wallet.
type ActivityFeed interface {
	Fetch(ctx context.Context, wallet string) ([]domain.RawRecord, error)
}

// CheckpointRepository persists per-wallet resume state.
type CheckpointRepository interface {
	Save(ctx context.Context, tx Transaction, cp *domain.Checkpoint) error
	Get(ctx context.Context, wallet string) (*domain.Checkpoint, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs for runs and checkpoints. Ledger
// entry IDs are derived from event IDs instead, so replays stay
// byte-identical.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RunMetrics receives pipeline counters. Implementations must be safe
// for concurrent use.
type RunMetrics interface {
	EventsNormalized(n int)
	EventUnclassifiable()
	EventUnpriced()
	AssetAborted(asset string)
	EntriesPosted(n int)
	DisposalsMatched(n int)
	LotsOpened(n int)
}
