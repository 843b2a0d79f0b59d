package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chainbooks/chainbooks/internal/domain"
	"github.com/chainbooks/chainbooks/internal/usecase"
)

// QueryMetrics records repository query counts and failures.
type QueryMetrics interface {
	DBQuery(operation, table string)
	DBError(operation string)
}

// CheckpointRepository implements usecase.CheckpointRepository. Open
// lots and account balances are stored as JSONB snapshots; the row is
// the unit of resume state, replaced atomically per run.
type CheckpointRepository struct {
	pool    *pgxpool.Pool
	retrier *Retrier
	metrics QueryMetrics
}

// NewCheckpointRepository creates a new CheckpointRepository.
func NewCheckpointRepository(pool *pgxpool.Pool, retrier *Retrier) *CheckpointRepository {
	return &CheckpointRepository{pool: pool, retrier: retrier, metrics: nopQueryMetrics{}}
}

// WithMetrics attaches a query metrics sink and returns the repository.
func (r *CheckpointRepository) WithMetrics(m QueryMetrics) *CheckpointRepository {
	if m != nil {
		r.metrics = m
	}
	return r
}

type nopQueryMetrics struct{}

func (nopQueryMetrics) DBQuery(string, string) {}
func (nopQueryMetrics) DBError(string)         {}

const saveCheckpointSQL = `
INSERT INTO checkpoints (wallet, run_id, last_block, last_log, open_lots, balances, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (wallet) DO UPDATE SET
    run_id     = EXCLUDED.run_id,
    last_block = EXCLUDED.last_block,
    last_log   = EXCLUDED.last_log,
    open_lots  = EXCLUDED.open_lots,
    balances   = EXCLUDED.balances,
    updated_at = EXCLUDED.updated_at`

// Save upserts the checkpoint inside the given transaction.
func (r *CheckpointRepository) Save(ctx context.Context, tx usecase.Transaction, cp *domain.Checkpoint) error {
	pgxTx := tx.(*Tx).PgxTx()

	openLots, err := json.Marshal(cp.OpenLots)
	if err != nil {
		return fmt.Errorf("failed to encode open lots: %w", err)
	}

	balances, err := json.Marshal(cp.Balances)
	if err != nil {
		return fmt.Errorf("failed to encode balances: %w", err)
	}

	r.metrics.DBQuery("save", "checkpoints")

	_, err = pgxTx.Exec(ctx, saveCheckpointSQL,
		cp.Wallet,
		cp.RunID,
		cp.LastOrdinal.Block,
		cp.LastOrdinal.Log,
		openLots,
		balances,
		cp.UpdatedAt,
	)
	if err != nil {
		r.metrics.DBError("save")
	}

	return err
}

const getCheckpointSQL = `
SELECT wallet, run_id, last_block, last_log, open_lots, balances, updated_at
FROM checkpoints
WHERE wallet = $1`

// Get retrieves the checkpoint for a wallet.
func (r *CheckpointRepository) Get(ctx context.Context, wallet string) (*domain.Checkpoint, error) {
	var (
		cp       domain.Checkpoint
		openLots []byte
		balances []byte
	)

	r.metrics.DBQuery("get", "checkpoints")

	err := r.retrier.Retry(ctx, func() error {
		return r.pool.QueryRow(ctx, getCheckpointSQL, wallet).Scan(
			&cp.Wallet,
			&cp.RunID,
			&cp.LastOrdinal.Block,
			&cp.LastOrdinal.Log,
			&openLots,
			&balances,
			&cp.UpdatedAt,
		)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCheckpointNotFound
	}
	if err != nil {
		r.metrics.DBError("get")
		return nil, err
	}

	if err := json.Unmarshal(openLots, &cp.OpenLots); err != nil {
		return nil, fmt.Errorf("failed to decode open lots: %w", err)
	}

	if err := json.Unmarshal(balances, &cp.Balances); err != nil {
		return nil, fmt.Errorf("failed to decode balances: %w", err)
	}

	return &cp, nil
}

// Delete removes a wallet's checkpoint, forcing the next run to replay
// the full history.
func (r *CheckpointRepository) Delete(ctx context.Context, wallet string) error {
	r.metrics.DBQuery("delete", "checkpoints")

	err := r.retrier.Retry(ctx, func() error {
		_, err := r.pool.Exec(ctx, `DELETE FROM checkpoints WHERE wallet = $1`, wallet)
		return err
	})
	if err != nil {
		r.metrics.DBError("delete")
	}

	return err
}
