package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calderw/mevsearcher/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)

// NewOpportunityStore creates a store backed by the given connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppSelectCols = `id, tx_hash, profitable, estimated_profit, confidence,
	buy_venue, sell_venue, gap_bps, detected_at`

// Insert stores a newly detected opportunity.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	const query = `
		INSERT INTO opportunities (
			id, tx_hash, profitable, estimated_profit, confidence,
			buy_venue, sell_venue, gap_bps, detected_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)`

	profit := "0"
	if opp.EstimatedProfit != nil {
		profit = opp.EstimatedProfit.String()
	}

	_, err := s.pool.Exec(ctx, query,
		opp.ID, opp.TxHash.Hex(), opp.Profitable, profit, opp.Confidence,
		opp.BuyVenue, opp.SellVenue, opp.GapBps, opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// MarkSubmitted flags an opportunity as having produced a submitted bundle.
func (s *OpportunityStore) MarkSubmitted(ctx context.Context, id string) error {
	const query = `UPDATE opportunities SET submitted = TRUE WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: mark opportunity submitted %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListRecent returns the most recent opportunities, newest first.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities ORDER BY detected_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

// ListBefore returns opportunities detected strictly before the cutoff,
// oldest first.
func (s *OpportunityStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities WHERE detected_at < $1 ORDER BY detected_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities before %s: %w", before, err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

// DeleteBefore removes opportunities detected strictly before the cutoff.
func (s *OpportunityStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM opportunities WHERE detected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func scanOpportunities(rows pgx.Rows) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	for rows.Next() {
		var opp domain.Opportunity
		var txHash, profit string

		if err := rows.Scan(
			&opp.ID, &txHash, &opp.Profitable, &profit, &opp.Confidence,
			&opp.BuyVenue, &opp.SellVenue, &opp.GapBps, &opp.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}

		opp.TxHash = common.HexToHash(txHash)
		amount, ok := new(big.Int).SetString(profit, 10)
		if !ok {
			return nil, fmt.Errorf("postgres: bad estimated_profit %q for %s", profit, opp.ID)
		}
		opp.EstimatedProfit = amount
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: opportunity rows: %w", err)
	}
	return opps, nil
}
