package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calderw/mevsearcher/internal/domain"
)

// SubmissionStore implements domain.SubmissionStore using PostgreSQL.
type SubmissionStore struct {
	pool *pgxpool.Pool
}

var _ domain.SubmissionStore = (*SubmissionStore)(nil)

// NewSubmissionStore creates a store backed by the given connection pool.
func NewSubmissionStore(pool *pgxpool.Pool) *SubmissionStore {
	return &SubmissionStore{pool: pool}
}

const subSelectCols = `id, opportunity_id, bundle_hash, target_block, nonce,
	status, sim_error, submitted_at`

// Insert stores a bundle submission attempt.
func (s *SubmissionStore) Insert(ctx context.Context, sub domain.Submission) error {
	const query = `
		INSERT INTO submissions (
			id, opportunity_id, bundle_hash, target_block, nonce,
			status, sim_error, submitted_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8
		)`

	_, err := s.pool.Exec(ctx, query,
		sub.ID, sub.OpportunityID, sub.BundleHash, int64(sub.TargetBlock), int64(sub.Nonce),
		string(sub.Status), sub.SimError, sub.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert submission %s: %w", sub.ID, err)
	}
	return nil
}

// ListRecent returns the most recent submissions, newest first.
func (s *SubmissionStore) ListRecent(ctx context.Context, limit int) ([]domain.Submission, error) {
	query := `SELECT ` + subSelectCols + ` FROM submissions ORDER BY submitted_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent submissions: %w", err)
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

// ListBefore returns submissions made strictly before the cutoff, oldest
// first.
func (s *SubmissionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Submission, error) {
	query := `SELECT ` + subSelectCols + ` FROM submissions WHERE submitted_at < $1 ORDER BY submitted_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list submissions before %s: %w", before, err)
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

// DeleteBefore removes submissions made strictly before the cutoff.
func (s *SubmissionStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM submissions WHERE submitted_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete submissions before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func scanSubmissions(rows pgx.Rows) ([]domain.Submission, error) {
	var subs []domain.Submission
	for rows.Next() {
		var sub domain.Submission
		var targetBlock, nonce int64
		var status string

		if err := rows.Scan(
			&sub.ID, &sub.OpportunityID, &sub.BundleHash, &targetBlock, &nonce,
			&status, &sub.SimError, &sub.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan submission: %w", err)
		}

		sub.TargetBlock = uint64(targetBlock)
		sub.Nonce = uint64(nonce)
		sub.Status = domain.SubmissionStatus(status)
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: submission rows: %w", err)
	}
	return subs, nil
}
