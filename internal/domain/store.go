package domain

import (
	"context"
	"time"
)

// OpportunityStore persists gated opportunities for operational history.
type OpportunityStore interface {
	// Insert stores a newly detected opportunity.
	Insert(ctx context.Context, opp Opportunity) error

	// MarkSubmitted flags an opportunity as having produced a submitted
	// bundle. Returns ErrNotFound for unknown IDs.
	MarkSubmitted(ctx context.Context, id string) error

	// ListRecent returns the most recent opportunities, newest first.
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)

	// ListBefore returns opportunities detected strictly before the cutoff,
	// oldest first. Used by the archiver.
	ListBefore(ctx context.Context, before time.Time) ([]Opportunity, error)

	// DeleteBefore removes opportunities detected strictly before the cutoff
	// and returns the number of rows removed.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SubmissionStore persists bundle submission attempts.
type SubmissionStore interface {
	Insert(ctx context.Context, sub Submission) error
	ListRecent(ctx context.Context, limit int) ([]Submission, error)
	ListBefore(ctx context.Context, before time.Time) ([]Submission, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
