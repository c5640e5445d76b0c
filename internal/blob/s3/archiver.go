package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/calderw/mevsearcher/internal/domain"
)

// OpportunityArchiveStore is the read slice of the opportunity store the
// archiver needs.
type OpportunityArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error)
}

// SubmissionArchiveStore is the read slice of the submission store the
// archiver needs.
type SubmissionArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Submission, error)
}

// Archiver exports aged opportunity and submission history to object storage
// as JSONL. Deletion from the primary store is a separate, explicit step run
// after the archive upload succeeds.
type Archiver struct {
	writer domain.BlobWriter
	opps   OpportunityArchiveStore
	subs   SubmissionArchiveStore
}

// NewArchiver creates an Archiver over the given writer and stores.
func NewArchiver(writer domain.BlobWriter, opps OpportunityArchiveStore, subs SubmissionArchiveStore) *Archiver {
	return &Archiver{
		writer: writer,
		opps:   opps,
		subs:   subs,
	}
}

// ArchiveOpportunities uploads all opportunities detected before the cutoff
// and returns the archived count.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	opps, err := a.opps.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(opps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}

	path := archivePath("opportunities", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}
	return int64(len(opps)), nil
}

// ArchiveSubmissions uploads all submissions made before the cutoff and
// returns the archived count.
func (a *Archiver) ArchiveSubmissions(ctx context.Context, before time.Time) (int64, error) {
	subs, err := a.subs.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive submissions query: %w", err)
	}
	if len(subs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(subs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive submissions marshal: %w", err)
	}

	path := archivePath("submissions", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive submissions upload: %w", err)
	}
	return int64(len(subs)), nil
}

// archivePath builds the object key. The cutoff timestamp keys the object so
// successive cycles within the same month never overwrite each other; the
// rows are pruned from the primary store after upload.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01-02T15-04-05Z"))
}

// marshalJSONL serialises a slice to newline-delimited JSON.
func marshalJSONL[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
