package s3blob

import (
	"bytes"
	"context"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/calderw/mevsearcher/internal/domain"
)

type recordingWriter struct {
	objects map[string][]byte
}

func (w *recordingWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if w.objects == nil {
		w.objects = make(map[string][]byte)
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.objects[path] = buf
	return nil
}

type fixedOpportunityStore struct {
	rows []domain.Opportunity
}

func (s *fixedOpportunityStore) ListBefore(context.Context, time.Time) ([]domain.Opportunity, error) {
	return s.rows, nil
}

type fixedSubmissionStore struct {
	rows []domain.Submission
}

func (s *fixedSubmissionStore) ListBefore(context.Context, time.Time) ([]domain.Submission, error) {
	return s.rows, nil
}

func sampleOpportunity(id string) domain.Opportunity {
	return domain.Opportunity{
		ID:              id,
		TxHash:          common.HexToHash("0x1234"),
		Profitable:      true,
		EstimatedProfit: big.NewInt(1000),
		Confidence:      0.9,
		BuyVenue:        "uniswap_v2",
		SellVenue:       "sushiswap",
		GapBps:          120,
		DetectedAt:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestArchiveOpportunitiesWritesJSONL(t *testing.T) {
	writer := &recordingWriter{}
	opps := &fixedOpportunityStore{rows: []domain.Opportunity{
		sampleOpportunity("opp-1"),
		sampleOpportunity("opp-2"),
	}}
	a := NewArchiver(writer, opps, &fixedSubmissionStore{})

	cutoff := time.Date(2026, 8, 15, 6, 0, 0, 0, time.UTC)
	n, err := a.ArchiveOpportunities(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ArchiveOpportunities: %v", err)
	}
	if n != 2 {
		t.Fatalf("archived %d rows, want 2", n)
	}

	wantKey := "archive/opportunities/2026-08-15T06-00-00Z.jsonl"
	body, ok := writer.objects[wantKey]
	if !ok {
		t.Fatalf("object %s not written, have %v", wantKey, keysOf(writer.objects))
	}
	lines := bytes.Split(bytes.TrimSpace(body), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("got %d JSONL lines, want 2", len(lines))
	}
}

func TestSuccessiveCyclesUseDistinctKeys(t *testing.T) {
	writer := &recordingWriter{}
	opps := &fixedOpportunityStore{rows: []domain.Opportunity{sampleOpportunity("opp-1")}}
	a := NewArchiver(writer, opps, &fixedSubmissionStore{})

	first := time.Date(2026, 8, 15, 6, 0, 0, 0, time.UTC)
	if _, err := a.ArchiveOpportunities(context.Background(), first); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	// Next daily cycle falls in the same month; it must not overwrite the
	// prior object.
	if _, err := a.ArchiveOpportunities(context.Background(), first.Add(24*time.Hour)); err != nil {
		t.Fatalf("second cycle: %v", err)
	}

	if len(writer.objects) != 2 {
		t.Fatalf("got %d objects, want 2 distinct keys: %v", len(writer.objects), keysOf(writer.objects))
	}
}

func TestArchiveSkipsUploadWhenEmpty(t *testing.T) {
	writer := &recordingWriter{}
	a := NewArchiver(writer, &fixedOpportunityStore{}, &fixedSubmissionStore{})

	n, err := a.ArchiveSubmissions(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("ArchiveSubmissions: %v", err)
	}
	if n != 0 || len(writer.objects) != 0 {
		t.Fatalf("empty store produced an upload: n=%d objects=%v", n, keysOf(writer.objects))
	}
}

func keysOf(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
