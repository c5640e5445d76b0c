package relay

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/calderw/mevsearcher/internal/domain"
)

type stubRelay struct {
	simResult domain.SimulationResult
	simErr    error

	submitHash   string
	submitErr    error
	submitCalled bool
}

func (r *stubRelay) Simulate(context.Context, domain.SignedBundle) (domain.SimulationResult, error) {
	return r.simResult, r.simErr
}

func (r *stubRelay) Submit(context.Context, domain.SignedBundle) (string, error) {
	r.submitCalled = true
	return r.submitHash, r.submitErr
}

func TestRunSubmitsOnCleanSimulation(t *testing.T) {
	relay := &stubRelay{submitHash: "0xabc"}
	s := NewSubmitter(relay, slog.Default())

	out, err := s.Run(context.Background(), domain.SignedBundle{TargetBlock: 100, Nonce: 5})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Submitted {
		t.Fatal("expected bundle to be submitted")
	}
	if out.BundleHash != "0xabc" {
		t.Errorf("bundle hash = %q, want 0xabc", out.BundleHash)
	}
	if out.SimError != "" {
		t.Errorf("sim error = %q, want empty", out.SimError)
	}
}

func TestRunLogsRejectionAtWarn(t *testing.T) {
	relay := &stubRelay{simResult: domain.SimulationResult{Err: "tx 0x1: execution reverted"}}
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s := NewSubmitter(relay, logger)

	if _, err := s.Run(context.Background(), domain.SignedBundle{TargetBlock: 100}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(buf.String(), "bundle rejected at simulation") {
		t.Errorf("rejection not logged at warn level, log output: %q", buf.String())
	}
}

func TestRunRejectsOnSimulationFailure(t *testing.T) {
	relay := &stubRelay{simResult: domain.SimulationResult{Err: "tx 0x1: execution reverted"}}
	s := NewSubmitter(relay, slog.Default())

	out, err := s.Run(context.Background(), domain.SignedBundle{TargetBlock: 100})
	if err != nil {
		t.Fatalf("dirty simulation must not be an error, got %v", err)
	}
	if out.Submitted {
		t.Fatal("bundle must not be submitted after sim failure")
	}
	if relay.submitCalled {
		t.Fatal("Submit must not be called after sim failure")
	}
	if out.SimError == "" {
		t.Error("expected sim error to be carried in the outcome")
	}
}

func TestRunPropagatesSimulateTransportError(t *testing.T) {
	relay := &stubRelay{simErr: errors.New("connection refused")}
	s := NewSubmitter(relay, slog.Default())

	if _, err := s.Run(context.Background(), domain.SignedBundle{}); err == nil {
		t.Fatal("expected transport error from Simulate")
	}
	if relay.submitCalled {
		t.Fatal("Submit must not be called when Simulate fails")
	}
}

func TestRunPropagatesSubmitTransportError(t *testing.T) {
	relay := &stubRelay{submitErr: errors.New("connection reset")}
	s := NewSubmitter(relay, slog.Default())

	if _, err := s.Run(context.Background(), domain.SignedBundle{}); err == nil {
		t.Fatal("expected transport error from Submit")
	}
}
