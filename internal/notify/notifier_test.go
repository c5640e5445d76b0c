package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type recordingSender struct {
	name     string
	err      error
	titles   []string
	messages []string
}

func (s *recordingSender) Send(_ context.Context, title, message string) error {
	s.titles = append(s.titles, title)
	s.messages = append(s.messages, message)
	return s.err
}

func (s *recordingSender) Name() string { return s.name }

func TestNotifyDispatchesToAllSenders(t *testing.T) {
	a := &recordingSender{name: "telegram"}
	b := &recordingSender{name: "discord"}
	n := NewNotifier([]Sender{a, b}, nil, slog.Default())

	n.Notify(context.Background(), "bundle_submitted", map[string]string{
		"bundle_hash":  "0xfeed",
		"target_block": "123",
	})

	for _, s := range []*recordingSender{a, b} {
		if len(s.titles) != 1 || s.titles[0] != "bundle_submitted" {
			t.Errorf("%s titles = %v", s.name, s.titles)
		}
		if !strings.Contains(s.messages[0], "bundle_hash: 0xfeed") {
			t.Errorf("%s message = %q, want fields rendered", s.name, s.messages[0])
		}
	}
}

func TestNotifyFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "telegram"}
	n := NewNotifier([]Sender{s}, []string{"bundle_rejected"}, slog.Default())

	n.Notify(context.Background(), "bundle_submitted", nil)
	if len(s.titles) != 0 {
		t.Fatalf("filtered event was delivered: %v", s.titles)
	}

	n.Notify(context.Background(), "bundle_rejected", nil)
	if len(s.titles) != 1 {
		t.Fatalf("allowed event was not delivered")
	}
}

func TestNotifySenderFailureDoesNotBlockOthers(t *testing.T) {
	failing := &recordingSender{name: "telegram", err: errors.New("api down")}
	healthy := &recordingSender{name: "discord"}
	n := NewNotifier([]Sender{failing, healthy}, nil, slog.Default())

	n.Notify(context.Background(), "nonce_resynced", map[string]string{"to": "12"})

	if len(healthy.titles) != 1 {
		t.Fatal("healthy sender must still receive the event")
	}
}

func TestFormatFieldsSortedAndTrimmed(t *testing.T) {
	got := formatFields(map[string]string{"b": "2", "a": "1"})
	want := "a: 1\nb: 2"
	if got != want {
		t.Errorf("formatFields = %q, want %q", got, want)
	}
}
