// Package notify delivers operational events to external channels. Events
// are dispatched to every registered sender and can be filtered by event
// name so operators receive only the alerts they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Sender is one notification channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name identifies the sender, e.g. "telegram".
	Name() string
}

// Notifier dispatches events to one or more Senders. When an allow-list of
// events is configured, only listed events are forwarded; an empty list
// forwards everything. Sender failures are logged, never propagated: a dead
// webhook must not stall the pipeline.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders, filtered
// by the events allow-list.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify formats the event fields into a message and dispatches it to every
// sender passing the filter.
func (n *Notifier) Notify(ctx context.Context, event string, fields map[string]string) {
	if len(n.senders) == 0 {
		return
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return
	}

	message := formatFields(fields)
	for _, s := range n.senders {
		if err := s.Send(ctx, event, message); err != nil {
			n.logger.WarnContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
}

// formatFields renders the fields as sorted "key: value" lines.
func formatFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, fields[k])
	}
	return strings.TrimRight(b.String(), "\n")
}
