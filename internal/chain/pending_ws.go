package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"

	"github.com/calderw/mevsearcher/internal/domain"
)

const (
	// subscribeTimeout bounds the dial + subscribe handshake.
	subscribeTimeout = 15 * time.Second

	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// subRequest is the eth_subscribe JSON-RPC envelope.
type subRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// subNotification is an eth_subscription push message. Result is the pending
// transaction hash.
type subNotification struct {
	Method string `json:"method"`
	Params struct {
		Result string `json:"result"`
	} `json:"params"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// PendingStream subscribes to the node's newPendingTransactions feed over a
// raw WebSocket JSON-RPC connection and emits hashes on a bounded channel.
// When the intake channel is full the oldest queued hash is dropped; stale
// mempool entries lose relevance faster than they can be scored.
//
// The stream owns its reconnect policy: on any transport error it backs off
// exponentially and resubscribes. Subscription errors never terminate Run;
// only context cancellation does.
type PendingStream struct {
	wsURL  string
	out    chan common.Hash
	logger *slog.Logger

	dropped   uint64
	droppedMu sync.Mutex
}

// NewPendingStream creates a stream that buffers up to queueSize hashes.
func NewPendingStream(wsURL string, queueSize int, logger *slog.Logger) *PendingStream {
	return &PendingStream{
		wsURL:  wsURL,
		out:    make(chan common.Hash, queueSize),
		logger: logger.With(slog.String("component", "pending_stream")),
	}
}

// Hashes returns the channel of observed pending-transaction hashes.
func (s *PendingStream) Hashes() <-chan common.Hash {
	return s.out
}

// Dropped returns the number of hashes discarded due to backpressure.
func (s *PendingStream) Dropped() uint64 {
	s.droppedMu.Lock()
	defer s.droppedMu.Unlock()
	return s.dropped
}

// Run connects, subscribes, and pumps hashes until ctx is cancelled. It
// reconnects with exponential backoff on any error.
func (s *PendingStream) Run(ctx context.Context) error {
	backoff := reconnectMin
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := s.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn("pending subscription lost, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("backoff", backoff),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// runConnection performs one dial/subscribe/read cycle and returns the error
// that ended it.
func (s *PendingStream) runConnection(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, subscribeTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Close the connection when ctx ends so the blocking read below unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	req := subRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_subscribe",
		Params:  []any{"newPendingTransactions"},
	}
	if err := conn.WriteJSON(req); err != nil {
		return err
	}

	// First frame is the subscription confirmation (or an error).
	var ack subNotification
	if err := conn.ReadJSON(&ack); err != nil {
		return err
	}
	if ack.Error != nil {
		return fmt.Errorf("eth_subscribe rejected: %d %s", ack.Error.Code, ack.Error.Message)
	}

	s.logger.Info("pending subscription established", slog.String("ws_url", s.wsURL))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrWSDisconnect, err)
		}

		var note subNotification
		if err := json.Unmarshal(data, &note); err != nil {
			// Malformed frame from the node; keep the subscription alive.
			s.logger.Warn("undecodable subscription frame", slog.String("error", err.Error()))
			continue
		}
		if note.Method != "eth_subscription" || note.Params.Result == "" {
			continue
		}

		s.push(common.HexToHash(note.Params.Result))
	}
}

// push enqueues a hash, evicting the oldest queued entry when full.
func (s *PendingStream) push(h common.Hash) {
	for {
		select {
		case s.out <- h:
			return
		default:
		}
		select {
		case <-s.out:
			s.droppedMu.Lock()
			s.dropped++
			s.droppedMu.Unlock()
		default:
		}
	}
}
