package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/calderw/mevsearcher/internal/domain"
)

// RuleConfidence is the built-in heuristic confidence model. It is
// deterministic: the wider the gap beyond the threshold, the higher the
// confidence, saturating at 0.99. Wider gaps are more likely to survive the
// blocks between detection and inclusion.
func RuleConfidence(thresholdBps float64) ConfidenceFunc {
	return func(_ context.Context, opp domain.Opportunity) (float64, error) {
		if opp.GapBps <= thresholdBps {
			return 0, nil
		}
		// Linear ramp from 0.5 at the threshold to 0.99 at 4x the threshold.
		excess := (opp.GapBps - thresholdBps) / (3 * thresholdBps)
		conf := 0.5 + 0.49*excess
		if conf > 0.99 {
			conf = 0.99
		}
		return conf, nil
	}
}

// InferenceClient scores confidence via an external HTTP inference service.
type InferenceClient struct {
	url    string
	client *http.Client
}

// NewInferenceClient builds a client against the given scoring endpoint.
func NewInferenceClient(url string) *InferenceClient {
	return &InferenceClient{
		url:    url,
		client: &http.Client{Timeout: 3 * time.Second},
	}
}

type inferenceRequest struct {
	TxHash          string  `json:"tx_hash"`
	GapBps          float64 `json:"gap_bps"`
	EstimatedProfit string  `json:"estimated_profit_wei"`
	BuyVenue        string  `json:"buy_venue"`
	SellVenue       string  `json:"sell_venue"`
}

type inferenceResponse struct {
	Confidence float64 `json:"confidence"`
}

// Confidence implements ConfidenceFunc against the inference service.
func (c *InferenceClient) Confidence(ctx context.Context, opp domain.Opportunity) (float64, error) {
	body, err := json.Marshal(inferenceRequest{
		TxHash:          opp.TxHash.Hex(),
		GapBps:          opp.GapBps,
		EstimatedProfit: opp.EstimatedProfit.String(),
		BuyVenue:        opp.BuyVenue,
		SellVenue:       opp.SellVenue,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrScoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: inference returned %d", domain.ErrScoreUnavailable, resp.StatusCode)
	}

	var out inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: decode: %v", domain.ErrScoreUnavailable, err)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return 0, fmt.Errorf("%w: confidence %f out of range", domain.ErrScoreUnavailable, out.Confidence)
	}
	return out.Confidence, nil
}
