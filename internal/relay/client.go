// Package relay speaks the bundle relay's JSON-RPC surface: simulation via
// eth_callBundle and submission via eth_sendBundle, with signed request
// headers.
package relay

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/calderw/mevsearcher/internal/domain"
)

// Client signs and sends relay requests. The auth key identifies the searcher
// to the relay for reputation; it is distinct from the executing wallet key.
type Client struct {
	url      string
	authKey  *ecdsa.PrivateKey
	authAddr string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient builds a relay client from the endpoint URL and the hex-encoded
// relay auth key.
func NewClient(url, authKeyHex string, logger *slog.Logger) (*Client, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(authKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("relay: invalid auth key: %w", err)
	}
	return &Client{
		url:      url,
		authKey:  key,
		authAddr: ethcrypto.PubkeyToAddress(key.PublicKey).Hex(),
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   logger.With(slog.String("component", "relay")),
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type callBundleParam struct {
	Txs              []string `json:"txs"`
	BlockNumber      string   `json:"blockNumber"`
	StateBlockNumber string   `json:"stateBlockNumber"`
}

type sendBundleParam struct {
	Txs         []string `json:"txs"`
	BlockNumber string   `json:"blockNumber"`
}

type callBundleResult struct {
	Results []struct {
		TxHash string `json:"txHash"`
		Error  string `json:"error"`
		Revert string `json:"revert"`
	} `json:"results"`
}

type sendBundleResult struct {
	BundleHash string `json:"bundleHash"`
}

// Simulate runs the bundle against the target block's parent state via
// eth_callBundle. A transport or relay error is returned as err; a failing
// transaction inside the bundle is reported in the result instead.
func (c *Client) Simulate(ctx context.Context, bundle domain.SignedBundle) (domain.SimulationResult, error) {
	param := callBundleParam{
		Txs:              bundle.RawTxs,
		BlockNumber:      hexutil.EncodeUint64(bundle.TargetBlock),
		StateBlockNumber: "latest",
	}

	var result callBundleResult
	if err := c.call(ctx, "eth_callBundle", param, &result); err != nil {
		return domain.SimulationResult{}, err
	}

	for _, r := range result.Results {
		if r.Error != "" {
			msg := r.Error
			if r.Revert != "" {
				msg = fmt.Sprintf("%s: %s", r.Error, r.Revert)
			}
			return domain.SimulationResult{Err: fmt.Sprintf("tx %s: %s", r.TxHash, msg)}, nil
		}
	}
	return domain.SimulationResult{}, nil
}

// Submit sends the bundle for its target block via eth_sendBundle and returns
// the relay-assigned bundle hash.
func (c *Client) Submit(ctx context.Context, bundle domain.SignedBundle) (string, error) {
	param := sendBundleParam{
		Txs:         bundle.RawTxs,
		BlockNumber: hexutil.EncodeUint64(bundle.TargetBlock),
	}

	var result sendBundleResult
	if err := c.call(ctx, "eth_sendBundle", param, &result); err != nil {
		return "", err
	}
	return result.BundleHash, nil
}

// call performs one signed JSON-RPC round trip.
func (c *Client) call(ctx context.Context, method string, param, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  []any{param},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	sig, err := c.signBody(body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Flashbots-Signature", sig)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("relay %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("relay %s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay %s: status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("relay %s: decode: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("relay %s: %d %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("relay %s: decode result: %w", method, err)
		}
	}
	return nil
}

// signBody produces the relay auth header: the auth address joined with the
// signature over keccak256 of the request body.
func (c *Client) signBody(body []byte) (string, error) {
	hashed := ethcrypto.Keccak256Hash(body)
	sig, err := ethcrypto.Sign(accountsTextHash(hashed.Hex()), c.authKey)
	if err != nil {
		return "", fmt.Errorf("relay: sign request: %w", err)
	}
	return c.authAddr + ":" + hexutil.Encode(sig), nil
}

// accountsTextHash applies the EIP-191 personal-message prefix the relay
// expects over the hex-encoded body hash.
func accountsTextHash(data string) []byte {
	msg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(data), data)
	return ethcrypto.Keccak256([]byte(msg))
}
