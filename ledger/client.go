package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is an HTTP client for a public ledger query/broadcast API
// (WhatsOnChain-style REST endpoints). It handles request construction,
// response parsing, and unit conversion to satoshis.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Compile-time interface check.
var _ Service = (*Client)(nil)

// ClientConfig holds the connection parameters for the ledger API.
type ClientConfig struct {
	// BaseURL is the API root, e.g. "https://api.whatsonchain.com/v1/bsv/main".
	BaseURL string `json:"base_url"`
	// APIKey is sent as an Authorization header when non-empty.
	APIKey string `json:"api_key"`
	// Timeout bounds each HTTP call. Defaults to 30s.
	Timeout time.Duration `json:"timeout"`
}

// NewClient creates a ledger API client with the given configuration.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

// get performs a GET request and decodes the JSON response into result.
// A 404 response returns ErrTxNotFound; other non-2xx responses return
// ErrConnectionFailed so callers retry next cycle.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("ledger: create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrTxNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: HTTP %d: %s", ErrConnectionFailed, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrInvalidResponse, err)
	}
	return nil
}

// coinToSat converts a coin-denominated float64 amount (as returned by the
// API) to satoshis. math.Round avoids floating-point truncation issues.
func coinToSat(coin float64) uint64 {
	return uint64(math.Round(coin * 1e8))
}

// historyItem maps the JSON fields of the address history endpoint.
type historyItem struct {
	TxHash string `json:"tx_hash"`
	Height int64  `json:"height"`
}

// AddressHistory returns the recent transaction history for an address.
// It calls GET /address/{addr}/history.
func (c *Client) AddressHistory(ctx context.Context, address string) ([]HistoryItem, error) {
	var results []historyItem
	if err := c.get(ctx, "/address/"+url.PathEscape(address)+"/history", &results); err != nil {
		return nil, err
	}
	items := make([]HistoryItem, len(results))
	for i, r := range results {
		items[i] = HistoryItem{TxID: r.TxHash, Height: r.Height}
	}
	return items, nil
}

// unspentItem maps the JSON fields of the address unspent endpoint.
// Value is already in satoshis on this endpoint.
type unspentItem struct {
	TxHash string `json:"tx_hash"`
	TxPos  uint32 `json:"tx_pos"`
	Value  uint64 `json:"value"`
	Height int64  `json:"height"`
}

// ListUnspent returns all unspent transaction outputs for the given address.
// It calls GET /address/{addr}/unspent.
func (c *Client) ListUnspent(ctx context.Context, address string) ([]*UTXO, error) {
	var results []unspentItem
	if err := c.get(ctx, "/address/"+url.PathEscape(address)+"/unspent", &results); err != nil {
		return nil, err
	}
	utxos := make([]*UTXO, len(results))
	for i, r := range results {
		utxos[i] = &UTXO{
			TxID:   r.TxHash,
			Vout:   r.TxPos,
			Amount: r.Value,
		}
	}
	return utxos, nil
}

// verboseTx maps the JSON fields of the transaction detail endpoint.
type verboseTx struct {
	TxID          string `json:"txid"`
	BlockHeight   uint64 `json:"blockheight"`
	BlockHash     string `json:"blockhash"`
	BlockTime     int64  `json:"blocktime"`
	Confirmations int64  `json:"confirmations"`
	Vout          []struct {
		Value        float64 `json:"value"`
		N            uint32  `json:"n"`
		ScriptPubKey struct {
			Hex string `json:"hex"`
		} `json:"scriptPubKey"`
	} `json:"vout"`
}

// GetTx returns the full detail of a transaction, including every output's
// locking script. It calls GET /tx/hash/{txid}.
func (c *Client) GetTx(ctx context.Context, txID string) (*Tx, error) {
	var result verboseTx
	if err := c.get(ctx, "/tx/hash/"+url.PathEscape(txID), &result); err != nil {
		return nil, err
	}

	tx := &Tx{
		TxID:        result.TxID,
		BlockHeight: result.BlockHeight,
		BlockTime:   result.BlockTime,
		Outputs:     make([]TxOutput, len(result.Vout)),
	}
	for i, v := range result.Vout {
		raw, err := hex.DecodeString(v.ScriptPubKey.Hex)
		if err != nil {
			return nil, fmt.Errorf("%w: output %d script hex: %v", ErrInvalidResponse, v.N, err)
		}
		tx.Outputs[i] = TxOutput{
			Index:  v.N,
			Value:  coinToSat(v.Value),
			Script: raw,
		}
	}
	return tx, nil
}

// GetTxStatus returns the confirmation status of a transaction.
// It reuses the detail endpoint's confirmation fields.
func (c *Client) GetTxStatus(ctx context.Context, txID string) (*TxStatus, error) {
	var result verboseTx
	if err := c.get(ctx, "/tx/hash/"+url.PathEscape(txID), &result); err != nil {
		return nil, err
	}
	return &TxStatus{
		Confirmed:     result.Confirmations > 0,
		Confirmations: result.Confirmations,
		BlockHash:     result.BlockHash,
		BlockHeight:   result.BlockHeight,
	}, nil
}

// broadcastRequest is the POST body of the raw broadcast endpoint.
type broadcastRequest struct {
	TxHex string `json:"txhex"`
}

// BroadcastTx submits a raw transaction hex to the ledger and returns the
// txid. It calls POST /tx/raw. Rejections are wrapped with
// ErrBroadcastRejected; transport failures with ErrConnectionFailed so the
// caller can tell a rejected transaction from one of unknown fate.
func (c *Client) BroadcastTx(ctx context.Context, rawTxHex string) (string, error) {
	body, err := json.Marshal(broadcastRequest{TxHex: rawTxHex})
	if err != nil {
		return "", fmt.Errorf("ledger: marshal broadcast request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tx/raw", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ledger: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: HTTP %d: %s", ErrBroadcastRejected, resp.StatusCode, string(respBody))
	}

	var txid string
	if err := json.Unmarshal(respBody, &txid); err != nil {
		// Some deployments return the txid as a bare string.
		txid = strings.TrimSpace(strings.Trim(string(respBody), `"`))
	}
	if len(txid) != 64 {
		return "", fmt.Errorf("%w: broadcast returned %q", ErrInvalidResponse, txid)
	}
	return txid, nil
}

// chainInfo maps the JSON fields of the chain info endpoint.
type chainInfo struct {
	Blocks uint64 `json:"blocks"`
}

// GetBestBlockHeight returns the height of the current chain tip.
// It calls GET /chain/info.
func (c *Client) GetBestBlockHeight(ctx context.Context) (uint64, error) {
	var result chainInfo
	if err := c.get(ctx, "/chain/info", &result); err != nil {
		return 0, err
	}
	return result.Blocks, nil
}
