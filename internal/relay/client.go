package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Client is the sponsored-execution relay boundary. The relay accepts an
// encoded delegation-redemption payload, returns an operation handle, and
// exposes a receipt-by-handle lookup. Duplicate submissions of an accepted
// payload are tolerated relay-side.
type Client interface {
	Submit(ctx context.Context, req SubmitRequest) (string, error)
	Receipt(ctx context.Context, handle string) (*OperationReceipt, error)
}

// SubmitRequest is one encoded delegation-redemption payload.
type SubmitRequest struct {
	ChainID int64         `json:"chainId"`
	Account string        `json:"account"`
	Payload hexutil.Bytes `json:"payload"`
}

// OperationReceipt is the relay's view of a submitted operation. A nil
// receipt means the relay has not yet processed the handle.
type OperationReceipt struct {
	Handle  string       `json:"handle"`
	Status  string       `json:"status"` // "pending", "included", "dropped"
	TxHash  *common.Hash `json:"txHash,omitempty"`
	Success bool         `json:"success"`
}

// Terminal reports whether the relay will not change this receipt again.
func (r *OperationReceipt) Terminal() bool {
	return r != nil && r.Status != "pending"
}

// HTTPClient talks JSON-RPC to one relay endpoint.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	nextID     atomic.Int64
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(endpoint string) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int64  `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *HTTPClient) rpc(ctx context.Context, method string, result any, params ...any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("marshal relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s: relay error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if result != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// Submit sends the payload and returns the relay's operation handle. A
// returned handle does not imply inclusion.
func (c *HTTPClient) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	var handle string
	if err := c.rpc(ctx, "relay_submitOperation", &handle, req); err != nil {
		return "", err
	}
	if handle == "" {
		return "", fmt.Errorf("relay returned an empty operation handle")
	}
	return handle, nil
}

// Receipt looks up the receipt for an operation handle. Returns nil, nil
// while the relay has no receipt yet.
func (c *HTTPClient) Receipt(ctx context.Context, handle string) (*OperationReceipt, error) {
	var out *OperationReceipt
	if err := c.rpc(ctx, "relay_getOperationReceipt", &out, handle); err != nil {
		return nil, err
	}
	return out, nil
}
