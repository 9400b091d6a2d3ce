package chain

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

// Caller is the narrow ledger read surface the core consumes. The ledger is
// a black box with eventual consistency and an observable terminal state.
type Caller interface {
	ChainID() int64
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error)
	IsValidSignature(ctx context.Context, account common.Address, digest common.Hash, sig []byte) (bool, error)
}

// Receipt is the terminal state of a mined transaction.
type Receipt struct {
	TxHash      common.Hash
	Status      uint64
	BlockNumber uint64
}

// Success reports whether the transaction executed without reverting.
func (r *Receipt) Success() bool {
	return r != nil && r.Status == 1
}

// Client is a JSON-RPC ledger client bound to one chain.
type Client struct {
	endpoint   string
	chainID    int64
	httpClient *http.Client
	nextID     atomic.Int64
}

var _ Caller = (*Client)(nil)

func Dial(endpoint string, chainID int64) *Client {
	return &Client{
		endpoint: endpoint,
		chainID:  chainID,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) ChainID() int64 {
	return c.chainID
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

func (c *Client) rpc(ctx context.Context, method string, result any, params ...any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build rpc request: %w", err)
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
		return fmt.Errorf("%s: rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if result != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// Call executes a read-only contract call at the latest block.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out hexutil.Bytes
	params := map[string]any{
		"to":   to.Hex(),
		"data": hexutil.Encode(data),
	}
	if err := c.rpc(ctx, "eth_call", &out, params, "latest"); err != nil {
		return nil, err
	}
	return out, nil
}

type rpcReceipt struct {
	TransactionHash common.Hash    `json:"transactionHash"`
	Status          hexutil.Uint64 `json:"status"`
	BlockNumber     hexutil.Uint64 `json:"blockNumber"`
}

// TransactionReceipt reads a receipt by hash. Returns nil, nil while the
// transaction is not yet mined.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	var out *rpcReceipt
	if err := c.rpc(ctx, "eth_getTransactionReceipt", &out, txHash.Hex()); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return &Receipt{
		TxHash:      out.TransactionHash,
		Status:      uint64(out.Status),
		BlockNumber: uint64(out.BlockNumber),
	}, nil
}
