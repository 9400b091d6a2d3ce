package chain

import (
	"bytes"
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// isValidSignature(bytes32,bytes) per ERC-1271. A contract account accepts a
// signature by returning the selector itself as magic value.
var (
	isValidSignatureSelector = Selector("isValidSignature(bytes32,bytes)")
	erc1271MagicValue        = isValidSignatureSelector
)

// IsValidSignature runs the ERC-1271 acceptance check against a contract
// account. A false answer is advisory; the chain remains the final authority
// at submission time.
func (c *Client) IsValidSignature(ctx context.Context, account common.Address, digest common.Hash, sig []byte) (bool, error) {
	data := Pack(isValidSignatureSelector, HashWord(digest), DynamicBytes(sig))
	out, err := c.Call(ctx, account, data)
	if err != nil {
		return false, err
	}
	if len(out) < 4 {
		return false, nil
	}
	return bytes.Equal(out[:4], erc1271MagicValue[:]), nil
}
