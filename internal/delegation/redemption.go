package delegation

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/chain"
)

// Call is one target invocation to execute as the delegating account.
type Call struct {
	Target  common.Address
	Value   *big.Int
	Payload []byte
}

// EncodeRedemption wraps an ordered list of calls under the delegation proof
// as a single relay payload: selector | (bytes proof, (address,uint256,bytes)[] calls).
// The relay redeems the proof and executes the calls without the delegating
// account's key ever touching the network.
func EncodeRedemption(material RedemptionMaterial, calls []Call) []byte {
	return chain.Pack(material.Selector,
		chain.DynamicBytes(material.Proof),
		chain.DynamicTail(encodeCalls(calls)),
	)
}

func encodeCalls(calls []Call) []byte {
	elements := make([][]byte, len(calls))
	for i, c := range calls {
		value := c.Value
		if value == nil {
			value = new(big.Int)
		}
		elements[i] = chain.PackArgs(
			chain.AddressWord(c.Target),
			chain.BigWord(value),
			chain.DynamicBytes(c.Payload),
		)
	}

	// array layout: length word, one offset per element, element tuples
	out := chain.PackArgs(chain.Uint64Word(uint64(len(calls))))
	offset := 32 * len(calls)
	for _, e := range elements {
		out = append(out, chain.PackArgs(chain.Uint64Word(uint64(offset)))...)
		offset += len(e)
	}
	for _, e := range elements {
		out = append(out, e...)
	}
	return out
}
