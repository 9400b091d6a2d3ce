package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/model"
)

var getAgentSelector = Selector("getAgent(uint256)")

// IdentityRegistry resolves agent metadata on one chain.
type IdentityRegistry struct {
	caller Caller
	addr   common.Address
}

func NewIdentityRegistry(caller Caller, addr common.Address) *IdentityRegistry {
	return &IdentityRegistry{caller: caller, addr: addr}
}

// Agent returns the agent's name and delegated account. Returns nil, nil when
// the agent does not exist.
func (r *IdentityRegistry) Agent(ctx context.Context, agentID uint64) (*model.AgentIdentity, error) {
	out, err := r.caller.Call(ctx, r.addr, Pack(getAgentSelector, Uint64Word(agentID)))
	if err != nil {
		return nil, fmt.Errorf("get agent %d: %w", agentID, err)
	}
	dec := NewDecoder(out)
	nameOff, err := dec.Offset(0)
	if err != nil {
		return nil, err
	}
	name, err := dec.StringAt(nameOff)
	if err != nil {
		return nil, err
	}
	account, err := dec.Address(1)
	if err != nil {
		return nil, err
	}
	if name == "" && account == (common.Address{}) {
		return nil, nil
	}
	identity := &model.AgentIdentity{
		AgentID: agentID,
		Name:    name,
	}
	if account != (common.Address{}) {
		identity.Account = account.Hex()
	}
	return identity, nil
}
