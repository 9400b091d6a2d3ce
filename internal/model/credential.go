package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SessionCredential describes a delegated signing capability issued to a
// session key by an enrollment flow. Rows are written out of band and are
// immutable once loaded; the core only ever reads them.
type SessionCredential struct {
	ID                 string        `db:"id" json:"id"`
	AgentID            uint64        `db:"agent_id" json:"agentId"`
	ChainID            int64         `db:"chain_id" json:"chainId"`
	DelegatingAccount  string        `db:"delegating_account" json:"delegatingAccount"`
	DelegatedAccount   *string       `db:"delegated_account" json:"delegatedAccount,omitempty"`
	SessionPrivateKey  string        `db:"session_private_key" json:"-"`
	SessionAddress     string        `db:"session_address" json:"sessionAddress"`
	ValidAfter         time.Time     `db:"valid_after" json:"validAfter"`
	ValidUntil         time.Time     `db:"valid_until" json:"validUntil"`
	DelegationProof    hexutil.Bytes `db:"delegation_proof" json:"-"`
	RelayEndpoint      string        `db:"relay_endpoint" json:"relayEndpoint"`
	ReputationContract string        `db:"reputation_contract" json:"reputationContract"`
	RedemptionSelector string        `db:"redemption_selector" json:"redemptionSelector"`
	CreatedAt          time.Time     `db:"created_at" json:"createdAt"`
}
