package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// FeedbackAuthorization is a signed, time-boxed bearer token letting a client
// submit reputation feedback about an agent on one chain. Never reused across
// a different client/agent pair; immutable after creation.
type FeedbackAuthorization struct {
	ID            string        `db:"id" json:"id"`
	AgentID       uint64        `db:"agent_id" json:"agentId"`
	ClientAddress string        `db:"client_address" json:"clientAddress"`
	ChainID       int64         `db:"chain_id" json:"chainId"`
	SkillID       *string       `db:"skill_id" json:"skillId,omitempty"`
	ExpiresAt     time.Time     `db:"expires_at" json:"expiresAt"`
	Signature     hexutil.Bytes `db:"signature" json:"signature"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`
}

type CreateFeedbackAuthorizationParams struct {
	AgentID       uint64
	ClientAddress string
	ChainID       int64
	SkillID       *string
	ExpiresAt     time.Time
	Signature     []byte
}
