package model

import "time"

// ValidationRequestStatus mirrors one outstanding validation request as read
// from the ledger. responseCode zero means pending; anything else is terminal.
type ValidationRequestStatus struct {
	RequestHash      string `json:"requestHash"`
	AgentID          uint64 `json:"agentId"`
	ChainID          int64  `json:"chainId"`
	ValidatorAddress string `json:"validatorAddress"`
	ResponseCode     uint8  `json:"responseCode"`
	ResponseTag      string `json:"responseTag"`
}

// Pending reports whether the request still awaits a validator response.
func (s *ValidationRequestStatus) Pending() bool {
	return s.ResponseCode == 0
}

// AgentIdentity is the subset of agent metadata the processor needs to build
// a validation response. Populated by the external identity lookup.
type AgentIdentity struct {
	AgentID uint64 `json:"agentId"`
	Name    string `json:"name"`
	Account string `json:"account"`
}

// ValidationResult is the per-item outcome of one processor pass. A failed
// item never aborts the rest of the batch.
type ValidationResult struct {
	ID          string                 `db:"id" json:"id"`
	RequestHash string                 `db:"request_hash" json:"requestHash"`
	AgentID     uint64                 `db:"agent_id" json:"agentId"`
	ChainID     int64                  `db:"chain_id" json:"chainId"`
	Status      ValidationResultStatus `db:"status" json:"status"`
	TxHash      *string                `db:"tx_hash" json:"txHash,omitempty"`
	Error       *string                `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time              `db:"created_at" json:"createdAt"`
}

type CreateValidationResultParams struct {
	RequestHash string
	AgentID     uint64
	ChainID     int64
	Status      ValidationResultStatus
	TxHash      *string
	Error       *string
}
