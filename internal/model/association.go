package model

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AssociationRecord is a canonical, chain-addressed statement that one
// identity is associated with another. Initiator and approver are versioned,
// chain-qualified identifiers rather than raw addresses so the same record
// format works across address spaces.
type AssociationRecord struct {
	Initiator   hexutil.Bytes `json:"initiator"`
	Approver    hexutil.Bytes `json:"approver"`
	ValidAt     uint64        `json:"validAt"`
	ValidUntil  uint64        `json:"validUntil"`
	InterfaceID [4]byte       `json:"-"`
	Data        hexutil.Bytes `json:"data"`
}

// SignedAssociationRecord wraps a record with up to two signatures and a
// revocation timestamp. The record digest is a pure function of Record alone;
// none of the other fields enter it.
type SignedAssociationRecord struct {
	Record             AssociationRecord `json:"record"`
	InitiatorKeyType   KeyType           `json:"initiatorKeyType"`
	ApproverKeyType    KeyType           `json:"approverKeyType"`
	InitiatorSignature hexutil.Bytes     `json:"initiatorSignature"`
	ApproverSignature  hexutil.Bytes     `json:"approverSignature"`
	RevokedAt          uint64            `json:"revokedAt"`
}

// State reports where the record sits in the two-phase signature lifecycle.
func (s *SignedAssociationRecord) State() AssociationState {
	switch {
	case s == nil:
		return AssociationStateUnregistered
	case s.RevokedAt != 0:
		return AssociationStateRevoked
	case len(s.ApproverSignature) == 0:
		return AssociationStatePending
	default:
		return AssociationStateComplete
	}
}
