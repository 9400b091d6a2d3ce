package model

// KeyType identifies the signature scheme an account signs with.
type KeyType uint8

const (
	KeyTypeECDSA   KeyType = 0 // externally owned account, secp256k1 recovery
	KeyTypeERC1271 KeyType = 1 // contract account, on-chain acceptance check
)

// AssociationState is the two-phase signature lifecycle of a stored record.
type AssociationState string

const (
	AssociationStateUnregistered AssociationState = "unregistered"
	AssociationStatePending      AssociationState = "pending_approver"
	AssociationStateComplete     AssociationState = "complete"
	AssociationStateRevoked      AssociationState = "revoked"
)

// ValidationResultStatus is the per-item outcome of a batch processor run.
type ValidationResultStatus string

const (
	ValidationResultSubmitted ValidationResultStatus = "submitted"
	ValidationResultFailed    ValidationResultStatus = "failed"
)

// ValidationResponseAccepted is the response code written for a validation
// request the delegated validator accepts. Zero is reserved for pending.
const ValidationResponseAccepted uint8 = 100
