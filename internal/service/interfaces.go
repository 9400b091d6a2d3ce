package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/delegation"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/model"
)

// TrustReader is the association/validation registry surface the services
// consume. Implemented by chain.TrustRegistry.
type TrustReader interface {
	AssociationAddress() common.Address
	ValidationAddress() common.Address
	Association(ctx context.Context, digest common.Hash) (*model.SignedAssociationRecord, error)
	EncodeStoreAssociation(record model.AssociationRecord, initiatorKeyType model.KeyType, initiatorSig []byte) []byte
	EncodeUpdateSignature(digest common.Hash, keyType model.KeyType, sig []byte) []byte
	ValidationRequests(ctx context.Context, validator common.Address) ([]common.Hash, error)
	ValidationStatus(ctx context.Context, requestHash common.Hash) (*model.ValidationRequestStatus, error)
	EncodeValidationResponse(requestHash common.Hash, response uint8, tag string) []byte
}

// IdentityReader resolves agent metadata. Implemented by
// chain.IdentityRegistry, optionally behind a cache.
type IdentityReader interface {
	Agent(ctx context.Context, agentID uint64) (*model.AgentIdentity, error)
}

// TrustProvider and IdentityProvider hand out per-chain readers from the
// process-owned registry.
type (
	TrustProvider    func(chainID int64) (TrustReader, error)
	IdentityProvider func(chainID int64) (IdentityReader, error)
)

// OperationExecutor submits calls through the sponsored-execution pipeline
// and confirms them. Implemented by Submitter.
type OperationExecutor interface {
	Execute(ctx context.Context, dctx *delegation.Context, calls []delegation.Call) (common.Hash, error)
}
