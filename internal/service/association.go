package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/association"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/audit"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/delegation"
	apperrors "github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/errors"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/model"
)

// AssociationService drives the two-phase signature lifecycle of association
// records: store with the initiator signature only, then append the approver
// signature once it is available. Deferring the approver step lets the record
// exist on-chain immediately and be retried independently.
type AssociationService struct {
	trust    TrustProvider
	executor OperationExecutor
}

func NewAssociationService(trust TrustProvider, executor OperationExecutor) *AssociationService {
	return &AssociationService{
		trust:    trust,
		executor: executor,
	}
}

// StoreResult reports the outcome of one lifecycle transition.
type StoreResult struct {
	Digest        common.Hash            `json:"digest"`
	TxHash        *common.Hash           `json:"txHash,omitempty"`
	AlreadyStored bool                   `json:"alreadyStored,omitempty"`
	State         model.AssociationState `json:"state"`
}

// StoreInitiatorOnly stores a record carrying only the initiator signature.
// Re-storing an already-stored digest is a safe no-op, which is what makes
// caller-side retries of relay submissions idempotent.
func (s *AssociationService) StoreInitiatorOnly(ctx context.Context, dctx *delegation.Context, record model.AssociationRecord, keyType model.KeyType, initiatorSig []byte) (*StoreResult, error) {
	digest := association.Digest(record)

	initiatorAddr, err := association.IdentifierAddress(record.Initiator)
	if err != nil {
		return nil, apperrors.InvalidInput("initiator", err.Error())
	}
	if keyType == model.KeyTypeECDSA {
		signer, err := association.RecoverSigner(digest, initiatorSig)
		if err != nil {
			return nil, apperrors.InvalidInput("initiatorSignature", err.Error())
		}
		if signer != initiatorAddr {
			return nil, apperrors.SignerMismatch("initiator", initiatorAddr.Hex(), signer.Hex())
		}
	}

	reader, err := s.trust(dctx.Chain.ChainID())
	if err != nil {
		return nil, err
	}

	existing, err := reader.Association(ctx, digest)
	if err != nil {
		return nil, apperrors.External("ledger", err)
	}
	if existing != nil {
		log.Info().
			Str("digest", digest.Hex()).
			Str("state", string(existing.State())).
			Msg("association already stored, treating store as no-op")
		return &StoreResult{
			Digest:        digest,
			AlreadyStored: true,
			State:         existing.State(),
		}, nil
	}

	data := reader.EncodeStoreAssociation(record, keyType, initiatorSig)
	txHash, err := s.executor.Execute(ctx, dctx, []delegation.Call{{
		Target:  reader.AssociationAddress(),
		Payload: data,
	}})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("digest", digest.Hex()).
		Str("txHash", txHash.Hex()).
		Msg("association stored with initiator signature")
	audit.Log(ctx, audit.Event{
		Type:    audit.EventAssociationStore,
		AgentID: dctx.Credential.AgentID,
		ChainID: dctx.Chain.ChainID(),
		Digest:  digest.Hex(),
		Details: map[string]interface{}{"txHash": txHash.Hex()},
	})

	return &StoreResult{
		Digest: digest,
		TxHash: &txHash,
		State:  model.AssociationStatePending,
	}, nil
}

// AddApproverSignature appends the approver signature to a stored record.
// Valid only from the stored-without-approver state; the digest never
// changes across the transition.
func (s *AssociationService) AddApproverSignature(ctx context.Context, dctx *delegation.Context, digest common.Hash, keyType model.KeyType, approverSig []byte) (*StoreResult, error) {
	reader, err := s.trust(dctx.Chain.ChainID())
	if err != nil {
		return nil, err
	}

	existing, err := reader.Association(ctx, digest)
	if err != nil {
		return nil, apperrors.External("ledger", err)
	}
	switch existing.State() {
	case model.AssociationStateUnregistered:
		return nil, apperrors.NotRegistered(digest.Hex())
	case model.AssociationStateComplete:
		return nil, apperrors.AlreadySigned(digest.Hex())
	case model.AssociationStateRevoked:
		return nil, apperrors.New(apperrors.ErrCodeConflict, "association is revoked")
	}

	if computed := association.Digest(existing.Record); computed != digest {
		return nil, apperrors.DigestMismatch(digest.Hex(), computed.Hex())
	}

	approverAddr, err := association.IdentifierAddress(existing.Record.Approver)
	if err != nil {
		return nil, apperrors.InvalidInput("approver", err.Error())
	}
	if keyType == model.KeyTypeECDSA {
		signer, err := association.RecoverSigner(digest, approverSig)
		if err != nil {
			return nil, apperrors.InvalidInput("approverSignature", err.Error())
		}
		if signer != approverAddr {
			return nil, apperrors.SignerMismatch("approver", approverAddr.Hex(), signer.Hex())
		}
	}

	// Acceptance preflight is advisory only: a rejection is logged and the
	// submission proceeds, leaving the chain as the final authority.
	if keyType == model.KeyTypeERC1271 {
		ok, err := dctx.Chain.IsValidSignature(ctx, approverAddr, digest, approverSig)
		if err != nil {
			log.Warn().Err(err).Str("digest", digest.Hex()).Msg("signature preflight unavailable, proceeding")
		} else if !ok {
			log.Warn().
				Str("digest", digest.Hex()).
				Str("approver", approverAddr.Hex()).
				Msg("signature preflight rejected, proceeding anyway")
		}
	}

	data := reader.EncodeUpdateSignature(digest, keyType, approverSig)
	txHash, err := s.executor.Execute(ctx, dctx, []delegation.Call{{
		Target:  reader.AssociationAddress(),
		Payload: data,
	}})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("digest", digest.Hex()).
		Str("txHash", txHash.Hex()).
		Msg("approver signature appended")
	audit.Log(ctx, audit.Event{
		Type:    audit.EventAssociationApprove,
		AgentID: dctx.Credential.AgentID,
		ChainID: dctx.Chain.ChainID(),
		Digest:  digest.Hex(),
		Details: map[string]interface{}{"txHash": txHash.Hex()},
	})

	return &StoreResult{
		Digest: digest,
		TxHash: &txHash,
		State:  model.AssociationStateComplete,
	}, nil
}

// Status reads the lifecycle state of a digest.
func (s *AssociationService) Status(ctx context.Context, chainID int64, digest common.Hash) (*model.SignedAssociationRecord, model.AssociationState, error) {
	reader, err := s.trust(chainID)
	if err != nil {
		return nil, model.AssociationStateUnregistered, err
	}
	existing, err := reader.Association(ctx, digest)
	if err != nil {
		return nil, model.AssociationStateUnregistered, apperrors.External("ledger", err)
	}
	return existing, existing.State(), nil
}
