package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/model"
)

var (
	getAssociationSelector     = Selector("getAssociation(bytes32)")
	storeAssociationSelector   = Selector("storeAssociation((bytes,bytes,uint64,uint64,bytes4,bytes),uint8,bytes)")
	updateSignatureSelector    = Selector("updateSignature(bytes32,uint8,bytes)")
	validationRequestsSelector = Selector("agentValidationRequests(address)")
	validationStatusSelector   = Selector("validationStatus(bytes32)")
	validationResponseSelector = Selector("validationResponse(bytes32,uint8,bytes32)")
)

// TrustRegistry reads and encodes calls against the association and
// validation registries of one chain.
type TrustRegistry struct {
	caller          Caller
	associationAddr common.Address
	validationAddr  common.Address
}

func NewTrustRegistry(caller Caller, associationAddr, validationAddr common.Address) *TrustRegistry {
	return &TrustRegistry{
		caller:          caller,
		associationAddr: associationAddr,
		validationAddr:  validationAddr,
	}
}

func (t *TrustRegistry) AssociationAddress() common.Address {
	return t.associationAddr
}

func (t *TrustRegistry) ValidationAddress() common.Address {
	return t.validationAddr
}

// Association reads the stored record for a digest. Returns nil, nil when
// the digest is unregistered.
func (t *TrustRegistry) Association(ctx context.Context, digest common.Hash) (*model.SignedAssociationRecord, error) {
	out, err := t.caller.Call(ctx, t.associationAddr, Pack(getAssociationSelector, HashWord(digest)))
	if err != nil {
		return nil, fmt.Errorf("get association: %w", err)
	}
	return decodeSignedAssociation(out)
}

func decodeSignedAssociation(data []byte) (*model.SignedAssociationRecord, error) {
	if len(data) == 0 {
		return nil, nil
	}
	top := NewDecoder(data)
	sarOff, err := top.Offset(0)
	if err != nil {
		return nil, err
	}
	sar, err := top.At(sarOff)
	if err != nil {
		return nil, err
	}

	recordOff, err := sar.Offset(0)
	if err != nil {
		return nil, err
	}
	record, err := sar.At(recordOff)
	if err != nil {
		return nil, err
	}

	initiatorOff, err := record.Offset(0)
	if err != nil {
		return nil, err
	}
	initiator, err := record.BytesAt(initiatorOff)
	if err != nil {
		return nil, err
	}
	if len(initiator) == 0 {
		// Unregistered digests decode to an all-empty record.
		return nil, nil
	}
	approverOff, err := record.Offset(1)
	if err != nil {
		return nil, err
	}
	approver, err := record.BytesAt(approverOff)
	if err != nil {
		return nil, err
	}
	validAt, err := record.Uint64(2)
	if err != nil {
		return nil, err
	}
	validUntil, err := record.Uint64(3)
	if err != nil {
		return nil, err
	}
	interfaceID, err := record.Bytes4(4)
	if err != nil {
		return nil, err
	}
	dataOff, err := record.Offset(5)
	if err != nil {
		return nil, err
	}
	recordData, err := record.BytesAt(dataOff)
	if err != nil {
		return nil, err
	}

	initiatorKeyType, err := sar.Uint8(1)
	if err != nil {
		return nil, err
	}
	approverKeyType, err := sar.Uint8(2)
	if err != nil {
		return nil, err
	}
	initSigOff, err := sar.Offset(3)
	if err != nil {
		return nil, err
	}
	initiatorSig, err := sar.BytesAt(initSigOff)
	if err != nil {
		return nil, err
	}
	apprSigOff, err := sar.Offset(4)
	if err != nil {
		return nil, err
	}
	approverSig, err := sar.BytesAt(apprSigOff)
	if err != nil {
		return nil, err
	}
	revokedAt, err := sar.Uint64(5)
	if err != nil {
		return nil, err
	}

	return &model.SignedAssociationRecord{
		Record: model.AssociationRecord{
			Initiator:   initiator,
			Approver:    approver,
			ValidAt:     validAt,
			ValidUntil:  validUntil,
			InterfaceID: interfaceID,
			Data:        recordData,
		},
		InitiatorKeyType:   model.KeyType(initiatorKeyType),
		ApproverKeyType:    model.KeyType(approverKeyType),
		InitiatorSignature: initiatorSig,
		ApproverSignature:  approverSig,
		RevokedAt:          revokedAt,
	}, nil
}

// EncodeStoreAssociation builds the initiator-only store call. The approver
// signature is intentionally absent; it is appended by a later transition.
func (t *TrustRegistry) EncodeStoreAssociation(record model.AssociationRecord, initiatorKeyType model.KeyType, initiatorSig []byte) []byte {
	recordTuple := PackArgs(
		DynamicBytes(record.Initiator),
		DynamicBytes(record.Approver),
		Uint64Word(record.ValidAt),
		Uint64Word(record.ValidUntil),
		Bytes4Word(record.InterfaceID),
		DynamicBytes(record.Data),
	)
	return Pack(storeAssociationSelector,
		DynamicTail(recordTuple),
		Uint64Word(uint64(initiatorKeyType)),
		DynamicBytes(initiatorSig),
	)
}

// EncodeUpdateSignature builds the approver-signature append call.
func (t *TrustRegistry) EncodeUpdateSignature(digest common.Hash, keyType model.KeyType, sig []byte) []byte {
	return Pack(updateSignatureSelector,
		HashWord(digest),
		Uint64Word(uint64(keyType)),
		DynamicBytes(sig),
	)
}

// ValidationRequests enumerates request hashes addressed to a validator.
func (t *TrustRegistry) ValidationRequests(ctx context.Context, validator common.Address) ([]common.Hash, error) {
	out, err := t.caller.Call(ctx, t.validationAddr, Pack(validationRequestsSelector, AddressWord(validator)))
	if err != nil {
		return nil, fmt.Errorf("validation requests: %w", err)
	}
	dec := NewDecoder(out)
	off, err := dec.Offset(0)
	if err != nil {
		return nil, err
	}
	return dec.HashArrayAt(off)
}

// ValidationStatus reads the status of one request hash.
func (t *TrustRegistry) ValidationStatus(ctx context.Context, requestHash common.Hash) (*model.ValidationRequestStatus, error) {
	out, err := t.caller.Call(ctx, t.validationAddr, Pack(validationStatusSelector, HashWord(requestHash)))
	if err != nil {
		return nil, fmt.Errorf("validation status: %w", err)
	}
	dec := NewDecoder(out)
	agentID, err := dec.Uint64(0)
	if err != nil {
		return nil, err
	}
	validator, err := dec.Address(1)
	if err != nil {
		return nil, err
	}
	responseCode, err := dec.Uint8(2)
	if err != nil {
		return nil, err
	}
	tag, err := dec.Word(3)
	if err != nil {
		return nil, err
	}
	return &model.ValidationRequestStatus{
		RequestHash:      requestHash.Hex(),
		AgentID:          agentID,
		ChainID:          t.caller.ChainID(),
		ValidatorAddress: validator.Hex(),
		ResponseCode:     responseCode,
		ResponseTag:      TagString(tag),
	}, nil
}

// EncodeValidationResponse builds the validator's response call.
func (t *TrustRegistry) EncodeValidationResponse(requestHash common.Hash, response uint8, tag string) []byte {
	var tagWord [32]byte
	copy(tagWord[:], tag)
	return Pack(validationResponseSelector,
		HashWord(requestHash),
		Uint64Word(uint64(response)),
		Bytes32Word(tagWord),
	)
}
