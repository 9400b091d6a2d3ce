package association

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/model"
)

// The association identifier is an EIP-712 style typed-structure hash: a
// domain separator over a fixed name/version pair combined with a struct
// hash over the record fields in canonical order. Signatures and revokedAt
// never enter the digest, so the identifier is stable across the two-phase
// signing lifecycle. Both constants are part of the wire format and must not
// change.
const (
	domainName    = "AgenticTrustAssociations"
	domainVersion = "1"
)

var (
	domainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version)"))
	recordTypeHash = crypto.Keccak256Hash([]byte(
		"Association(bytes initiator,bytes approver,uint64 validAt,uint64 validUntil,bytes4 interfaceId,bytes data)"))

	domainSeparator = crypto.Keccak256Hash(
		domainTypeHash.Bytes(),
		crypto.Keccak256([]byte(domainName)),
		crypto.Keccak256([]byte(domainVersion)),
	)
)

// Digest computes the deterministic 32-byte identifier of a record. Two
// records with identical field values always share a digest; any field
// difference changes it.
func Digest(r model.AssociationRecord) common.Hash {
	structHash := crypto.Keccak256Hash(
		recordTypeHash.Bytes(),
		crypto.Keccak256(r.Initiator),
		crypto.Keccak256(r.Approver),
		uint64Word(r.ValidAt),
		uint64Word(r.ValidUntil),
		bytes4Word(r.InterfaceID),
		crypto.Keccak256(r.Data),
	)
	return crypto.Keccak256Hash(
		[]byte{0x19, 0x01},
		domainSeparator.Bytes(),
		structHash.Bytes(),
	)
}

// SignDigest produces a 65-byte [R || S || V] signature with V in 27/28.
func SignDigest(digest common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// RecoverSigner resolves the account that produced a 65-byte signature over
// a digest. Accepts V in either 0/1 or 27/28 form.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func uint64Word(v uint64) []byte {
	var w [32]byte
	for i := 0; i < 8; i++ {
		w[31-i] = byte(v >> (8 * i))
	}
	return w[:]
}

func bytes4Word(b [4]byte) []byte {
	var w [32]byte
	copy(w[:4], b[:])
	return w[:]
}
