package association

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Identifiers are versioned, chain-qualified byte strings rather than raw
// addresses, so one record format spans address spaces.
//
// Version 1 layout: 0x01 | uint64 chain id (big endian) | 20-byte address.
const (
	identifierVersion = 0x01
	identifierLen     = 1 + 8 + 20
)

// NewIdentifier builds a version-1 chain-qualified identifier.
func NewIdentifier(chainID int64, address common.Address) []byte {
	out := make([]byte, identifierLen)
	out[0] = identifierVersion
	binary.BigEndian.PutUint64(out[1:9], uint64(chainID))
	copy(out[9:], address.Bytes())
	return out
}

// ParseIdentifier splits a version-1 identifier into its chain id and
// address.
func ParseIdentifier(id []byte) (int64, common.Address, error) {
	if len(id) != identifierLen {
		return 0, common.Address{}, fmt.Errorf("identifier must be %d bytes, got %d", identifierLen, len(id))
	}
	if id[0] != identifierVersion {
		return 0, common.Address{}, fmt.Errorf("unsupported identifier version 0x%02x", id[0])
	}
	chainID := int64(binary.BigEndian.Uint64(id[1:9]))
	return chainID, common.BytesToAddress(id[9:]), nil
}

// IdentifierAddress extracts just the address component.
func IdentifierAddress(id []byte) (common.Address, error) {
	_, addr, err := ParseIdentifier(id)
	return addr, err
}
