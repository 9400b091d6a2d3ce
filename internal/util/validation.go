package util

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var hexRe = regexp.MustCompile(`^(0x)?[0-9a-fA-F]*$`)

// IsHexString reports whether s is empty-or-valid hex, with or without the
// 0x prefix.
func IsHexString(s string) bool {
	return hexRe.MatchString(s)
}

// IsAddress reports whether s is a well-formed 20-byte hex account address.
func IsAddress(s string) bool {
	return common.IsHexAddress(s)
}

// IsDigest reports whether s is a 0x-prefixed 32-byte hex string.
func IsDigest(s string) bool {
	if !strings.HasPrefix(s, "0x") {
		return false
	}
	body := s[2:]
	return len(body) == 64 && hexRe.MatchString(body)
}

// IsSelector reports whether s is a 4-byte hex function selector.
func IsSelector(s string) bool {
	body := strings.TrimPrefix(s, "0x")
	return len(body) == 8 && hexRe.MatchString(body)
}
