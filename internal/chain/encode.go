package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Minimal ABI word encoding for the handful of registry calls the core
// makes. Contract semantics stay external; this only lays out words.

// Arg is one top-level ABI argument: either a single static word or a
// pre-encoded dynamic tail referenced from the head by offset.
type Arg struct {
	dynamic bool
	word    [32]byte
	tail    []byte
}

func Uint64Word(v uint64) Arg {
	var w [32]byte
	new(big.Int).SetUint64(v).FillBytes(w[:])
	return Arg{word: w}
}

func BigWord(v *big.Int) Arg {
	var w [32]byte
	v.FillBytes(w[:])
	return Arg{word: w}
}

func AddressWord(a common.Address) Arg {
	var w [32]byte
	copy(w[12:], a.Bytes())
	return Arg{word: w}
}

func HashWord(h common.Hash) Arg {
	var w [32]byte
	copy(w[:], h.Bytes())
	return Arg{word: w}
}

// Bytes4Word lays out a fixed bytes4 value, left-aligned per ABI rules.
func Bytes4Word(b [4]byte) Arg {
	var w [32]byte
	copy(w[:4], b[:])
	return Arg{word: w}
}

// Bytes32Word lays out a fixed bytes32 value.
func Bytes32Word(b [32]byte) Arg {
	return Arg{word: b}
}

// DynamicBytes encodes a dynamic bytes argument (length word plus padded
// content) as a tail.
func DynamicBytes(b []byte) Arg {
	tail := make([]byte, 32, 32+padLen(len(b)))
	new(big.Int).SetInt64(int64(len(b))).FillBytes(tail[:32])
	tail = append(tail, padRight(b)...)
	return Arg{dynamic: true, tail: tail}
}

// DynamicTail wraps an already-encoded dynamic region (nested tuple, array)
// so Pack can reference it by offset.
func DynamicTail(raw []byte) Arg {
	return Arg{dynamic: true, tail: raw}
}

// PackArgs lays out arguments in the standard head/tail encoding without a
// selector, as used inside nested tuples.
func PackArgs(args ...Arg) []byte {
	headSize := 32 * len(args)
	tailSize := 0
	for _, a := range args {
		if a.dynamic {
			tailSize += len(a.tail)
		}
	}

	out := make([]byte, 0, headSize+tailSize)
	tailOffset := headSize
	var tails []byte
	for _, a := range args {
		if a.dynamic {
			var w [32]byte
			new(big.Int).SetInt64(int64(tailOffset)).FillBytes(w[:])
			out = append(out, w[:]...)
			tails = append(tails, a.tail...)
			tailOffset += len(a.tail)
		} else {
			out = append(out, a.word[:]...)
		}
	}
	return append(out, tails...)
}

// Pack prefixes the encoded arguments with a 4-byte function selector.
func Pack(selector [4]byte, args ...Arg) []byte {
	encoded := PackArgs(args...)
	out := make([]byte, 0, 4+len(encoded))
	out = append(out, selector[:]...)
	return append(out, encoded...)
}

// Selector derives the 4-byte selector from a canonical function signature.
func Selector(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(signature))[:4])
	return sel
}

func padLen(n int) int {
	if n%32 == 0 {
		return n
	}
	return n + 32 - n%32
}

func padRight(b []byte) []byte {
	out := make([]byte, padLen(len(b)))
	copy(out, b)
	return out
}
