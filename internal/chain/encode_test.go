package chain

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector(t *testing.T) {
	// well-known selector for the ERC-1271 acceptance check
	sel := Selector("isValidSignature(bytes32,bytes)")
	assert.Equal(t, "1626ba7e", hex.EncodeToString(sel[:]))
}

func TestPack_StaticArgs(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	out := Pack(Selector("f(address,uint64)"), AddressWord(addr), Uint64Word(7))

	require.Len(t, out, 4+64)
	assert.Equal(t, addr.Bytes(), out[4+12:4+32])
	assert.Equal(t, byte(7), out[4+63])
}

func TestPack_DynamicBytesLayout(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	out := PackArgs(Uint64Word(1), DynamicBytes(payload))

	// head: word 0 = 1, word 1 = offset 0x40; tail: length + padded content
	require.Len(t, out, 32*4)
	assert.Equal(t, byte(0x40), out[63])
	assert.Equal(t, byte(len(payload)), out[95])
	assert.Equal(t, payload, out[96:100])
	assert.Equal(t, make([]byte, 28), out[100:128])
}

func TestPack_EmptyDynamicBytes(t *testing.T) {
	out := PackArgs(DynamicBytes(nil))
	// offset word + zero length word, no content
	require.Len(t, out, 64)
	assert.Equal(t, byte(0x20), out[31])
	assert.Equal(t, make([]byte, 32), out[32:64])
}

func TestBytes4Word_LeftAligned(t *testing.T) {
	out := PackArgs(Bytes4Word([4]byte{0x11, 0x22, 0x33, 0x44}))
	require.Len(t, out, 32)
	assert.Equal(t, []byte{0x11, 0x22, 0x33, 0x44}, out[:4])
	assert.Equal(t, make([]byte, 28), out[4:])
}

func TestDecoder_RoundTrip(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	payload := []byte("hello world, this payload exceeds one word")

	encoded := PackArgs(AddressWord(addr), Uint64Word(42), DynamicBytes(payload))
	dec := NewDecoder(encoded)

	gotAddr, err := dec.Address(0)
	require.NoError(t, err)
	assert.Equal(t, addr, gotAddr)

	gotNum, err := dec.Uint64(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), gotNum)

	off, err := dec.Offset(2)
	require.NoError(t, err)
	gotPayload, err := dec.BytesAt(off)
	require.NoError(t, err)
	assert.Equal(t, payload, gotPayload)
}

func TestDecoder_HashArray(t *testing.T) {
	h1 := common.HexToHash("0x01")
	h2 := common.HexToHash("0x02")

	tail := make([]byte, 0, 96)
	tail = append(tail, PackArgs(Uint64Word(2))...)
	tail = append(tail, h1.Bytes()...)
	tail = append(tail, h2.Bytes()...)
	encoded := PackArgs(DynamicTail(tail))

	dec := NewDecoder(encoded)
	off, err := dec.Offset(0)
	require.NoError(t, err)
	hashes, err := dec.HashArrayAt(off)
	require.NoError(t, err)
	assert.Equal(t, []common.Hash{h1, h2}, hashes)
}

func TestDecoder_OutOfRange(t *testing.T) {
	dec := NewDecoder([]byte{0x01, 0x02})

	_, err := dec.Word(0)
	assert.Error(t, err)

	_, err = dec.BytesAt(64)
	assert.Error(t, err)
}
