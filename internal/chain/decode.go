package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Decoder reads ABI-encoded return data word by word, following offsets into
// dynamic regions. Indexes are word positions relative to the decoder start.
type Decoder struct {
	data []byte
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

func (d *Decoder) Len() int {
	return len(d.data)
}

func (d *Decoder) Word(i int) ([32]byte, error) {
	var w [32]byte
	start := 32 * i
	if start+32 > len(d.data) {
		return w, fmt.Errorf("abi decode: word %d out of range (%d bytes)", i, len(d.data))
	}
	copy(w[:], d.data[start:start+32])
	return w, nil
}

func (d *Decoder) Uint64(i int) (uint64, error) {
	w, err := d.Word(i)
	if err != nil {
		return 0, err
	}
	v := new(big.Int).SetBytes(w[:])
	if !v.IsUint64() {
		return 0, fmt.Errorf("abi decode: word %d overflows uint64", i)
	}
	return v.Uint64(), nil
}

func (d *Decoder) Uint8(i int) (uint8, error) {
	v, err := d.Uint64(i)
	if err != nil {
		return 0, err
	}
	if v > 0xff {
		return 0, fmt.Errorf("abi decode: word %d overflows uint8", i)
	}
	return uint8(v), nil
}

func (d *Decoder) Address(i int) (common.Address, error) {
	w, err := d.Word(i)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(w[12:]), nil
}

func (d *Decoder) Hash(i int) (common.Hash, error) {
	w, err := d.Word(i)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(w[:]), nil
}

func (d *Decoder) Bytes4(i int) ([4]byte, error) {
	var b [4]byte
	w, err := d.Word(i)
	if err != nil {
		return b, err
	}
	copy(b[:], w[:4])
	return b, nil
}

// Offset reads word i as a byte offset into the dynamic region.
func (d *Decoder) Offset(i int) (int, error) {
	v, err := d.Uint64(i)
	if err != nil {
		return 0, err
	}
	off := int(v)
	if off < 0 || off >= len(d.data) {
		return 0, fmt.Errorf("abi decode: offset %d out of range (%d bytes)", off, len(d.data))
	}
	return off, nil
}

// At returns a nested decoder starting at a byte offset, for tuples whose
// inner offsets are relative to the tuple start.
func (d *Decoder) At(off int) (*Decoder, error) {
	if off < 0 || off > len(d.data) {
		return nil, fmt.Errorf("abi decode: nested offset %d out of range (%d bytes)", off, len(d.data))
	}
	return &Decoder{data: d.data[off:]}, nil
}

// BytesAt reads a length-prefixed dynamic bytes value at a byte offset.
func (d *Decoder) BytesAt(off int) ([]byte, error) {
	nested, err := d.At(off)
	if err != nil {
		return nil, err
	}
	n, err := nested.Uint64(0)
	if err != nil {
		return nil, err
	}
	end := 32 + int(n)
	if end > len(nested.data) {
		return nil, fmt.Errorf("abi decode: bytes length %d exceeds data", n)
	}
	out := make([]byte, n)
	copy(out, nested.data[32:end])
	return out, nil
}

// StringAt reads a length-prefixed dynamic string at a byte offset.
func (d *Decoder) StringAt(off int) (string, error) {
	b, err := d.BytesAt(off)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// HashArrayAt reads a bytes32[] at a byte offset.
func (d *Decoder) HashArrayAt(off int) ([]common.Hash, error) {
	nested, err := d.At(off)
	if err != nil {
		return nil, err
	}
	n, err := nested.Uint64(0)
	if err != nil {
		return nil, err
	}
	out := make([]common.Hash, 0, n)
	for i := 0; i < int(n); i++ {
		h, err := nested.Hash(1 + i)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// TagString renders a bytes32 response tag as a trimmed string.
func TagString(w [32]byte) string {
	return strings.TrimRight(string(w[:]), "\x00")
}
