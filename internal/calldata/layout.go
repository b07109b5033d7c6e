// Package calldata decodes the fixed-width ABI parameter blocks a pool logs
// for its administrative calls. Every layout is an explicit schema of named
// fields at fixed byte offsets, and payloads are length-checked before any
// field is sliced.
package calldata

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// SelectorSize is the length of the function selector prefix.
	SelectorSize = 4
	// WordSize is the width of every ABI-encoded static parameter.
	WordSize = 32

	addressPadding = WordSize - common.AddressLength
)

var (
	ErrShortPayload    = errors.New("call data too short")
	ErrDirtyPadding    = errors.New("non-zero address padding")
	ErrUnknownSelector = errors.New("unknown selector")
)

// Kind is the decoding rule applied to a field.
type Kind int

const (
	// KindUint is an unsigned big-endian integer.
	KindUint Kind = iota
	// KindAddress is a 20-byte address left-padded with 12 zero bytes.
	KindAddress
	// KindFlag is a boolean read from the last hex nibble of the word.
	KindFlag
)

func (k Kind) String() string {
	switch k {
	case KindUint:
		return "uint"
	case KindAddress:
		return "address"
	case KindFlag:
		return "flag"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field describes one parameter of a layout.
type Field struct {
	Name   string
	Offset int
	Length int
	Kind   Kind
}

// Layout is the schema of one call's payload.
type Layout struct {
	Method    string
	Signature string
	Fields    []Field
}

// Size is the minimum payload length, selector included.
func (l Layout) Size() int {
	size := SelectorSize
	for _, f := range l.Fields {
		if end := f.Offset + f.Length; end > size {
			size = end
		}
	}
	return size
}

// Selector returns the 4-byte function selector of the layout signature.
func (l Layout) Selector() [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(l.Signature))[:SelectorSize])
	return sel
}

// Decode validates the payload length and decodes every field.
func (l Layout) Decode(data []byte) (Values, error) {
	if len(data) < l.Size() {
		return Values{}, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShortPayload, l.Method, l.Size(), len(data))
	}

	values := Values{
		method:    l.Method,
		uints:     make(map[string]*big.Int),
		addresses: make(map[string]string),
		flags:     make(map[string]bool),
	}
	for _, f := range l.Fields {
		word := data[f.Offset : f.Offset+f.Length]
		switch f.Kind {
		case KindUint:
			values.uints[f.Name] = new(big.Int).SetBytes(word)
		case KindAddress:
			if len(word) != WordSize {
				return Values{}, fmt.Errorf("%s.%s: address field must be %d bytes", l.Method, f.Name, WordSize)
			}
			if !bytes.Equal(word[:addressPadding], make([]byte, addressPadding)) {
				return Values{}, fmt.Errorf("%w: %s.%s", ErrDirtyPadding, l.Method, f.Name)
			}
			values.addresses[f.Name] = strings.ToLower(common.BytesToAddress(word[addressPadding:]).Hex())
		case KindFlag:
			values.flags[f.Name] = len(word) > 0 && word[len(word)-1]&0x0f == 1
		default:
			return Values{}, fmt.Errorf("%s.%s: unsupported kind %s", l.Method, f.Name, f.Kind)
		}
	}
	return values, nil
}

// Values holds the decoded fields of one payload.
type Values struct {
	method    string
	uints     map[string]*big.Int
	addresses map[string]string
	flags     map[string]bool
}

// Uint returns a copy of the named integer field, or zero when absent.
func (v Values) Uint(name string) *big.Int {
	if value, ok := v.uints[name]; ok {
		return new(big.Int).Set(value)
	}
	return big.NewInt(0)
}

// Address returns the named address field in lower-case hex.
func (v Values) Address(name string) string {
	return v.addresses[name]
}

// Flag returns the named boolean field.
func (v Values) Flag(name string) bool {
	return v.flags[name]
}

func wordOffset(index int) int {
	return SelectorSize + index*WordSize
}
