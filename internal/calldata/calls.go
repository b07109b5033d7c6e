package calldata

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Pool call layouts.
var (
	SetSwapFee = Layout{
		Method:    "setSwapFee",
		Signature: "setSwapFee(uint256)",
		Fields: []Field{
			{Name: "swapFee", Offset: wordOffset(0), Length: WordSize, Kind: KindUint},
		},
	}
	SetController = Layout{
		Method:    "setController",
		Signature: "setController(address)",
		Fields: []Field{
			{Name: "manager", Offset: wordOffset(0), Length: WordSize, Kind: KindAddress},
		},
	}
	SetPublicSwap = Layout{
		Method:    "setPublicSwap",
		Signature: "setPublicSwap(bool)",
		Fields: []Field{
			{Name: "public", Offset: wordOffset(0), Length: WordSize, Kind: KindFlag},
		},
	}
	Finalize = Layout{
		Method:    "finalize",
		Signature: "finalize()",
	}
	Rebind = Layout{
		Method:    "rebind",
		Signature: "rebind(address,uint256,uint256)",
		Fields:    bindFields,
	}
	Bind = Layout{
		Method:    "bind",
		Signature: "bind(address,uint256,uint256)",
		Fields:    bindFields,
	}
	Setup = Layout{
		Method:    "setup",
		Signature: "setup(address,uint256,uint256,address,uint256,uint256,uint256)",
		Fields: []Field{
			{Name: "dataTokenAddress", Offset: wordOffset(0), Length: WordSize, Kind: KindAddress},
			{Name: "dataTokenAmount", Offset: wordOffset(1), Length: WordSize, Kind: KindUint},
			{Name: "dataTokenWeight", Offset: wordOffset(2), Length: WordSize, Kind: KindUint},
			{Name: "baseTokenAddress", Offset: wordOffset(3), Length: WordSize, Kind: KindAddress},
			{Name: "baseTokenAmount", Offset: wordOffset(4), Length: WordSize, Kind: KindUint},
			{Name: "baseTokenWeight", Offset: wordOffset(5), Length: WordSize, Kind: KindUint},
			{Name: "swapFee", Offset: wordOffset(6), Length: WordSize, Kind: KindUint},
		},
	}

	bindFields = []Field{
		{Name: "token", Offset: wordOffset(0), Length: WordSize, Kind: KindAddress},
		{Name: "balance", Offset: wordOffset(1), Length: WordSize, Kind: KindUint},
		{Name: "denorm", Offset: wordOffset(2), Length: WordSize, Kind: KindUint},
	}
)

var (
	layouts    = []Layout{SetSwapFee, SetController, SetPublicSwap, Finalize, Rebind, Bind, Setup}
	bySelector = indexLayouts(layouts)
)

func indexLayouts(ls []Layout) map[[4]byte]Layout {
	out := make(map[[4]byte]Layout, len(ls))
	for _, l := range ls {
		out[l.Selector()] = l
	}
	return out
}

// Lookup returns the layout registered for a selector.
func Lookup(selector [4]byte) (Layout, bool) {
	l, ok := bySelector[selector]
	return l, ok
}

// LayoutFor is Lookup with an ErrUnknownSelector error for unregistered selectors.
func LayoutFor(selector [4]byte) (Layout, error) {
	l, ok := Lookup(selector)
	if !ok {
		return Layout{}, fmt.Errorf("%w: %s", ErrUnknownSelector, hexutil.Encode(selector[:]))
	}
	return l, nil
}

// Layouts returns every known pool call layout.
func Layouts() []Layout {
	out := make([]Layout, len(layouts))
	copy(out, layouts)
	return out
}

// ParseSelector parses a 0x-prefixed 4-byte selector.
func ParseSelector(input string) ([4]byte, error) {
	var sel [4]byte
	raw, err := hexutil.Decode(strings.TrimSpace(input))
	if err != nil {
		return sel, fmt.Errorf("invalid selector %q: %w", input, err)
	}
	if len(raw) < SelectorSize {
		return sel, fmt.Errorf("invalid selector length %d", len(raw))
	}
	copy(sel[:], raw[:SelectorSize])
	return sel, nil
}

// TokenBinding is one token's balance and denormalized weight as raw integers.
type TokenBinding struct {
	Token        string
	Balance      *big.Int
	DenormWeight *big.Int
}

// SetupCall is the decoded setup payload.
type SetupCall struct {
	Datatoken TokenBinding
	BaseToken TokenBinding
	SwapFee   *big.Int
}

// DecodeSetup decodes the packed setup payload.
func DecodeSetup(data []byte) (SetupCall, error) {
	values, err := Setup.Decode(data)
	if err != nil {
		return SetupCall{}, err
	}
	return SetupCall{
		Datatoken: TokenBinding{
			Token:        values.Address("dataTokenAddress"),
			Balance:      values.Uint("dataTokenAmount"),
			DenormWeight: values.Uint("dataTokenWeight"),
		},
		BaseToken: TokenBinding{
			Token:        values.Address("baseTokenAddress"),
			Balance:      values.Uint("baseTokenAmount"),
			DenormWeight: values.Uint("baseTokenWeight"),
		},
		SwapFee: values.Uint("swapFee"),
	}, nil
}

// DecodeRebind decodes a bind or rebind payload.
func DecodeRebind(data []byte) (TokenBinding, error) {
	values, err := Rebind.Decode(data)
	if err != nil {
		return TokenBinding{}, err
	}
	return TokenBinding{
		Token:        values.Address("token"),
		Balance:      values.Uint("balance"),
		DenormWeight: values.Uint("denorm"),
	}, nil
}

// DecodeSwapFee decodes a setSwapFee payload into the raw 18-decimal fee.
func DecodeSwapFee(data []byte) (*big.Int, error) {
	values, err := SetSwapFee.Decode(data)
	if err != nil {
		return nil, err
	}
	return values.Uint("swapFee"), nil
}

// DecodeController decodes a setController payload.
func DecodeController(data []byte) (string, error) {
	values, err := SetController.Decode(data)
	if err != nil {
		return "", err
	}
	return values.Address("manager"), nil
}

// DecodePublicSwap decodes a setPublicSwap payload.
func DecodePublicSwap(data []byte) (bool, error) {
	values, err := SetPublicSwap.Decode(data)
	if err != nil {
		return false, err
	}
	return values.Flag("public"), nil
}
