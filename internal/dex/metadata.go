package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"poolLedger/internal/model"
)

// ContractCaller performs read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TokenMetaCache caches datatoken metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.Datatoken
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.Datatoken)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.Datatoken, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.Datatoken) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// Datatoken returns cached metadata or fetches it. Failed fetches are not cached.
func (c *TokenMetaCache) Datatoken(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) (model.Datatoken, error) {
	if meta, ok := c.Get(token); ok {
		return meta, nil
	}
	meta, err := FetchDatatoken(ctx, caller, token, logger)
	if err != nil {
		return meta, err
	}
	c.Set(token, meta)
	return meta, nil
}

// FetchDatatoken loads decimals, symbol and name via ERC20 calls. Only
// decimals is required; symbol and name fall back to bytes32 encodings.
func FetchDatatoken(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) (model.Datatoken, error) {
	meta := model.Datatoken{ID: model.NormalizeAddress(token.Hex())}
	if caller == nil {
		return meta, fmt.Errorf("contract caller is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	call := func(method string, parsed abi.ABI) ([]interface{}, error) {
		data, err := parsed.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, resp)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", method, err)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("unpack %s: no values", method)
		}
		return values, nil
	}

	values, err := call("decimals", stringABI)
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = int(decimals)

	meta.Symbol = textField(call, "symbol", stringABI, bytes32ABI, token, logger)
	meta.Name = textField(call, "name", stringABI, bytes32ABI, token, logger)
	return meta, nil
}

func textField(
	call func(string, abi.ABI) ([]interface{}, error),
	method string,
	stringABI, bytes32ABI abi.ABI,
	token common.Address,
	logger *zap.Logger,
) string {
	if values, err := call(method, stringABI); err == nil {
		if text, ok := values[0].(string); ok {
			return text
		}
	}
	values, err := call(method, bytes32ABI)
	if err != nil {
		logger.Debug("metadata call failed", zap.String("token", token.Hex()), zap.String("method", method), zap.Error(err))
		return ""
	}
	text, _ := bytes32ToString(values[0])
	return text
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
