package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Datatoken metadata calls. Some tokens return bytes32 text instead of string.
const erc20ABIStringJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

const erc20ABIBytes32JSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

var (
	erc20String      abi.ABI
	erc20StringOnce  sync.Once
	erc20StringErr   error
	erc20Bytes32     abi.ABI
	erc20Bytes32Once sync.Once
	erc20Bytes32Err  error
)

func erc20ABIStringInstance() (abi.ABI, error) {
	erc20StringOnce.Do(func() {
		erc20String, erc20StringErr = abi.JSON(strings.NewReader(erc20ABIStringJSON))
	})
	return erc20String, erc20StringErr
}

func erc20ABIBytes32Instance() (abi.ABI, error) {
	erc20Bytes32Once.Do(func() {
		erc20Bytes32, erc20Bytes32Err = abi.JSON(strings.NewReader(erc20ABIBytes32JSON))
	})
	return erc20Bytes32, erc20Bytes32Err
}
