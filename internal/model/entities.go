package model

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ZeroAddress is the mint source and burn destination of share transfers.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// FactoryID is the key of the single PoolFactory record.
const FactoryID = "1"

// Transaction value row types.
const (
	FlowIn  = "in"
	FlowOut = "out"
)

// Pool is the aggregate state of one AMM pool contract.
type Pool struct {
	ID               string          `json:"id"`
	Controller       string          `json:"controller"`
	PublicSwap       bool            `json:"publicSwap"`
	Finalized        bool            `json:"finalized"`
	Active           bool            `json:"active"`
	Symbol           string          `json:"symbol,omitempty"`
	SwapFee          decimal.Decimal `json:"swapFee"`
	TotalWeight      decimal.Decimal `json:"totalWeight"`
	TotalShares      decimal.Decimal `json:"totalShares"`
	TotalSwapVolume  decimal.Decimal `json:"totalSwapVolume"`
	TotalSwapFee     decimal.Decimal `json:"totalSwapFee"`
	Liquidity        decimal.Decimal `json:"liquidity"`
	DatatokenAddress string          `json:"datatokenAddress"`
	DatatokenReserve decimal.Decimal `json:"datatokenReserve"`
	OceanReserve     decimal.Decimal `json:"oceanReserve"`
	SpotPrice        decimal.Decimal `json:"spotPrice"`
	TokensList       []string        `json:"tokensList"`
	TokensCount      int             `json:"tokensCount"`
	JoinsCount       int64           `json:"joinsCount"`
	ExitsCount       int64           `json:"exitsCount"`
	SwapsCount       int64           `json:"swapsCount"`
	HoldersCount     int64           `json:"holdersCount"`
	CreatedAt        uint64          `json:"createdAt"`
	Tx               string          `json:"tx"`
}

// HasToken reports whether token is already bound to the pool.
func (p Pool) HasToken(token string) bool {
	for _, t := range p.TokensList {
		if t == token {
			return true
		}
	}
	return false
}

// PoolToken is one token bound into a pool.
type PoolToken struct {
	ID           string          `json:"id"`
	PoolID       string          `json:"poolId"`
	TokenID      string          `json:"tokenId,omitempty"`
	TokenAddress string          `json:"tokenAddress"`
	Balance      decimal.Decimal `json:"balance"`
	DenormWeight decimal.Decimal `json:"denormWeight"`
}

// PoolShare is one holder's LP share balance.
type PoolShare struct {
	ID          string          `json:"id"`
	PoolID      string          `json:"poolId"`
	UserAddress string          `json:"userAddress"`
	Balance     decimal.Decimal `json:"balance"`
}

// PoolTransaction is the ledger entry of one pool-affecting transaction.
type PoolTransaction struct {
	ID                   string          `json:"id"`
	PoolAddress          string          `json:"poolAddress"`
	UserAddress          string          `json:"userAddress"`
	SharesTransferAmount decimal.Decimal `json:"sharesTransferAmount"`
	SharesBalance        decimal.Decimal `json:"sharesBalance"`
	SpotPrice            decimal.Decimal `json:"spotPrice"`
	Tx                   string          `json:"tx"`
	Event                string          `json:"event"`
	Block                uint64          `json:"block"`
	Timestamp            uint64          `json:"timestamp"`
	GasUsed              decimal.Decimal `json:"gasUsed"`
	GasPrice             decimal.Decimal `json:"gasPrice"`
}

// PoolTransactionTokenValues is one token movement inside a PoolTransaction.
type PoolTransactionTokenValues struct {
	ID           string          `json:"id"`
	TxID         string          `json:"txId"`
	PoolToken    string          `json:"poolToken"`
	PoolAddress  string          `json:"poolAddress"`
	UserAddress  string          `json:"userAddress"`
	TokenAddress string          `json:"tokenAddress"`
	Value        decimal.Decimal `json:"value"`
	TokenReserve decimal.Decimal `json:"tokenReserve"`
	FeeValue     decimal.Decimal `json:"feeValue"`
	Type         string          `json:"type"`
}

// Swap records a single swap log.
type Swap struct {
	ID                  string          `json:"id"`
	Caller              string          `json:"caller"`
	TokenIn             string          `json:"tokenIn"`
	TokenInSym          string          `json:"tokenInSym"`
	TokenOut            string          `json:"tokenOut"`
	TokenOutSym         string          `json:"tokenOutSym"`
	TokenAmountIn       decimal.Decimal `json:"tokenAmountIn"`
	TokenAmountOut      decimal.Decimal `json:"tokenAmountOut"`
	PoolAddress         string          `json:"poolAddress"`
	UserAddress         string          `json:"userAddress"`
	PoolTotalSwapVolume decimal.Decimal `json:"poolTotalSwapVolume"`
	PoolTotalSwapFee    decimal.Decimal `json:"poolTotalSwapFee"`
	PoolLiquidity       decimal.Decimal `json:"poolLiquidity"`
	Value               decimal.Decimal `json:"value"`
	FeeValue            decimal.Decimal `json:"feeValue"`
	Timestamp           uint64          `json:"timestamp"`
}

// TokenPrice is externally maintained price data for a token.
type TokenPrice struct {
	ID    string          `json:"id"`
	Price decimal.Decimal `json:"price"`
}

// Datatoken is externally populated metadata for a managed data asset.
type Datatoken struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Decimals int    `json:"decimals"`
}

// TokenBalance is a holder's balance of a datatoken outside any pool.
type TokenBalance struct {
	ID          string          `json:"id"`
	UserAddress string          `json:"userAddress"`
	DatatokenID string          `json:"datatokenId"`
	Balance     decimal.Decimal `json:"balance"`
}

// TokenTransaction is one datatoken transfer log.
type TokenTransaction struct {
	ID               string          `json:"id"`
	Event            string          `json:"event"`
	DatatokenAddress string          `json:"datatokenAddress"`
	UserAddress      string          `json:"userAddress"`
	GasUsed          decimal.Decimal `json:"gasUsed"`
	GasPrice         decimal.Decimal `json:"gasPrice"`
	Tx               string          `json:"tx"`
	Timestamp        uint64          `json:"timestamp"`
	Block            uint64          `json:"block"`
}

// User records that an address has been seen.
type User struct {
	ID string `json:"id"`
}

// PoolFactory holds protocol-wide counters.
type PoolFactory struct {
	ID                 string          `json:"id"`
	PoolCount          int64           `json:"poolCount"`
	FinalizedPoolCount int64           `json:"finalizedPoolCount"`
	TotalSwapVolume    decimal.Decimal `json:"totalSwapVolume"`
	TotalSwapFee       decimal.Decimal `json:"totalSwapFee"`
}

// PoolTokenID keys a PoolToken.
func PoolTokenID(pool, token string) string { return joinID(pool, token) }

// PoolShareID keys a PoolShare.
func PoolShareID(pool, user string) string { return joinID(pool, user) }

// TokenValuesID keys a PoolTransactionTokenValues row.
func TokenValuesID(txID, token string) string { return joinID(txID, token) }

// TokenBalanceID keys a TokenBalance.
func TokenBalanceID(datatoken, user string) string { return joinID(datatoken, user) }

// LogID keys records that are unique per log rather than per transaction.
func LogID(txHash string, logIndex uint64) string {
	return joinID(txHash, strconv.FormatUint(logIndex, 10))
}

// NormalizeAddress lower-cases an address so it can be used as a key.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func joinID(a, b string) string {
	return a + "-" + b
}
