package reconcile

import (
	"math/big"

	"github.com/shopspring/decimal"

	"poolLedger/internal/model"
)

// Meta is the log and transaction context shared by every event.
type Meta struct {
	Address   string
	TxHash    string
	Block     uint64
	TxIndex   uint64
	LogIndex  uint64
	Timestamp uint64
	From      string
	GasUsed   decimal.Decimal
	GasPrice  decimal.Decimal
}

// Position returns the chain position of the event.
func (m Meta) Position() model.Position {
	return model.Position{Block: m.Block, TxIndex: m.TxIndex, LogIndex: m.LogIndex}
}

// Event is one decoded log ready to apply.
type Event struct {
	Meta    Meta
	Payload Payload
}

// Payload is implemented by the event kinds the reconciler handles.
type Payload interface {
	EventName() string
}

// LogCall is an anonymous pool call log: the selector, the caller and the
// full call data including the selector.
type LogCall struct {
	Sig    [4]byte
	Caller string
	Data   []byte
}

// Join is a single-token liquidity add.
type Join struct {
	Caller   string
	TokenIn  string
	AmountIn *big.Int
}

// Exit is a single-token liquidity removal.
type Exit struct {
	Caller    string
	TokenOut  string
	AmountOut *big.Int
}

// Swap is a trade against the pool.
type Swap struct {
	Caller    string
	TokenIn   string
	TokenOut  string
	AmountIn  *big.Int
	AmountOut *big.Int
}

// Transfer is an ERC20 transfer of pool shares or of a datatoken.
type Transfer struct {
	From  string
	To    string
	Value *big.Int
}

// NewPool is a factory registration of a pool contract.
type NewPool struct {
	Pool         string
	RegisteredBy string
}

func (LogCall) EventName() string { return model.EventLogCall }
func (Join) EventName() string { return model.EventLogJoin }
func (Exit) EventName() string { return model.EventLogExit }
func (Swap) EventName() string { return model.EventLogSwap }
func (Transfer) EventName() string { return model.EventTransfer }
func (NewPool) EventName() string { return model.EventNewPool }
