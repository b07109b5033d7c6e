package model

// Pool and datatoken event names as emitted on chain.
const (
	EventLogCall  = "LOG_CALL"
	EventLogJoin  = "LOG_JOIN"
	EventLogExit  = "LOG_EXIT"
	EventLogSwap  = "LOG_SWAP"
	EventTransfer = "Transfer"
	EventNewPool  = "BPoolRegistered"
)

// LogCallEventData is the decoded anonymous LOG_CALL payload.
type LogCallEventData struct {
	Sig    string `json:"sig"`
	Caller string `json:"caller"`
	Data   string `json:"data"`
}

// JoinEventData is the decoded LOG_JOIN payload.
type JoinEventData struct {
	Caller        string `json:"caller"`
	TokenIn       string `json:"token_in"`
	TokenAmountIn string `json:"token_amount_in"`
}

// ExitEventData is the decoded LOG_EXIT payload.
type ExitEventData struct {
	Caller         string `json:"caller"`
	TokenOut       string `json:"token_out"`
	TokenAmountOut string `json:"token_amount_out"`
}

// SwapEventData is the decoded LOG_SWAP payload.
type SwapEventData struct {
	Caller         string `json:"caller"`
	TokenIn        string `json:"token_in"`
	TokenOut       string `json:"token_out"`
	TokenAmountIn  string `json:"token_amount_in"`
	TokenAmountOut string `json:"token_amount_out"`
}

// TransferEventData is the decoded ERC20 Transfer payload.
type TransferEventData struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

// NewPoolEventData is the decoded factory registration payload.
type NewPoolEventData struct {
	Pool         string `json:"pool"`
	RegisteredBy string `json:"registered_by"`
}
