package reconcile

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"poolLedger/internal/amount"
	"poolLedger/internal/calldata"
	"poolLedger/internal/model"
)

// FromRecord converts a typed event line into an Event. Malformed payloads are
// reported as EventError.
func FromRecord(record model.TypedEventRecord) (Event, error) {
	meta := Meta{
		Address:   model.NormalizeAddress(record.Address),
		TxHash:    model.NormalizeAddress(record.TxHash),
		Block:     record.BlockNumber,
		TxIndex:   record.TxIndex,
		LogIndex:  record.LogIndex,
		Timestamp: record.Timestamp,
		From:      model.NormalizeAddress(record.TxFrom),
	}
	var err error
	if meta.GasUsed, err = amount.ParseDecimal(record.GasUsed); err != nil {
		return Event{}, eventError(record.EventName, fmt.Errorf("gas used: %w", err))
	}
	if meta.GasPrice, err = amount.ParseDecimal(record.GasPrice); err != nil {
		return Event{}, eventError(record.EventName, fmt.Errorf("gas price: %w", err))
	}

	payload, err := decodePayload(record.EventName, record.Decoded)
	if err != nil {
		return Event{}, eventError(record.EventName, err)
	}
	return Event{Meta: meta, Payload: payload}, nil
}

func decodePayload(name string, raw json.RawMessage) (Payload, error) {
	switch name {
	case model.EventLogCall:
		var data model.LogCallEventData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
		sig, err := calldata.ParseSelector(data.Sig)
		if err != nil {
			return nil, err
		}
		callData, err := hexutil.Decode(data.Data)
		if err != nil {
			return nil, fmt.Errorf("call data: %w", err)
		}
		return LogCall{Sig: sig, Caller: model.NormalizeAddress(data.Caller), Data: callData}, nil

	case model.EventLogJoin:
		var data model.JoinEventData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
		amountIn, err := parseAmount("token_amount_in", data.TokenAmountIn)
		if err != nil {
			return nil, err
		}
		return Join{Caller: data.Caller, TokenIn: data.TokenIn, AmountIn: amountIn}, nil

	case model.EventLogExit:
		var data model.ExitEventData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
		amountOut, err := parseAmount("token_amount_out", data.TokenAmountOut)
		if err != nil {
			return nil, err
		}
		return Exit{Caller: data.Caller, TokenOut: data.TokenOut, AmountOut: amountOut}, nil

	case model.EventLogSwap:
		var data model.SwapEventData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
		amountIn, err := parseAmount("token_amount_in", data.TokenAmountIn)
		if err != nil {
			return nil, err
		}
		amountOut, err := parseAmount("token_amount_out", data.TokenAmountOut)
		if err != nil {
			return nil, err
		}
		return Swap{
			Caller:    data.Caller,
			TokenIn:   data.TokenIn,
			TokenOut:  data.TokenOut,
			AmountIn:  amountIn,
			AmountOut: amountOut,
		}, nil

	case model.EventTransfer:
		var data model.TransferEventData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
		value, err := parseAmount("value", data.Value)
		if err != nil {
			return nil, err
		}
		return Transfer{From: data.From, To: data.To, Value: value}, nil

	case model.EventNewPool:
		var data model.NewPoolEventData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
		if data.Pool == "" {
			return nil, fmt.Errorf("missing pool address")
		}
		return NewPool{Pool: data.Pool, RegisteredBy: data.RegisteredBy}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
}

func parseAmount(field, value string) (*big.Int, error) {
	v, err := amount.ParseBigInt(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%s: negative amount %s", field, value)
	}
	return v, nil
}
