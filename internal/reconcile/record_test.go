package reconcile

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"poolLedger/internal/calldata"
	"poolLedger/internal/model"
)

func typedRecord(t *testing.T, ev model.TypedEvent) model.TypedEventRecord {
	t.Helper()
	line, err := json.Marshal(ev)
	require.NoError(t, err)
	var record model.TypedEventRecord
	require.NoError(t, json.Unmarshal(line, &record))
	return record
}

func TestFromRecordLogCall(t *testing.T) {
	call := rebindCall(testTokenC, "1", "2")
	sel := calldata.Rebind.Selector()
	record := typedRecord(t, model.TypedEvent{
		BlockNumber: 10,
		TxHash:      "0xABCD",
		TxIndex:     2,
		LogIndex:    7,
		Address:     "0x1111111111111111111111111111111111111111",
		EventName:   model.EventLogCall,
		TxFrom:      "0x5E5E5E5E5E5E5E5E5E5E5E5E5E5E5E5E5E5E5E5E",
		GasUsed:     "52000",
		GasPrice:    "3000000000",
		Decoded: model.LogCallEventData{
			Sig:    hexutil.Encode(sel[:]),
			Caller: alice,
			Data:   hexutil.Encode(call.Data),
		},
	})

	ev, err := FromRecord(record)
	require.NoError(t, err)
	require.Equal(t, "0xabcd", ev.Meta.TxHash)
	require.Equal(t, sender, ev.Meta.From)
	require.Equal(t, model.Position{Block: 10, TxIndex: 2, LogIndex: 7}, ev.Meta.Position())
	requireDecimal(t, "52000", ev.Meta.GasUsed)

	got, ok := ev.Payload.(LogCall)
	require.True(t, ok)
	require.Equal(t, sel, got.Sig)
	require.Equal(t, call.Data, got.Data)
}

func TestFromRecordSwap(t *testing.T) {
	record := typedRecord(t, model.TypedEvent{
		EventName: model.EventLogSwap,
		Decoded: model.SwapEventData{
			Caller:         alice,
			TokenIn:        ocean,
			TokenOut:       testDT,
			TokenAmountIn:  "1000000000000000000",
			TokenAmountOut: "250",
		},
	})

	ev, err := FromRecord(record)
	require.NoError(t, err)
	swap, ok := ev.Payload.(Swap)
	require.True(t, ok)
	require.Equal(t, "1000000000000000000", swap.AmountIn.String())
	require.Equal(t, int64(250), swap.AmountOut.Int64())
	require.True(t, ev.Meta.GasUsed.IsZero())
}

func TestFromRecordMalformed(t *testing.T) {
	bad := typedRecord(t, model.TypedEvent{
		EventName: model.EventLogJoin,
		Decoded:   model.JoinEventData{TokenIn: ocean, TokenAmountIn: "12abc"},
	})
	_, err := FromRecord(bad)
	require.True(t, IsEventError(err), "got %v", err)

	negative := typedRecord(t, model.TypedEvent{
		EventName: model.EventTransfer,
		Decoded:   model.TransferEventData{From: alice, To: bob, Value: "-1"},
	})
	_, err = FromRecord(negative)
	require.True(t, IsEventError(err), "got %v", err)

	gas := typedRecord(t, model.TypedEvent{
		EventName: model.EventNewPool,
		GasPrice:  "lots",
		Decoded:   model.NewPoolEventData{Pool: testPool},
	})
	_, err = FromRecord(gas)
	require.True(t, IsEventError(err), "got %v", err)

	unknown := typedRecord(t, model.TypedEvent{EventName: "Approval", Decoded: map[string]string{}})
	_, err = FromRecord(unknown)
	require.True(t, errors.Is(err, ErrUnknownEvent), "got %v", err)
}
