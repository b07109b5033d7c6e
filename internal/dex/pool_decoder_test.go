package dex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"poolLedger/internal/calldata"
	"poolLedger/internal/model"
)

var (
	testPool   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testCaller = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testTokenA = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testTokenB = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func TestPoolDecoderSwap(t *testing.T) {
	poolABI, err := PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewPoolDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	event := poolABI.Events[model.EventLogSwap]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(1000), big.NewInt(2000))
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	record := buildLogRecord(testPool, event.ID, data, []common.Hash{
		topicFromAddress(testCaller),
		topicFromAddress(testTokenA),
		topicFromAddress(testTokenB),
	})
	if !decoder.CanDecode(record.Topics[0]) {
		t.Fatalf("swap topic not recognised")
	}

	typed, err := decoder.Decode(record)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	if typed.EventName != model.EventLogSwap {
		t.Fatalf("event name mismatch: %s", typed.EventName)
	}

	swap, ok := typed.Decoded.(model.SwapEventData)
	if !ok {
		t.Fatalf("decoded type mismatch")
	}
	if swap.TokenAmountIn != "1000" || swap.TokenAmountOut != "2000" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.Caller != model.NormalizeAddress(testCaller.Hex()) ||
		swap.TokenIn != model.NormalizeAddress(testTokenA.Hex()) ||
		swap.TokenOut != model.NormalizeAddress(testTokenB.Hex()) {
		t.Fatalf("address mismatch: %+v", swap)
	}
	if typed.TxIndex != record.TxIndex || typed.TxFrom != record.TxFrom {
		t.Fatalf("tx context not carried: %+v", typed)
	}
}

func TestPoolDecoderJoinExitTransfer(t *testing.T) {
	poolABI, err := PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewPoolDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	amount := func(v int64) []byte {
		data, err := abi.Arguments{{Type: mustType(t, "uint256")}}.Pack(big.NewInt(v))
		if err != nil {
			t.Fatalf("pack amount: %v", err)
		}
		return data
	}

	join, err := decoder.Decode(buildLogRecord(testPool, poolABI.Events[model.EventLogJoin].ID, amount(5), []common.Hash{
		topicFromAddress(testCaller),
		topicFromAddress(testTokenA),
	}))
	if err != nil {
		t.Fatalf("decode join: %v", err)
	}
	if got := join.Decoded.(model.JoinEventData); got.TokenAmountIn != "5" || got.TokenIn != model.NormalizeAddress(testTokenA.Hex()) {
		t.Fatalf("join mismatch: %+v", got)
	}

	exit, err := decoder.Decode(buildLogRecord(testPool, poolABI.Events[model.EventLogExit].ID, amount(7), []common.Hash{
		topicFromAddress(testCaller),
		topicFromAddress(testTokenB),
	}))
	if err != nil {
		t.Fatalf("decode exit: %v", err)
	}
	if got := exit.Decoded.(model.ExitEventData); got.TokenAmountOut != "7" || got.TokenOut != model.NormalizeAddress(testTokenB.Hex()) {
		t.Fatalf("exit mismatch: %+v", got)
	}

	transfer, err := decoder.Decode(buildLogRecord(testPool, poolABI.Events[model.EventTransfer].ID, amount(9), []common.Hash{
		{},
		topicFromAddress(testCaller),
	}))
	if err != nil {
		t.Fatalf("decode transfer: %v", err)
	}
	got := transfer.Decoded.(model.TransferEventData)
	if got.From != model.ZeroAddress || got.To != model.NormalizeAddress(testCaller.Hex()) || got.Value != "9" {
		t.Fatalf("transfer mismatch: %+v", got)
	}
}

func TestPoolDecoderNewPool(t *testing.T) {
	poolABI, err := PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewPoolDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	factory := common.HexToAddress("0xfafafafafafafafafafafafafafafafafafafafa")
	typed, err := decoder.Decode(buildLogRecord(factory, poolABI.Events[model.EventNewPool].ID, nil, []common.Hash{
		topicFromAddress(testPool),
		topicFromAddress(testCaller),
	}))
	if err != nil {
		t.Fatalf("decode registration: %v", err)
	}
	got := typed.Decoded.(model.NewPoolEventData)
	if got.Pool != model.NormalizeAddress(testPool.Hex()) || got.RegisteredBy != model.NormalizeAddress(testCaller.Hex()) {
		t.Fatalf("registration mismatch: %+v", got)
	}
}

func TestPoolDecoderLogCall(t *testing.T) {
	poolABI, err := PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewPoolDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	args := abi.Arguments{
		{Type: mustType(t, "address")},
		{Type: mustType(t, "uint256")},
		{Type: mustType(t, "uint256")},
		{Type: mustType(t, "address")},
		{Type: mustType(t, "uint256")},
		{Type: mustType(t, "uint256")},
		{Type: mustType(t, "uint256")},
	}
	params, err := args.Pack(
		testTokenA, big.NewInt(10), big.NewInt(5),
		testTokenB, big.NewInt(30), big.NewInt(5),
		big.NewInt(1000),
	)
	if err != nil {
		t.Fatalf("pack setup: %v", err)
	}
	sel := calldata.Setup.Selector()
	callData := append(sel[:], params...)

	data, err := poolABI.Events[model.EventLogCall].Inputs.NonIndexed().Pack(callData)
	if err != nil {
		t.Fatalf("pack log call: %v", err)
	}

	record := buildLogRecord(testPool, CallTopic(sel), data, []common.Hash{topicFromAddress(testCaller)})
	if !decoder.CanDecode(record.Topics[0]) {
		t.Fatalf("setup call topic not recognised")
	}

	typed, err := decoder.Decode(record)
	if err != nil {
		t.Fatalf("decode log call: %v", err)
	}
	call, ok := typed.Decoded.(model.LogCallEventData)
	if !ok || typed.EventName != model.EventLogCall {
		t.Fatalf("decoded type mismatch: %s", typed.EventName)
	}
	if call.Sig != hexutil.Encode(sel[:]) || call.Caller != model.NormalizeAddress(testCaller.Hex()) {
		t.Fatalf("log call header mismatch: %+v", call)
	}

	raw, err := hexutil.Decode(call.Data)
	if err != nil {
		t.Fatalf("call data: %v", err)
	}
	setup, err := calldata.DecodeSetup(raw)
	if err != nil {
		t.Fatalf("decode setup: %v", err)
	}
	if setup.Datatoken.Token != model.NormalizeAddress(testTokenA.Hex()) || setup.BaseToken.Balance.Int64() != 30 || setup.SwapFee.Int64() != 1000 {
		t.Fatalf("setup mismatch: %+v", setup)
	}
}

func TestPoolDecoderRejectsMalformed(t *testing.T) {
	poolABI, err := PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewPoolDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	if decoder.CanDecode(common.HexToHash("0x1234").Hex()) {
		t.Fatalf("unexpected topic accepted")
	}
	if decoder.CanDecode("") {
		t.Fatalf("empty topic accepted")
	}

	missingTopic := buildLogRecord(testPool, poolABI.Events[model.EventLogJoin].ID, nil, []common.Hash{topicFromAddress(testCaller)})
	if _, err := decoder.Decode(missingTopic); err == nil {
		t.Fatalf("expected topic count error")
	}

	shortData := buildLogRecord(testPool, poolABI.Events[model.EventLogJoin].ID, []byte{0x01}, []common.Hash{
		topicFromAddress(testCaller),
		topicFromAddress(testTokenA),
	})
	if _, err := decoder.Decode(shortData); err == nil {
		t.Fatalf("expected unpack error")
	}

	sel := calldata.Finalize.Selector()
	otherSel := calldata.SetSwapFee.Selector()
	mismatched, err := poolABI.Events[model.EventLogCall].Inputs.NonIndexed().Pack(otherSel[:])
	if err != nil {
		t.Fatalf("pack log call: %v", err)
	}
	if _, err := decoder.Decode(buildLogRecord(testPool, CallTopic(sel), mismatched, []common.Hash{topicFromAddress(testCaller)})); err == nil {
		t.Fatalf("expected selector mismatch error")
	}
}

func TestPoolDecoderTopics(t *testing.T) {
	decoder, err := NewPoolDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	topics := decoder.Topics()
	if len(topics) != 5+len(calldata.Layouts()) {
		t.Fatalf("topic count mismatch: %d", len(topics))
	}
	for _, topic := range topics {
		if !decoder.CanDecode(topic.Hex()) {
			t.Fatalf("topic %s not decodable", topic.Hex())
		}
	}
}

func buildLogRecord(emitter common.Address, topic0 common.Hash, data []byte, indexed []common.Hash) model.LogRecord {
	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, topic0.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     1,
		BlockNumber: 12345,
		BlockHash:   "0xabc",
		TxHash:      "0xdef",
		TxIndex:     3,
		LogIndex:    1,
		Address:     emitter.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   1700000000,
		TxFrom:      "0x5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e",
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func mustType(t *testing.T, name string) abi.Type {
	t.Helper()
	typ, err := abi.NewType(name, "", nil)
	if err != nil {
		t.Fatalf("abi type %s: %v", name, err)
	}
	return typ
}
