package dex

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"poolLedger/internal/calldata"
	"poolLedger/internal/model"
)

// PoolDecoder decodes pool, datatoken and factory events.
type PoolDecoder struct {
	poolABI     abi.ABI
	topicToName map[string]string
	callTopics  map[string][4]byte
}

// NewPoolDecoder builds a pool decoder for every named event plus one
// LOG_CALL topic per known pool call.
func NewPoolDecoder() (*PoolDecoder, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}

	topicToName := make(map[string]string)
	for _, name := range []string{
		model.EventLogJoin,
		model.EventLogExit,
		model.EventLogSwap,
		model.EventTransfer,
		model.EventNewPool,
	} {
		topicToName[strings.ToLower(parsed.Events[name].ID.Hex())] = name
	}

	callTopics := make(map[string][4]byte)
	for _, layout := range calldata.Layouts() {
		sel := layout.Selector()
		callTopics[strings.ToLower(CallTopic(sel).Hex())] = sel
	}

	return &PoolDecoder{
		poolABI:     parsed,
		topicToName: topicToName,
		callTopics:  callTopics,
	}, nil
}

// CallTopic is the topic0 of a LOG_CALL for the given selector.
func CallTopic(selector [4]byte) common.Hash {
	var topic common.Hash
	copy(topic[:], selector[:])
	return topic
}

// Topics returns every topic0 the decoder understands.
func (d *PoolDecoder) Topics() []common.Hash {
	out := make([]common.Hash, 0, len(d.topicToName)+len(d.callTopics))
	for topic := range d.topicToName {
		out = append(out, common.HexToHash(topic))
	}
	for _, sel := range d.callTopics {
		out = append(out, CallTopic(sel))
	}
	return out
}

// CanDecode checks if the topic0 is supported.
func (d *PoolDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	key := strings.ToLower(topic0)
	if _, ok := d.topicToName[key]; ok {
		return true
	}
	_, ok := d.callTopics[key]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *PoolDecoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid emitter address: %s", log.Address)
	}

	key := strings.ToLower(log.Topics[0])
	if sel, ok := d.callTopics[key]; ok {
		decoded, err := d.decodeLogCall(log, sel)
		if err != nil {
			return nil, err
		}
		return buildTypedEvent(log, model.EventLogCall, decoded), nil
	}

	name, ok := d.topicToName[key]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	var (
		decoded interface{}
		err     error
	)
	switch name {
	case model.EventLogJoin:
		decoded, err = d.decodeJoin(log)
	case model.EventLogExit:
		decoded, err = d.decodeExit(log)
	case model.EventLogSwap:
		decoded, err = d.decodeSwap(log)
	case model.EventTransfer:
		decoded, err = d.decodeTransfer(log)
	case model.EventNewPool:
		decoded, err = d.decodeNewPool(log)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return buildTypedEvent(log, name, decoded), nil
}

func buildTypedEvent(log model.LogRecord, name string, decoded interface{}) *model.TypedEvent {
	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		TxIndex:     log.TxIndex,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   name,
		Timestamp:   log.Timestamp,
		TxFrom:      log.TxFrom,
		GasUsed:     log.GasUsed,
		GasPrice:    log.GasPrice,
		Decoded:     decoded,
		Raw:         &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data},
	}
}

// decodeLogCall reads an anonymous LOG_CALL: topics are [sig, caller] and the
// data is the ABI-encoded call data, selector included.
func (d *PoolDecoder) decodeLogCall(log model.LogRecord, sel [4]byte) (model.LogCallEventData, error) {
	if len(log.Topics) != 2 {
		return model.LogCallEventData{}, fmt.Errorf("LOG_CALL: expected 2 topics, got %d", len(log.Topics))
	}
	topics, err := parseTopicHashes(log.Topics)
	if err != nil {
		return model.LogCallEventData{}, fmt.Errorf("LOG_CALL: %w", err)
	}
	caller, err := topicAddress(topics[1])
	if err != nil {
		return model.LogCallEventData{}, fmt.Errorf("LOG_CALL caller: %w", err)
	}

	values, err := unpackNonIndexed(d.poolABI.Events[model.EventLogCall], log.Data)
	if err != nil {
		return model.LogCallEventData{}, err
	}
	if len(values) != 1 {
		return model.LogCallEventData{}, fmt.Errorf("unexpected LOG_CALL values: %d", len(values))
	}
	data, ok := values[0].([]byte)
	if !ok {
		return model.LogCallEventData{}, fmt.Errorf("LOG_CALL data type %T", values[0])
	}
	if len(data) >= calldata.SelectorSize && !bytes.Equal(data[:calldata.SelectorSize], sel[:]) {
		return model.LogCallEventData{}, fmt.Errorf("LOG_CALL selector %s does not match call data", hexutil.Encode(sel[:]))
	}

	return model.LogCallEventData{
		Sig:    hexutil.Encode(sel[:]),
		Caller: model.NormalizeAddress(caller.Hex()),
		Data:   hexutil.Encode(data),
	}, nil
}

func (d *PoolDecoder) decodeJoin(log model.LogRecord) (model.JoinEventData, error) {
	event := d.poolABI.Events[model.EventLogJoin]
	var indexed struct {
		Caller  common.Address
		TokenIn common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return model.JoinEventData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.JoinEventData{}, err
	}
	if len(values) != 1 {
		return model.JoinEventData{}, fmt.Errorf("unexpected join values: %d", len(values))
	}
	amountIn, err := asBigInt(values[0])
	if err != nil {
		return model.JoinEventData{}, err
	}

	return model.JoinEventData{
		Caller:        model.NormalizeAddress(indexed.Caller.Hex()),
		TokenIn:       model.NormalizeAddress(indexed.TokenIn.Hex()),
		TokenAmountIn: amountIn.String(),
	}, nil
}

func (d *PoolDecoder) decodeExit(log model.LogRecord) (model.ExitEventData, error) {
	event := d.poolABI.Events[model.EventLogExit]
	var indexed struct {
		Caller   common.Address
		TokenOut common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return model.ExitEventData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.ExitEventData{}, err
	}
	if len(values) != 1 {
		return model.ExitEventData{}, fmt.Errorf("unexpected exit values: %d", len(values))
	}
	amountOut, err := asBigInt(values[0])
	if err != nil {
		return model.ExitEventData{}, err
	}

	return model.ExitEventData{
		Caller:         model.NormalizeAddress(indexed.Caller.Hex()),
		TokenOut:       model.NormalizeAddress(indexed.TokenOut.Hex()),
		TokenAmountOut: amountOut.String(),
	}, nil
}

func (d *PoolDecoder) decodeSwap(log model.LogRecord) (model.SwapEventData, error) {
	event := d.poolABI.Events[model.EventLogSwap]
	var indexed struct {
		Caller   common.Address
		TokenIn  common.Address
		TokenOut common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return model.SwapEventData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.SwapEventData{}, err
	}
	if len(values) != 2 {
		return model.SwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}
	amountIn, err := asBigInt(values[0])
	if err != nil {
		return model.SwapEventData{}, err
	}
	amountOut, err := asBigInt(values[1])
	if err != nil {
		return model.SwapEventData{}, err
	}

	return model.SwapEventData{
		Caller:         model.NormalizeAddress(indexed.Caller.Hex()),
		TokenIn:        model.NormalizeAddress(indexed.TokenIn.Hex()),
		TokenOut:       model.NormalizeAddress(indexed.TokenOut.Hex()),
		TokenAmountIn:  amountIn.String(),
		TokenAmountOut: amountOut.String(),
	}, nil
}

func (d *PoolDecoder) decodeTransfer(log model.LogRecord) (model.TransferEventData, error) {
	event := d.poolABI.Events[model.EventTransfer]
	var indexed struct {
		From common.Address
		To   common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return model.TransferEventData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.TransferEventData{}, err
	}
	if len(values) != 1 {
		return model.TransferEventData{}, fmt.Errorf("unexpected transfer values: %d", len(values))
	}
	value, err := asBigInt(values[0])
	if err != nil {
		return model.TransferEventData{}, err
	}

	return model.TransferEventData{
		From:  model.NormalizeAddress(indexed.From.Hex()),
		To:    model.NormalizeAddress(indexed.To.Hex()),
		Value: value.String(),
	}, nil
}

func (d *PoolDecoder) decodeNewPool(log model.LogRecord) (model.NewPoolEventData, error) {
	event := d.poolABI.Events[model.EventNewPool]
	var indexed struct {
		BpoolAddress common.Address
		RegisteredBy common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return model.NewPoolEventData{}, err
	}

	return model.NewPoolEventData{
		Pool:         model.NormalizeAddress(indexed.BpoolAddress.Hex()),
		RegisteredBy: model.NormalizeAddress(indexed.RegisteredBy.Hex()),
	}, nil
}

func parseIndexed(event abi.Event, topics []string, out interface{}) error {
	indexed := indexedArguments(event.Inputs)
	if len(topics) != len(indexed)+1 {
		return fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(topics))
	}
	hashes, err := parseTopicHashes(topics[1:])
	if err != nil {
		return err
	}
	if err := abi.ParseTopics(out, indexed, hashes); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}
	return nil
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func topicAddress(topic common.Hash) (common.Address, error) {
	for _, b := range topic[:common.HashLength-common.AddressLength] {
		if b != 0 {
			return common.Address{}, fmt.Errorf("non-zero address padding in %s", topic.Hex())
		}
	}
	return common.BytesToAddress(topic[common.HashLength-common.AddressLength:]), nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
