package indexer

import (
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"poolLedger/internal/chain"
	"poolLedger/internal/model"
)

func buildLogRecord(chainID uint64, log types.Log, timestamp uint64, ingestedAt time.Time) model.LogRecord {
	topics := make([]string, 0, len(log.Topics))
	for _, topic := range log.Topics {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		TxIndex:     uint64(log.TxIndex),
		LogIndex:    uint64(log.Index),
		Address:     model.NormalizeAddress(log.Address.Hex()),
		Topics:      topics,
		Data:        hexutil.Encode(log.Data),
		Removed:     log.Removed,
		Timestamp:   timestamp,
		IngestedAt:  ingestedAt.UTC().Format(time.RFC3339Nano),
	}
}

// applyTxMeta copies sender and gas figures onto a record. Gas price is in wei.
func applyTxMeta(record *model.LogRecord, meta chain.TxMeta) {
	record.TxFrom = model.NormalizeAddress(meta.From.Hex())
	record.GasUsed = strconv.FormatUint(meta.GasUsed, 10)
	if meta.GasPrice != nil {
		record.GasPrice = meta.GasPrice.String()
	}
}

func recordPosition(record model.LogRecord) model.Position {
	return model.Position{Block: record.BlockNumber, TxIndex: record.TxIndex, LogIndex: record.LogIndex}
}
