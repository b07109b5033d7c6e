package model

// DecodeError is one line of the decode errors JSONL. Line is set when the
// input line itself could not be parsed and carries no log fields.
type DecodeError struct {
	Line        int    `json:"line,omitempty"`
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	TxIndex     uint64 `json:"tx_index"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Topic0      string `json:"topic0"`
	Error       string `json:"error"`
}

// NewDecodeError describes a record that could not be decoded.
func NewDecodeError(record LogRecord, err error) DecodeError {
	out := DecodeError{
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		TxIndex:     record.TxIndex,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Error:       err.Error(),
	}
	if len(record.Topics) > 0 {
		out.Topic0 = record.Topics[0]
	}
	return out
}
