package model

import "fmt"

// Position orders events by block, transaction index and log index.
type Position struct {
	Block    uint64 `json:"block"`
	TxIndex  uint64 `json:"tx_index"`
	LogIndex uint64 `json:"log_index"`
}

// Before reports whether p sorts strictly before other.
func (p Position) Before(other Position) bool {
	if p.Block != other.Block {
		return p.Block < other.Block
	}
	if p.TxIndex != other.TxIndex {
		return p.TxIndex < other.TxIndex
	}
	return p.LogIndex < other.LogIndex
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d:%d", p.Block, p.TxIndex, p.LogIndex)
}
