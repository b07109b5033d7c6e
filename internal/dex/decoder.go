package dex

import (
	"poolLedger/internal/model"
)

// Decoder maps raw logs to typed events.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord) (*model.TypedEvent, error)
}
