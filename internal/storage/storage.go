package storage

import "poolLedger/internal/model"

// Storage defines a sink for log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

var (
	_ Backend = (*Memory)(nil)
	_ Backend = (*Overlay)(nil)
)
