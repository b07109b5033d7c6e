package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
)

// Memory keeps entities in process. It can be persisted as a JSONL snapshot
// with one Record per line.
type Memory struct {
	mu      sync.RWMutex
	records map[Kind]map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{records: make(map[Kind]map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, kind Kind, id string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.records[kind][id]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

func (m *Memory) PutBatch(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		byID, ok := m.records[r.Kind]
		if !ok {
			byID = make(map[string][]byte)
			m.records[r.Kind] = byID
		}
		data := make([]byte, len(r.Data))
		copy(data, r.Data)
		byID[r.ID] = data
	}
	return nil
}

// Len returns the number of entities of a kind.
func (m *Memory) Len(kind Kind) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records[kind])
}

// Records returns all entities ordered by kind then id.
func (m *Memory) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0)
	for kind, byID := range m.records {
		for id, data := range byID {
			out = append(out, Record{Kind: kind, ID: id, Data: append([]byte(nil), data...)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// WriteSnapshot replaces the file at path with the current contents.
func (m *Memory) WriteSnapshot(path string) error {
	if path == "" {
		return fmt.Errorf("snapshot path required")
	}
	tmp := path + ".tmp"
	w, err := OpenJSONL(tmp, false)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	for _, record := range m.Records() {
		if err := w.Write(record); err != nil {
			w.Close()
			return fmt.Errorf("snapshot %s/%s: %w", record.Kind, record.ID, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadSnapshot reads a snapshot written by WriteSnapshot. A missing file
// leaves the store empty.
func (m *Memory) LoadSnapshot(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	records := make([]Record, 0)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return fmt.Errorf("snapshot line %d: %w", line, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	return m.PutBatch(context.Background(), records)
}
