package storage

import "context"

type recordKey struct {
	kind Kind
	id   string
}

// Overlay buffers writes on top of a parent backend. Reads see buffered
// writes first. Nothing reaches the parent until Commit.
type Overlay struct {
	parent  Backend
	pending map[recordKey][]byte
	order   []recordKey
}

func NewOverlay(parent Backend) *Overlay {
	return &Overlay{parent: parent, pending: make(map[recordKey][]byte)}
}

func (o *Overlay) Get(ctx context.Context, kind Kind, id string) ([]byte, bool, error) {
	if data, ok := o.pending[recordKey{kind: kind, id: id}]; ok {
		return data, true, nil
	}
	return o.parent.Get(ctx, kind, id)
}

func (o *Overlay) PutBatch(_ context.Context, records []Record) error {
	for _, r := range records {
		key := recordKey{kind: r.Kind, id: r.ID}
		if _, ok := o.pending[key]; !ok {
			o.order = append(o.order, key)
		}
		o.pending[key] = append([]byte(nil), r.Data...)
	}
	return nil
}

// Pending returns the number of buffered entities.
func (o *Overlay) Pending() int {
	return len(o.order)
}

// Commit writes buffered entities to the parent in first-write order as a
// single batch and clears the buffer.
func (o *Overlay) Commit(ctx context.Context) error {
	if len(o.order) == 0 {
		return nil
	}
	records := make([]Record, 0, len(o.order))
	for _, key := range o.order {
		records = append(records, Record{Kind: key.kind, ID: key.id, Data: o.pending[key]})
	}
	if err := o.parent.PutBatch(ctx, records); err != nil {
		return err
	}
	o.Discard()
	return nil
}

// Discard drops buffered writes.
func (o *Overlay) Discard() {
	o.pending = make(map[recordKey][]byte)
	o.order = nil
}
