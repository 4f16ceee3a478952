package docstore

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBackend keeps documents in process. It backs dry-run previews and
// stands in for either path in tests.
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[string]map[string]map[string]any
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: map[string]map[string]map[string]any{}}
}

// CopyOf loads the given collections of src into a new MemoryBackend.
func CopyOf(ctx context.Context, src Backend, collections ...string) (*MemoryBackend, error) {
	m := NewMemoryBackend()
	for _, collection := range collections {
		docs, err := src.List(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("copy %s from %s: %w", collection, src.Name(), err)
		}
		ops := make([]Op, 0, len(docs))
		for _, d := range docs {
			ops = append(ops, Op{Kind: OpUpsert, Collection: collection, ID: d.ID, Fields: d.Fields})
		}
		if err := m.BatchWrite(ctx, ops); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	fields, ok := m.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: id, Fields: copyFields(fields)}, nil
}

func (m *MemoryBackend) List(ctx context.Context, collection string) ([]Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]Document, 0, len(m.docs[collection]))
	for id, fields := range m.docs[collection] {
		docs = append(docs, Document{ID: id, Fields: copyFields(fields)})
	}
	sortDocuments(docs)
	return docs, nil
}

func (m *MemoryBackend) BatchWrite(ctx context.Context, ops []Op) error {
	if err := validateOps(ops); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// Stage on copies so a failing op leaves the store untouched.
	staged := make(map[string]map[string]map[string]any, len(m.docs))
	for c, docs := range m.docs {
		staged[c] = docs
	}
	cloned := map[string]bool{}
	for _, op := range ops {
		if !cloned[op.Collection] {
			next := make(map[string]map[string]any, len(staged[op.Collection]))
			for id, f := range staged[op.Collection] {
				next[id] = f
			}
			staged[op.Collection] = next
			cloned[op.Collection] = true
		}
		if op.Kind == OpDelete {
			delete(staged[op.Collection], op.ID)
			continue
		}
		merged, err := normalizeFields(mergeFields(staged[op.Collection][op.ID], op))
		if err != nil {
			return err
		}
		staged[op.Collection][op.ID] = merged
	}
	m.docs = staged
	return nil
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
