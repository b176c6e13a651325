package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "taas-es-processor/internal/common/errors"
)

// MemoryEngine is an in-process Store used by tests and local runs.
// Documents are copied on the way in and out, so callers never share state
// with the engine.
type MemoryEngine struct {
	mu      sync.RWMutex
	indices map[string]map[string]Document
}

func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{indices: make(map[string]map[string]Document)}
}

func (m *MemoryEngine) index(name string) map[string]Document {
	idx, ok := m.indices[name]
	if !ok {
		idx = make(map[string]Document)
		m.indices[name] = idx
	}
	return idx
}

func (m *MemoryEngine) Get(_ context.Context, index, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.indices[index][id]
	if !ok {
		return nil, apperrors.NewNotFoundError(index, id)
	}
	return doc.Clone(), nil
}

func (m *MemoryEngine) Search(_ context.Context, index string, q NestedQuery) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	segments := strings.Split(q.Path, ".")
	hits := []Hit{}
	for id, doc := range m.indices[index] {
		if nestedMatch(map[string]interface{}(doc), segments, q.Field, q.Value) {
			hits = append(hits, Hit{ID: id, Source: doc.Clone()})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
	return hits, nil
}

// nestedMatch walks the array path and reports whether any leaf object has
// field == value.
func nestedMatch(obj map[string]interface{}, path []string, field, value string) bool {
	if len(path) == 0 {
		return fmt.Sprint(obj[field]) == value
	}
	items, _ := obj[path[0]].([]interface{})
	for _, item := range items {
		child, ok := asMap(item)
		if !ok {
			continue
		}
		if nestedMatch(child, path[1:], field, value) {
			return true
		}
	}
	return false
}

func (m *MemoryEngine) Create(_ context.Context, index, id string, body Document) error {
	normalized, err := normalize(body)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.index(index)
	if _, exists := idx[id]; exists {
		return apperrors.NewAlreadyExistsError(index, id)
	}
	idx[id] = normalized
	return nil
}

func (m *MemoryEngine) Update(_ context.Context, index, id string, doc Document) error {
	normalized, err := normalize(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.indices[index][id]
	if !ok {
		return apperrors.NewNotFoundError(index, id)
	}
	updated := current.Clone()
	Merge(updated, normalized)
	m.indices[index][id] = updated
	return nil
}

func (m *MemoryEngine) UpdateScript(_ context.Context, index, id string, script Script) error {
	if script.Apply == nil {
		return fmt.Errorf("script for %s/%s has no in-memory form", index, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.indices[index][id]
	if !ok {
		return apperrors.NewNotFoundError(index, id)
	}
	return m.apply(index, id, current, script)
}

func (m *MemoryEngine) UpdateByQuery(_ context.Context, index string, ids []string, script Script) error {
	if script.Apply == nil {
		return fmt.Errorf("script for %s has no in-memory form", index)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		current, ok := m.indices[index][id]
		if !ok {
			continue
		}
		if err := m.apply(index, id, current, script); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryEngine) apply(index, id string, current Document, script Script) error {
	working := current.Clone()
	if err := script.Apply(id, working); err != nil {
		return err
	}
	normalized, err := normalize(working)
	if err != nil {
		return err
	}
	m.indices[index][id] = normalized
	return nil
}

func (m *MemoryEngine) Delete(_ context.Context, index, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.indices[index][id]; !ok {
		return apperrors.NewNotFoundError(index, id)
	}
	delete(m.indices[index], id)
	return nil
}

// Count returns the number of documents in index.
func (m *MemoryEngine) Count(index string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.indices[index])
}

// normalize round-trips through JSON so stored documents hold the same
// value types a real engine would return.
func normalize(doc Document) (Document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return DecodeDocument(raw)
}
