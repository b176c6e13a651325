// Package store wraps the document engine behind a process-wide lock and
// typed error outcomes.
package store

import (
	"context"
	"encoding/json"
)

// Document is a JSON object as stored in the index.
type Document map[string]interface{}

// Hit is one search result.
type Hit struct {
	ID     string
	Source Document
}

// NestedQuery matches documents holding a nested element whose Field equals
// Value, e.g. Path "workPeriods.payments", Field "id".
type NestedQuery struct {
	Path  string
	Field string
	Value string
}

// Script is a server-side update. Apply is the equivalent mutation used by
// engines that cannot run the source.
type Script struct {
	Source string
	Params map[string]interface{}
	Apply  func(id string, doc Document) error
}

// Store is implemented by engines, the Client and UnitOfWork.
type Store interface {
	Get(ctx context.Context, index, id string) (Document, error)
	Search(ctx context.Context, index string, q NestedQuery) ([]Hit, error)
	Create(ctx context.Context, index, id string, body Document) error
	// Update merges doc into the stored document.
	Update(ctx context.Context, index, id string, doc Document) error
	UpdateScript(ctx context.Context, index, id string, script Script) error
	UpdateByQuery(ctx context.Context, index string, ids []string, script Script) error
	Delete(ctx context.Context, index, id string) error
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]interface{}(d)).(map[string]interface{})
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Document:
		return Document(cloneValue(map[string]interface{}(t)).(map[string]interface{}))
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

// Merge copies src into dst. Nested objects merge recursively, everything
// else (arrays included) is replaced.
func Merge(dst, src map[string]interface{}) {
	for k, v := range src {
		srcMap, ok := asMap(v)
		if ok {
			if dstMap, ok := asMap(dst[k]); ok {
				Merge(dstMap, srcMap)
				dst[k] = dstMap
				continue
			}
		}
		dst[k] = cloneValue(v)
	}
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case Document:
		return map[string]interface{}(t), true
	}
	return nil, false
}

// DecodeDocument unmarshals raw JSON into a Document.
func DecodeDocument(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
