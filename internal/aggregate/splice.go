package aggregate

import (
	"fmt"

	"taas-es-processor/internal/store"
)

// Children returns the array stored under field, or an empty slice when the
// field is missing or not an array.
func Children(obj map[string]interface{}, field string) []interface{} {
	items, ok := obj[field].([]interface{})
	if !ok {
		return []interface{}{}
	}
	return items
}

// FindChild returns the element with the given id and its index, or -1.
func FindChild(items []interface{}, id string) (map[string]interface{}, int) {
	for i, item := range items {
		child, ok := asObject(item)
		if !ok {
			continue
		}
		if childID(child) == id {
			return child, i
		}
	}
	return nil, -1
}

// UpsertChild replaces the element carrying child's id, or appends child.
func UpsertChild(items []interface{}, child map[string]interface{}) []interface{} {
	if _, i := FindChild(items, childID(child)); i >= 0 {
		items[i] = child
		return items
	}
	return append(items, child)
}

// MergeChild copies fields onto the element with the given id. It reports
// whether the element was found.
func MergeChild(items []interface{}, id string, fields map[string]interface{}) bool {
	child, i := FindChild(items, id)
	if i < 0 {
		return false
	}
	for k, v := range fields {
		child[k] = v
	}
	return true
}

// RemoveChild drops every element with the given id. The result is never
// nil so an emptied array is stored as [].
func RemoveChild(items []interface{}, id string) ([]interface{}, bool) {
	out := make([]interface{}, 0, len(items))
	removed := false
	for _, item := range items {
		if child, ok := asObject(item); ok && childID(child) == id {
			removed = true
			continue
		}
		out = append(out, item)
	}
	return out, removed
}

func asObject(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case store.Document:
		return t, true
	}
	return nil, false
}

func childID(child map[string]interface{}) string {
	if id, ok := child["id"].(string); ok {
		return id
	}
	if child["id"] == nil {
		return ""
	}
	return fmt.Sprint(child["id"])
}

// container resolves the object holding the array named by ref. For a
// grandchild reference it is the element of ref.Field with ref.ParentID.
func container(doc store.Document, ref Ref) (map[string]interface{}, string, bool) {
	root := map[string]interface{}(doc)
	if ref.ParentID == "" {
		return root, ref.Field, true
	}
	parent, i := FindChild(Children(root, ref.Field), ref.ParentID)
	if i < 0 {
		return nil, "", false
	}
	return parent, ref.SubField, true
}
