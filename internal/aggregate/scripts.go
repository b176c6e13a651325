package aggregate

import (
	"taas-es-processor/internal/store"
)

// resolveItems leaves `items` pointing at the referenced array, creating it
// when missing. `items` stays null when the grandchild parent is absent.
const resolveItems = `
def holder = ctx._source;
String key = params.field;
if (params.parentId != null) {
  holder = null;
  def parents = ctx._source[params.field];
  if (parents != null) {
    for (def p : parents) {
      if (p.id == params.parentId) { holder = p; break; }
    }
  }
  key = params.subField;
}
def items = null;
if (holder != null) {
  if (holder[key] == null) { holder[key] = new ArrayList(); }
  items = holder[key];
}
`

const upsertSource = resolveItems + `
if (items == null) {
  ctx.op = 'noop';
} else {
  int found = -1;
  for (int i = 0; i < items.size(); i++) {
    if (items[i].id == params.child.id) { found = i; break; }
  }
  if (found >= 0) { items[found] = params.child; } else { items.add(params.child); }
}
`

const mergeSource = resolveItems + `
if (items == null) {
  ctx.op = 'noop';
} else {
  def target = null;
  for (def item : items) {
    if (item.id == params.childId) { target = item; break; }
  }
  if (target == null) {
    ctx.op = 'noop';
  } else {
    for (def entry : params.fields.entrySet()) {
      target[entry.getKey()] = entry.getValue();
    }
  }
}
`

const removeSource = resolveItems + `
if (items == null) {
  ctx.op = 'noop';
} else {
  items.removeIf(item -> item.id == params.childId);
}
`

// bulkMergeSource merges params.candidates[docId][childId] field maps onto
// the matching elements of params.field.
const bulkMergeSource = `
def byChild = params.candidates[ctx._id];
def items = ctx._source[params.field];
if (byChild == null || items == null) {
  ctx.op = 'noop';
} else {
  for (def change : byChild.entrySet()) {
    for (def item : items) {
      if (item.id == change.getKey()) {
        for (def entry : change.getValue().entrySet()) {
          item[entry.getKey()] = entry.getValue();
        }
      }
    }
  }
}
`

func refParams(ref Ref) map[string]interface{} {
	params := map[string]interface{}{
		"field":    ref.Field,
		"parentId": nil,
		"subField": nil,
	}
	if ref.ParentID != "" {
		params["parentId"] = ref.ParentID
		params["subField"] = ref.SubField
	}
	return params
}

func upsertScript(ref Ref, child map[string]interface{}) store.Script {
	params := refParams(ref)
	params["child"] = child
	return store.Script{
		Source: upsertSource,
		Params: params,
		Apply: func(_ string, doc store.Document) error {
			_, err := applySplice(doc, ref, func(items []interface{}) ([]interface{}, error) {
				return UpsertChild(items, store.Document(child).Clone()), nil
			})
			return err
		},
	}
}

func mergeScript(ref Ref, childID string, fields map[string]interface{}) store.Script {
	params := refParams(ref)
	params["childId"] = childID
	params["fields"] = fields
	return store.Script{
		Source: mergeSource,
		Params: params,
		Apply: func(_ string, doc store.Document) error {
			_, err := applySplice(doc, ref, func(items []interface{}) ([]interface{}, error) {
				MergeChild(items, childID, store.Document(fields).Clone())
				return items, nil
			})
			return err
		},
	}
}

func removeScript(ref Ref, childID string) store.Script {
	params := refParams(ref)
	params["childId"] = childID
	return store.Script{
		Source: removeSource,
		Params: params,
		Apply: func(_ string, doc store.Document) error {
			_, err := applySplice(doc, ref, func(items []interface{}) ([]interface{}, error) {
				out, _ := RemoveChild(items, childID)
				return out, nil
			})
			return err
		},
	}
}

// BulkMergeScript builds an update-by-query script that, for each matched
// document, merges changes[docID][childID] onto the children in field.
func BulkMergeScript(field string, changes map[string]map[string]map[string]interface{}) store.Script {
	return store.Script{
		Source: bulkMergeSource,
		Params: map[string]interface{}{
			"field":      field,
			"candidates": changes,
		},
		Apply: func(id string, doc store.Document) error {
			byChild, ok := changes[id]
			if !ok {
				return nil
			}
			items := Children(doc, field)
			for childID, fields := range byChild {
				MergeChild(items, childID, store.Document(fields).Clone())
			}
			if _, present := doc[field]; present {
				doc[field] = items
			}
			return nil
		},
	}
}
