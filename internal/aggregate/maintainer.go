// Package aggregate maintains arrays of child objects nested inside parent
// documents: work periods inside resource bookings, payments inside work
// periods and interviews inside job candidates.
package aggregate

import (
	"context"
	"fmt"

	apperrors "taas-es-processor/internal/common/errors"
	"taas-es-processor/internal/common/logger"
	"taas-es-processor/internal/store"
)

type Strategy string

const (
	// StrategyScript mutates arrays with a single painless update.
	StrategyScript Strategy = "script"
	// StrategyReadModifyWrite reads the parent, splices the array and writes
	// the array back under the unit of work lock.
	StrategyReadModifyWrite Strategy = "read_modify_write"
)

// Ref addresses a nested array. With ParentID empty the array is
// Document[Field]; otherwise it is the SubField array of the Field element
// whose id is ParentID.
type Ref struct {
	Index    string
	DocID    string
	Field    string
	ParentID string
	SubField string
}

func (r Ref) String() string {
	if r.ParentID == "" {
		return fmt.Sprintf("%s/%s.%s", r.Index, r.DocID, r.Field)
	}
	return fmt.Sprintf("%s/%s.%s[%s].%s", r.Index, r.DocID, r.Field, r.ParentID, r.SubField)
}

type Maintainer struct {
	strategy Strategy
	logger   logger.Logger
}

func NewMaintainer(strategy Strategy, log logger.Logger) *Maintainer {
	if strategy == "" {
		strategy = StrategyScript
	}
	return &Maintainer{strategy: strategy, logger: log.Named("aggregate")}
}

func (m *Maintainer) Strategy() Strategy {
	return m.strategy
}

// FindParent returns the single document of index holding a nested element
// at path with the given id. Zero hits is NotFound; more than one is
// AMBIGUOUS_PARENT.
func (m *Maintainer) FindParent(ctx context.Context, st store.Store, index, path, entity, id string) (store.Hit, error) {
	hits, err := st.Search(ctx, index, store.NestedQuery{Path: path, Field: "id", Value: id})
	if err != nil {
		return store.Hit{}, err
	}
	switch len(hits) {
	case 0:
		return store.Hit{}, apperrors.NewChildNotFoundError(entity, id)
	case 1:
		return hits[0], nil
	default:
		return store.Hit{}, apperrors.NewAmbiguousParentError(index, path, id, len(hits))
	}
}

// Append upserts child into the referenced array, creating the array when
// missing. The parent document must exist.
func (m *Maintainer) Append(ctx context.Context, st store.Store, ref Ref, child map[string]interface{}) error {
	m.logger.Debug("append child", map[string]interface{}{"ref": ref.String(), "childId": childID(child)})
	if m.strategy == StrategyScript {
		return st.UpdateScript(ctx, ref.Index, ref.DocID, upsertScript(ref, child))
	}
	return m.readModifyWrite(ctx, st, ref, func(items []interface{}) ([]interface{}, error) {
		return UpsertChild(items, child), nil
	})
}

// Merge copies fields onto the element with childID. A missing element is
// left alone.
func (m *Maintainer) Merge(ctx context.Context, st store.Store, ref Ref, childID string, fields map[string]interface{}) error {
	m.logger.Debug("merge child", map[string]interface{}{"ref": ref.String(), "childId": childID})
	if m.strategy == StrategyScript {
		return st.UpdateScript(ctx, ref.Index, ref.DocID, mergeScript(ref, childID, fields))
	}
	return m.readModifyWrite(ctx, st, ref, func(items []interface{}) ([]interface{}, error) {
		MergeChild(items, childID, fields)
		return items, nil
	})
}

// Remove drops the element with childID, leaving an empty array behind when
// it was the last one.
func (m *Maintainer) Remove(ctx context.Context, st store.Store, ref Ref, childID string) error {
	m.logger.Debug("remove child", map[string]interface{}{"ref": ref.String(), "childId": childID})
	if m.strategy == StrategyScript {
		return st.UpdateScript(ctx, ref.Index, ref.DocID, removeScript(ref, childID))
	}
	return m.readModifyWrite(ctx, st, ref, func(items []interface{}) ([]interface{}, error) {
		out, _ := RemoveChild(items, childID)
		return out, nil
	})
}

// Reparent moves child from one array to another. The destination is checked
// first so a missing new parent fails with NotFound before the child leaves
// its old parent. Both writes happen under the unit of work lock.
func (m *Maintainer) Reparent(ctx context.Context, st store.Store, from, to Ref, child map[string]interface{}) error {
	store.Acquire(st)

	target, err := st.Get(ctx, to.Index, to.DocID)
	if err != nil {
		return err
	}
	if _, _, ok := container(target, to); !ok {
		return apperrors.NewChildNotFoundError(to.Field, to.ParentID)
	}

	m.logger.Debug("reparent child", map[string]interface{}{
		"from":    from.String(),
		"to":      to.String(),
		"childId": childID(child),
	})

	if err := m.Remove(ctx, st, from, childID(child)); err != nil {
		return fmt.Errorf("remove from old parent: %w", err)
	}
	if err := m.Append(ctx, st, to, child); err != nil {
		return fmt.Errorf("append to new parent: %w", err)
	}
	return nil
}

func (m *Maintainer) readModifyWrite(ctx context.Context, st store.Store, ref Ref, splice func([]interface{}) ([]interface{}, error)) error {
	store.Acquire(st)

	doc, err := st.Get(ctx, ref.Index, ref.DocID)
	if err != nil {
		return err
	}
	applied, err := applySplice(doc, ref, splice)
	if err != nil || !applied {
		return err
	}
	return st.Update(ctx, ref.Index, ref.DocID, store.Document{ref.Field: doc[ref.Field]})
}

// applySplice runs splice against the referenced array of doc in place. A
// grandchild reference whose parent element is gone is a no-op.
func applySplice(doc store.Document, ref Ref, splice func([]interface{}) ([]interface{}, error)) (bool, error) {
	holder, key, ok := container(doc, ref)
	if !ok {
		return false, nil
	}
	items, err := splice(Children(holder, key))
	if err != nil {
		return false, err
	}
	holder[key] = items
	return true, nil
}
