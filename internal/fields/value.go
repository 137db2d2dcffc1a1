package fields

import (
	"reflect"

	"github.com/contentops/slotfill/pkg/types"
)

// ValueTree holds the stored values of a page's top-level fields, keyed by field name.
type ValueTree map[string]any

// TreeFromFields collects the stored values of the given top-level fields
func TreeFromFields(nodes []types.FieldNode) ValueTree {
	tree := make(ValueTree, len(nodes))
	for _, n := range nodes {
		tree[n.Name] = n.Value
	}
	return tree
}

// IsEmpty reports whether a stored value counts as "no value". Zero numbers,
// the strings "" and "0", false, and empty sequences or maps are empty.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == "" || t == "0"
	case bool:
		return !t
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// DeepCopy copies the maps and slices of a decoded value tree. Scalars are shared.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = DeepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = DeepCopy(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = DeepCopy(val)
		}
		return out
	case []int64:
		return append([]int64(nil), t...)
	}
	return v
}

// asRows returns v as a row sequence, or nil when v holds no rows
func asRows(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []map[string]any:
		rows := make([]any, len(t))
		for i, r := range t {
			rows[i] = r
		}
		return rows
	}
	return nil
}

// asMap returns v as a field map, or nil
func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

// isRowList reports whether v is a non-empty sequence of row records
func isRowList(v any) bool {
	rows := asRows(v)
	if len(rows) == 0 {
		return false
	}
	for _, r := range rows {
		if _, ok := r.(map[string]any); !ok {
			return false
		}
	}
	return true
}

func copyPath(path []types.AncestryFrame) []types.AncestryFrame {
	if len(path) == 0 {
		return nil
	}
	out := make([]types.AncestryFrame, len(path))
	for i, f := range path {
		if f.RowIndex != nil {
			idx := *f.RowIndex
			f.RowIndex = &idx
		}
		out[i] = f
	}
	return out
}

// leafValue is the value stored in a slot for the given attachments
func leafValue(kind types.SlotKind, ids []int64) any {
	if kind == types.SlotGallery {
		out := make([]any, len(ids))
		for i, id := range ids {
			out[i] = id
		}
		return out
	}
	return ids[0]
}
