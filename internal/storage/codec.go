package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ohler55/ojg/oj"

	"github.com/contentops/slotfill/pkg/types"
)

// encodeValue serializes a field value for storage
func encodeValue(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode value: %w", err)
	}
	return string(b), nil
}

// decodeValue parses a stored value. Integers come back as int64, objects
// as map[string]any and arrays as []any.
func decodeValue(s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	v, err := oj.ParseString(s)
	if err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return v, nil
}

// normalize gives a value the shape it has after a storage round trip
func normalize(v any) (any, error) {
	s, err := encodeValue(v)
	if err != nil {
		return nil, err
	}
	return decodeValue(s)
}

// resolveField finds the top-level field addressed by name or key
func resolveField(fields []types.FieldNode, selector string) (types.FieldNode, bool) {
	for _, f := range fields {
		if f.Name == selector {
			return f, true
		}
	}
	for _, f := range fields {
		if f.Key == selector {
			return f, true
		}
	}
	return types.FieldNode{}, false
}

// schemaOnly strips stored values from a field tree
func schemaOnly(f types.FieldNode) types.FieldNode {
	f.Value = nil
	if len(f.Children) > 0 {
		children := make([]types.FieldNode, len(f.Children))
		for i, c := range f.Children {
			children[i] = schemaOnly(c)
		}
		f.Children = children
	}
	if len(f.Layouts) > 0 {
		layouts := make([]types.LayoutVariant, len(f.Layouts))
		for i, l := range f.Layouts {
			fields := make([]types.FieldNode, len(l.Fields))
			for j, c := range l.Fields {
				fields[j] = schemaOnly(c)
			}
			l.Fields = fields
			layouts[i] = l
		}
		f.Layouts = layouts
	}
	return f
}

func isImageMime(mime string) bool {
	return strings.HasPrefix(strings.ToLower(mime), "image/")
}
