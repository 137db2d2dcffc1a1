// Package fields discovers image slots in nested custom-field trees, plans
// which selected images go into which slots, and writes the planned values
// back into the stored value tree.
//
// Walk, Plan and Apply are pure: each call takes its full input and returns
// its full output.
package fields

import (
	"fmt"
	"strings"

	"github.com/contentops/slotfill/pkg/types"
)

// LabelSeparator joins the segments of a slot's display label
const LabelSeparator = " → "

// Walk flattens a page schema into its image slots, depth-first in
// declaration order. Fields of unknown kind are skipped.
//
// A flexible content field yields the slots of its stored rows, then one set
// of slots per declared layout for adding a row of that layout.
func Walk(root []types.FieldNode) []types.SlotDescriptor {
	w := &walker{}
	for _, node := range root {
		w.visit(node, node.Value, nil)
	}
	return w.slots
}

type walker struct {
	slots []types.SlotDescriptor
}

func (w *walker) visit(node types.FieldNode, value any, path []types.AncestryFrame) {
	switch node.Kind {
	case types.FieldImage:
		w.emit(node, value, path, imageSlotKind(path))

	case types.FieldGallery:
		w.emit(node, value, path, types.SlotGallery)

	case types.FieldRepeater:
		rows := asRows(value)
		if len(rows) == 0 {
			inner := extend(path, frameOf(node, nil))
			for _, child := range node.Children {
				w.visit(child, nil, inner)
			}
			return
		}
		for i, row := range rows {
			inner := extend(path, frameOf(node, &i))
			fields := asMap(row)
			for _, child := range node.Children {
				w.visit(child, fields[child.Name], inner)
			}
		}

	case types.FieldFlexibleContent:
		for i, row := range asRows(value) {
			fields := asMap(row)
			name, _ := fields[types.LayoutField].(string)
			layout, ok := findLayout(node.Layouts, name)
			if !ok {
				continue
			}
			inner := extend(path, layoutFrame(node, layout, &i))
			for _, child := range layout.Fields {
				w.visit(child, fields[child.Name], inner)
			}
		}
		// every declared layout can be added as a new row
		for _, layout := range node.Layouts {
			inner := extend(path, layoutFrame(node, layout, nil))
			for _, child := range layout.Fields {
				w.visit(child, nil, inner)
			}
		}

	case types.FieldGroup:
		inner := extend(path, frameOf(node, nil))
		fields := asMap(value)
		for _, child := range node.Children {
			w.visit(child, fields[child.Name], inner)
		}
	}
}

func (w *walker) emit(node types.FieldNode, value any, path []types.AncestryFrame, kind types.SlotKind) {
	w.slots = append(w.slots, types.SlotDescriptor{
		Key:        node.Key,
		Name:       node.Name,
		Label:      DisplayLabel(path, node.Label),
		FieldLabel: node.Label,
		Kind:       kind,
		Ancestry:   path,
		HasValue:   !IsEmpty(value),
		Value:      value,
	})
}

// imageSlotKind classifies a single-image leaf by where it sits. A direct
// child of an existing row is a repeater image; anything else nested is a
// nested repeater image.
func imageSlotKind(path []types.AncestryFrame) types.SlotKind {
	switch {
	case len(path) == 0:
		return types.SlotImage
	case len(path) == 1 && path[0].Kind.IsRowContainer() && path[0].HasRow():
		return types.SlotRepeaterImage
	default:
		return types.SlotNestedRepeaterImage
	}
}

func frameOf(node types.FieldNode, row *int) types.AncestryFrame {
	frame := types.AncestryFrame{
		Key:   node.Key,
		Name:  node.Name,
		Label: node.Label,
		Kind:  node.Kind,
	}
	if row != nil {
		idx := *row
		frame.RowIndex = &idx
	}
	return frame
}

func layoutFrame(node types.FieldNode, layout types.LayoutVariant, row *int) types.AncestryFrame {
	frame := frameOf(node, row)
	frame.LayoutName, frame.LayoutLabel = layout.Name, layout.Label
	return frame
}

// extend returns a new path; the caller's slice is never written to.
func extend(path []types.AncestryFrame, frame types.AncestryFrame) []types.AncestryFrame {
	out := make([]types.AncestryFrame, len(path), len(path)+1)
	copy(out, path)
	return append(out, frame)
}

func findLayout(layouts []types.LayoutVariant, name string) (types.LayoutVariant, bool) {
	for _, l := range layouts {
		if l.Name == name {
			return l, true
		}
	}
	return types.LayoutVariant{}, false
}

// DisplayLabel joins the ancestor labels and the leaf label. After a row-bound
// ancestor the next segment is prefixed with "Row N: ".
func DisplayLabel(path []types.AncestryFrame, leaf string) string {
	segments := make([]string, 0, len(path)+1)
	prefix := ""
	for _, f := range path {
		segments = append(segments, prefix+frameLabel(f))
		prefix = ""
		if f.HasRow() {
			prefix = fmt.Sprintf("Row %d: ", *f.RowIndex+1)
		}
	}
	segments = append(segments, prefix+leaf)
	return strings.Join(segments, LabelSeparator)
}

func frameLabel(f types.AncestryFrame) string {
	if f.Kind != types.FieldFlexibleContent || f.LayoutName == "" {
		return f.Label
	}
	layout := f.LayoutLabel
	if layout == "" {
		layout = f.LayoutName
	}
	return fmt.Sprintf("%s (%s)", f.Label, layout)
}

// Flatten converts descriptors to their wire form
func Flatten(slots []types.SlotDescriptor) []types.FlattenedSlot {
	out := make([]types.FlattenedSlot, len(slots))
	for i, d := range slots {
		fs := types.FlattenedSlot{
			Index:    i,
			Key:      d.Key,
			Name:     d.Name,
			Label:    d.Label,
			Kind:     d.Kind,
			Ancestry: copyPath(d.Ancestry),
			HasValue: d.HasValue,
		}
		if parent, ok := d.Parent(); ok {
			fs.ParentKey = parent.Key
			fs.ParentName = parent.Name
			fs.LayoutName = parent.LayoutName
			if parent.RowIndex != nil {
				idx := *parent.RowIndex
				fs.RowIndex = &idx
			}
		}
		if fs.Ancestry == nil {
			fs.Ancestry = []types.AncestryFrame{}
		}
		out[i] = fs
	}
	return out
}

// Stats counts the filled and empty slots of a page
func Stats(slots []types.SlotDescriptor) types.PageStats {
	stats := types.PageStats{Total: len(slots)}
	for _, s := range slots {
		if s.HasValue {
			stats.Filled++
		} else {
			stats.Empty++
		}
	}
	return stats
}
