package fields

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"github.com/contentops/slotfill/pkg/types"
)

// Selection is the operator's choice of slots for one page session. Every
// slot starts selected and existing values are replaced. With replace turned
// off, slots that already hold a value are deselected and cannot be selected
// again until replace is turned back on.
type Selection struct {
	slots           []types.SlotDescriptor
	selected        *roaring.Bitmap
	replaceExisting bool
}

// NewSelection selects every slot
func NewSelection(slots []types.SlotDescriptor) *Selection {
	s := &Selection{
		slots:           slots,
		selected:        roaring.New(),
		replaceExisting: true,
	}
	s.SelectAll()
	return s
}

// Slots returns the descriptors the selection was built from
func (s *Selection) Slots() []types.SlotDescriptor {
	return s.slots
}

// ReplaceExisting reports the current replace policy
func (s *Selection) ReplaceExisting() bool {
	return s.replaceExisting
}

// SetReplaceExisting toggles the replace policy. Turning it off drops every
// filled slot from the selection.
func (s *Selection) SetReplaceExisting(replace bool) {
	s.replaceExisting = replace
	if replace {
		return
	}
	for i, slot := range s.slots {
		if slot.HasValue {
			s.selected.Remove(uint32(i))
		}
	}
}

// Disabled reports whether slot i cannot currently be selected
func (s *Selection) Disabled(i int) bool {
	if i < 0 || i >= len(s.slots) {
		return true
	}
	return !s.replaceExisting && s.slots[i].HasValue
}

// Select adds slot i. It returns false if the index is out of range or disabled.
func (s *Selection) Select(i int) bool {
	if s.Disabled(i) {
		return false
	}
	s.selected.Add(uint32(i))
	return true
}

// Deselect removes slot i
func (s *Selection) Deselect(i int) {
	if i < 0 {
		return
	}
	s.selected.Remove(uint32(i))
}

// SelectAll selects every slot that is not disabled
func (s *Selection) SelectAll() {
	for i := range s.slots {
		s.Select(i)
	}
}

// SelectNone clears the selection
func (s *Selection) SelectNone() {
	s.selected.Clear()
}

// SelectOnly replaces the selection with the given indices and returns the
// ones that could not be selected.
func (s *Selection) SelectOnly(indices []int) []int {
	s.SelectNone()
	var rejected []int
	for _, i := range indices {
		if !s.Select(i) {
			rejected = append(rejected, i)
		}
	}
	return rejected
}

// Selected reports whether slot i is selected
func (s *Selection) Selected(i int) bool {
	return i >= 0 && s.selected.Contains(uint32(i))
}

// Indices returns the selected slot indices in ascending order
func (s *Selection) Indices() []int {
	raw := s.selected.ToArray()
	out := make([]int, len(raw))
	for i, v := range raw {
		out[i] = int(v)
	}
	return out
}

// Len is the number of selected slots
func (s *Selection) Len() int {
	return int(s.selected.GetCardinality())
}

// Plan maps images onto the selected slots
func (s *Selection) Plan(images []int64) []types.AssignmentInstruction {
	return Plan(s.slots, s.Indices(), images)
}

// MatchHint describes how the number of images lines up with the selection
func (s *Selection) MatchHint(imageCount int) string {
	selected := s.Len()
	switch {
	case selected == 0:
		return "No fields selected. Please select at least one field to upload images."
	case imageCount > selected:
		return fmt.Sprintf("You have selected more images (%d) than selected fields (%d). Extra images will be ignored.", imageCount, selected)
	case imageCount < selected:
		return fmt.Sprintf("You have selected fewer images (%d) than selected fields (%d). Some fields will remain empty.", imageCount, selected)
	default:
		return fmt.Sprintf("Perfect match! %d images will be assigned to %d selected fields.", imageCount, selected)
	}
}
