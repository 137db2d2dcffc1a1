package fields

import (
	"slices"

	"github.com/contentops/slotfill/pkg/types"
)

// MaxNewRows caps how many rows a single row-creating slot receives
const MaxNewRows = 10

// Unlimited is the capacity of a slot that absorbs every remaining image
const Unlimited = -1

// Capacity is how many images the planner hands to a slot: all remaining
// images for a gallery, up to MaxNewRows for a slot that creates rows, and
// one otherwise.
func Capacity(slot types.SlotDescriptor) int {
	switch slot.Kind {
	case types.SlotGallery:
		return Unlimited
	case types.SlotRepeaterImage, types.SlotNestedRepeaterImage:
		if slot.Template() {
			return MaxNewRows
		}
	}
	return 1
}

// Plan maps images onto the selected slots in ascending index order. A
// gallery takes every remaining image and ends the walk, even when more
// slots are selected after it. Surplus images are dropped and surplus slots
// get no instruction; Plan never fails.
func Plan(slots []types.SlotDescriptor, selected []int, images []int64) []types.AssignmentInstruction {
	order := slices.Clone(selected)
	slices.Sort(order)
	order = slices.Compact(order)

	var out []types.AssignmentInstruction
	cursor := 0
	for _, idx := range order {
		if cursor >= len(images) {
			break
		}
		if idx < 0 || idx >= len(slots) {
			continue
		}
		slot := slots[idx]

		take := len(images) - cursor
		if c := Capacity(slot); c != Unlimited && c < take {
			take = c
		}
		ids := slices.Clone(images[cursor : cursor+take])
		cursor += take

		out = append(out, types.AssignmentInstruction{
			Key:           slot.Key,
			Name:          slot.Name,
			Kind:          slot.Kind,
			AttachmentIDs: ids,
			Ancestry:      copyPath(slot.Ancestry),
		})

		if slot.Kind == types.SlotGallery {
			break
		}
	}
	return out
}

// ImageCount totals the attachments Apply stores for the instructions. A
// gallery or a row-creating slot keeps every id; any other slot keeps only
// the first.
func ImageCount(instructions []types.AssignmentInstruction) int {
	n := 0
	for _, in := range instructions {
		switch {
		case len(in.AttachmentIDs) == 0:
		case in.Kind == types.SlotGallery || in.Template():
			n += len(in.AttachmentIDs)
		default:
			n++
		}
	}
	return n
}
