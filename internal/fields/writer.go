package fields

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/contentops/slotfill/pkg/types"
)

var (
	// ErrNoAttachments is recorded for an instruction without attachment ids
	ErrNoAttachments = errors.New("instruction has no attachments")
	// ErrPathConflict is recorded when a stored value is not the container the path expects
	ErrPathConflict = errors.New("stored value does not match field path")
)

// ContainerUpdate is the new value of one top-level field after Apply
type ContainerUpdate struct {
	Name         string
	Key          string
	Value        any
	Instructions []types.AssignmentInstruction
	// Fallback addresses the same data as flat per-row meta entries
	Fallback []types.MetaEntry
}

// Nested reports whether the update replaces a container rather than a plain slot
func (u ContainerUpdate) Nested() bool {
	for _, in := range u.Instructions {
		if len(in.Ancestry) > 0 {
			return true
		}
	}
	return false
}

// InstructionFailure records an instruction that could not be applied
type InstructionFailure struct {
	Instruction types.AssignmentInstruction
	Err         error
}

func (f InstructionFailure) Error() string {
	return fmt.Sprintf("%s (%s): %v", f.Instruction.Name, f.Instruction.Key, f.Err)
}

// ApplyResult is the outcome of Apply
type ApplyResult struct {
	Tree     ValueTree
	Updates  []ContainerUpdate
	Failures []InstructionFailure
}

// Success reports whether every instruction was applied
func (r *ApplyResult) Success() bool {
	return len(r.Failures) == 0
}

// Apply writes the instructions into a copy of the current value tree.
//
// Plain slots are overwritten by name. Nested slots are grouped by their
// outermost container: the container's current value is read once, every
// instruction for it is applied to the same copy, and one update is emitted.
// Only the targeted field of a row is set; rows and sibling fields are kept.
// Positions below a container without rows create one row per attachment;
// new flexible content rows go after the stored ones.
func Apply(current ValueTree, instructions []types.AssignmentInstruction) *ApplyResult {
	res := &ApplyResult{Tree: make(ValueTree, len(current))}
	for k, v := range current {
		res.Tree[k] = v
	}

	var order []string
	states := make(map[string]*containerState)
	stateFor := func(name, key string) *containerState {
		st, ok := states[name]
		if !ok {
			st = &containerState{
				name:    name,
				key:     key,
				value:   DeepCopy(current[name]),
				created: make(map[string][]int),
			}
			states[name] = st
			order = append(order, name)
		}
		return st
	}

	for _, in := range instructions {
		if len(in.AttachmentIDs) == 0 {
			res.Failures = append(res.Failures, InstructionFailure{Instruction: in, Err: ErrNoAttachments})
			continue
		}

		if len(in.Ancestry) == 0 {
			st := stateFor(in.Name, in.Key)
			st.value = leafValue(in.Kind, in.AttachmentIDs)
			st.key = in.Key
			st.instructions = append(st.instructions, in)
			continue
		}

		top := in.Ancestry[0]
		st := stateFor(top.Name, top.Key)
		if err := st.apply(in); err != nil {
			res.Failures = append(res.Failures, InstructionFailure{Instruction: in, Err: err})
			continue
		}
	}

	for _, name := range order {
		st := states[name]
		if len(st.instructions) == 0 {
			continue
		}
		res.Tree[name] = st.value
		res.Updates = append(res.Updates, ContainerUpdate{
			Name:         st.name,
			Key:          st.key,
			Value:        st.value,
			Instructions: st.instructions,
			Fallback:     FallbackEntries(st.name, st.key, st.value, st.refs),
		})
	}
	return res
}

// containerState is the in-memory copy of one top-level field during Apply
type containerState struct {
	name         string
	key          string
	value        any
	instructions []types.AssignmentInstruction
	// created holds the rows synthesized in this pass per position and layout
	created map[string][]int
	refs    []types.MetaEntry
}

// apply writes one instruction. The container is only changed if the whole
// instruction succeeds.
func (st *containerState) apply(in types.AssignmentInstruction) error {
	p := &placement{
		in:      in,
		created: st.created,
		pending: make(map[string][]int),
	}
	next, err := p.place(DeepCopy(st.value), in.Ancestry, in.AttachmentIDs, in.Ancestry[0].Name)
	if err != nil {
		return err
	}
	for k, rows := range p.pending {
		st.created[k] = rows
	}
	st.value = next
	st.instructions = append(st.instructions, in)
	st.refs = append(st.refs, p.refs...)
	return nil
}

type placement struct {
	in      types.AssignmentInstruction
	created map[string][]int
	pending map[string][]int
	refs    []types.MetaEntry
}

func (p *placement) createdRows(slot string) ([]int, bool) {
	if rows, ok := p.pending[slot]; ok {
		return rows, true
	}
	rows, ok := p.created[slot]
	return rows, ok
}

// ref records the field key behind a written position, in flat meta form
func (p *placement) ref(path, key string) {
	p.refs = append(p.refs, types.MetaEntry{Key: "_" + strings.ReplaceAll(path, "/", "_"), Value: key})
}

// place writes ids below node, the stored value of frames[0]
func (p *placement) place(node any, frames []types.AncestryFrame, ids []int64, path string) (any, error) {
	f := frames[0]
	rest := frames[1:]

	if f.Kind == types.FieldGroup {
		fields, err := mapOrNew(node, path)
		if err != nil {
			return nil, err
		}
		p.ref(path, f.Key)
		if err := p.into(fields, rest, ids, path); err != nil {
			return nil, err
		}
		return fields, nil
	}

	if !f.Kind.IsRowContainer() {
		return nil, fmt.Errorf("%w: %s is a %s field", ErrPathConflict, path, f.Kind)
	}
	p.ref(path, f.Key)

	if f.HasRow() {
		rows, err := rowsOrNew(node, path)
		if err != nil {
			return nil, err
		}
		r := *f.RowIndex
		if r < 0 {
			return nil, fmt.Errorf("%w: negative row index at %s", ErrPathConflict, path)
		}
		for len(rows) <= r {
			rows = append(rows, newRow(f))
		}
		rowPath := path + "/" + strconv.Itoa(r)
		fields, err := rowFields(rows[r], f, rowPath)
		if err != nil {
			return nil, err
		}
		if err := p.into(fields, rest, ids, rowPath); err != nil {
			return nil, err
		}
		rows[r] = fields
		return rows, nil
	}

	// No row is addressed here, so each id gets a row of its own. The first
	// instruction for this position and layout creates the rows: after the
	// stored rows for flexible content, in place of the stored value for a
	// repeater. Later instructions for the same position and layout fill the
	// same rows.
	slot := path
	if f.LayoutName != "" {
		slot += "(" + f.LayoutName + ")"
	}
	var rows []any
	created, ok := p.createdRows(slot)
	if ok || f.Kind == types.FieldFlexibleContent {
		existing, err := rowsOrNew(node, path)
		if err != nil {
			return nil, err
		}
		rows = existing
	}
	created = slices.Clone(created)
	for i, id := range ids {
		if i == len(created) {
			created = append(created, len(rows))
			rows = append(rows, newRow(f))
		}
		r := created[i]
		rowPath := path + "/" + strconv.Itoa(r)
		fields, err := rowFields(rows[r], f, rowPath)
		if err != nil {
			return nil, err
		}
		if err := p.into(fields, rest, []int64{id}, rowPath); err != nil {
			return nil, err
		}
		rows[r] = fields
	}
	p.pending[slot] = created
	return rows, nil
}

// into writes ids into a row or group map, either at the leaf or via the next container
func (p *placement) into(fields map[string]any, rest []types.AncestryFrame, ids []int64, path string) error {
	if len(rest) == 0 {
		fields[p.in.Name] = leafValue(p.in.Kind, ids)
		p.ref(path+"/"+p.in.Name, p.in.Key)
		return nil
	}
	next := rest[0]
	childPath := path + "/" + next.Name
	value, err := p.place(fields[next.Name], rest, ids, childPath)
	if err != nil {
		return err
	}
	fields[next.Name] = value
	return nil
}

func newRow(f types.AncestryFrame) map[string]any {
	row := make(map[string]any)
	if f.Kind == types.FieldFlexibleContent && f.LayoutName != "" {
		row[types.LayoutField] = f.LayoutName
	}
	return row
}

// rowFields returns the field map of one row. A flexible content row must
// hold the frame's layout; an empty one is given it.
func rowFields(v any, f types.AncestryFrame, path string) (map[string]any, error) {
	fields, err := mapOrNew(v, path)
	if err != nil {
		return nil, err
	}
	if f.Kind != types.FieldFlexibleContent || f.LayoutName == "" {
		return fields, nil
	}
	switch name, ok := fields[types.LayoutField].(string); {
	case !ok:
		fields[types.LayoutField] = f.LayoutName
	case name != f.LayoutName:
		return nil, fmt.Errorf("%w: %s is a %s row, want %s", ErrPathConflict, path, name, f.LayoutName)
	}
	return fields, nil
}

func mapOrNew(v any, path string) (map[string]any, error) {
	if IsEmpty(v) {
		return make(map[string]any), nil
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s holds %T, want field map", ErrPathConflict, path, v)
}

func rowsOrNew(v any, path string) ([]any, error) {
	if IsEmpty(v) {
		return nil, nil
	}
	if rows := asRows(v); rows != nil {
		return rows, nil
	}
	return nil, fmt.Errorf("%w: %s holds %T, want rows", ErrPathConflict, path, v)
}
