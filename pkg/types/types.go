package types

import "time"

// FieldKind is the kind of a custom field as declared in the page schema
type FieldKind string

const (
	FieldImage           FieldKind = "image"
	FieldGallery         FieldKind = "gallery"
	FieldRepeater        FieldKind = "repeater"
	FieldFlexibleContent FieldKind = "flexible_content"
	FieldGroup           FieldKind = "group"
)

// Known reports whether the walker understands this field kind.
func (k FieldKind) Known() bool {
	switch k {
	case FieldImage, FieldGallery, FieldRepeater, FieldFlexibleContent, FieldGroup:
		return true
	}
	return false
}

// IsRowContainer reports whether values of this kind are ordered row sequences
func (k FieldKind) IsRowContainer() bool {
	return k == FieldRepeater || k == FieldFlexibleContent
}

// SlotKind classifies an assignable image slot
type SlotKind string

const (
	SlotImage               SlotKind = "image"
	SlotGallery             SlotKind = "gallery"
	SlotRepeaterImage       SlotKind = "repeater_image"
	SlotNestedRepeaterImage SlotKind = "nested_repeater_image"
)

// Known reports whether s is one of the slot kinds the planner and writer accept
func (s SlotKind) Known() bool {
	switch s {
	case SlotImage, SlotGallery, SlotRepeaterImage, SlotNestedRepeaterImage:
		return true
	}
	return false
}

// LayoutField is the row property naming a flexible content row's layout variant
const LayoutField = "acf_fc_layout"

// FieldNode is one field of a page schema together with its stored value.
// Nested nodes (children and layout fields) carry schema only; their values
// are read from the parent container's value.
type FieldNode struct {
	Key      string          `json:"key" yaml:"key"`
	Name     string          `json:"name" yaml:"name"`
	Label    string          `json:"label" yaml:"label"`
	Kind     FieldKind       `json:"type" yaml:"type"`
	Value    any             `json:"value,omitempty" yaml:"value,omitempty"`
	Children []FieldNode     `json:"sub_fields,omitempty" yaml:"sub_fields,omitempty"`
	Layouts  []LayoutVariant `json:"layouts,omitempty" yaml:"layouts,omitempty"`
}

// LayoutVariant is a named field set of a flexible content field
type LayoutVariant struct {
	Name   string      `json:"name" yaml:"name"`
	Label  string      `json:"label" yaml:"label"`
	Fields []FieldNode `json:"sub_fields,omitempty" yaml:"sub_fields,omitempty"`
}

// AncestryFrame describes one container between the page root and a slot
type AncestryFrame struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Kind        FieldKind `json:"type"`
	RowIndex    *int      `json:"row_index,omitempty"`
	LayoutName  string    `json:"layout_name,omitempty"`
	LayoutLabel string    `json:"layout_label,omitempty"`
}

// HasRow reports whether the frame addresses an existing row
func (f AncestryFrame) HasRow() bool {
	return f.RowIndex != nil
}

// SlotDescriptor is one assignable image slot discovered on a page
type SlotDescriptor struct {
	Key        string          `json:"key"`
	Name       string          `json:"name"`
	Label      string          `json:"label"`
	FieldLabel string          `json:"field_label"`
	Kind       SlotKind        `json:"type"`
	Ancestry   []AncestryFrame `json:"ancestry_path"`
	HasValue   bool            `json:"has_value"`
	Value      any             `json:"-"`
}

// Depth is the number of containers enclosing the slot
func (d SlotDescriptor) Depth() int {
	return len(d.Ancestry)
}

// Template reports whether the slot sits below a repeater or flexible
// content field that has no stored rows yet, so writing creates rows.
func (d SlotDescriptor) Template() bool {
	return TemplatePath(d.Ancestry)
}

// RowBound reports whether every row container above the slot addresses an existing row
func (d SlotDescriptor) RowBound() bool {
	return len(d.Ancestry) > 0 && !d.Template()
}

// Parent returns the innermost enclosing container, if any
func (d SlotDescriptor) Parent() (AncestryFrame, bool) {
	if len(d.Ancestry) == 0 {
		return AncestryFrame{}, false
	}
	return d.Ancestry[len(d.Ancestry)-1], true
}

// TemplatePath reports whether any row container in path lacks a row index
func TemplatePath(path []AncestryFrame) bool {
	for _, f := range path {
		if f.Kind.IsRowContainer() && !f.HasRow() {
			return true
		}
	}
	return false
}

// AssignmentInstruction tells the tree writer which images go into one slot
type AssignmentInstruction struct {
	Key           string          `json:"field_key"`
	Name          string          `json:"field_name"`
	Kind          SlotKind        `json:"field_type"`
	AttachmentIDs []int64         `json:"attachment_ids"`
	Ancestry      []AncestryFrame `json:"ancestry_path,omitempty"`
}

// Template reports whether the instruction creates new rows
func (a AssignmentInstruction) Template() bool {
	return TemplatePath(a.Ancestry)
}

// FlattenedSlot is the wire form of a SlotDescriptor returned by discovery
type FlattenedSlot struct {
	Index      int             `json:"index"`
	Key        string          `json:"key"`
	Name       string          `json:"name"`
	Label      string          `json:"label"`
	Kind       SlotKind        `json:"type"`
	ParentKey  string          `json:"parent_key"`
	ParentName string          `json:"parent_name"`
	Ancestry   []AncestryFrame `json:"ancestry_path"`
	RowIndex   *int            `json:"row_index,omitempty"`
	LayoutName string          `json:"layout_name,omitempty"`
	HasValue   bool            `json:"has_value"`
}

// DiscoverResponse is the result of slot discovery for one page
type DiscoverResponse struct {
	PageID  int64           `json:"page_id"`
	Fields  []FlattenedSlot `json:"fields"`
	Count   int             `json:"count"`
	Message string          `json:"message,omitempty"`
}

// Assignment is one inbound assignment record of a submit request
type Assignment struct {
	FieldKey      string          `json:"field_key"`
	FieldType     SlotKind        `json:"field_type"`
	FieldName     string          `json:"field_name"`
	AttachmentIDs []int64         `json:"attachment_ids"`
	ParentKey     string          `json:"parent_key,omitempty"`
	ParentName    string          `json:"parent_name,omitempty"`
	Ancestry      []AncestryFrame `json:"ancestry_path,omitempty"`
	LayoutName    string          `json:"layout_name,omitempty"`
}

// SubmitRequest carries the assignments for one page
type SubmitRequest struct {
	PageID      int64        `json:"page_id"`
	Assignments []Assignment `json:"assignments"`
}

// SubmitResponse summarises a successful submit
type SubmitResponse struct {
	BatchID            string `json:"batch_id"`
	ProcessedCount     int    `json:"processed_count"`
	FieldsUpdatedCount int    `json:"fields_updated_count"`
	SkippedCount       int    `json:"skipped_count"`
	Message            string `json:"message"`
}

// PlanRequest asks for a preview of the assignments for a page
type PlanRequest struct {
	PageID          int64   `json:"page_id"`
	ImageIDs        []int64 `json:"image_ids"`
	Slots           []int   `json:"slots,omitempty"` // empty selects every slot
	ReplaceExisting *bool   `json:"replace_existing,omitempty"`
}

// Replace reports whether filled slots may be overwritten; unset means yes
func (r PlanRequest) Replace() bool {
	return r.ReplaceExisting == nil || *r.ReplaceExisting
}

// PlanResponse is the outcome of a plan preview
type PlanResponse struct {
	PageID      int64        `json:"page_id"`
	Assignments []Assignment `json:"assignments"`
	Selected    []int        `json:"selected"`
	Hint        string       `json:"hint,omitempty"`
}

// PageStats counts image slots on one page
type PageStats struct {
	Total  int `json:"total"`
	Empty  int `json:"empty"`
	Filled int `json:"filled"`
}

// Page is a content item that carries custom fields
type Page struct {
	ID        int64     `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Status    string    `json:"status" yaml:"status"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// Attachment is an item of the media library
type Attachment struct {
	ID       int64  `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	MimeType string `json:"mime_type" yaml:"mime_type"`
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
}

// MetaEntry is one flat, directly addressable page meta value
type MetaEntry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Confirmation represents user confirmation settings
type Confirmation struct {
	BatchMode   bool          `json:"batch_mode"`
	AutoApprove bool          `json:"auto_approve"`
	Timeout     time.Duration `json:"timeout"`
	DefaultDeny bool          `json:"default_deny"`
}
