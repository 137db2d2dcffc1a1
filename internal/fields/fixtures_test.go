package fields

import "github.com/contentops/slotfill/pkg/types"

func intp(i int) *int { return &i }

func imageField(key, name, label string) types.FieldNode {
	return types.FieldNode{Key: key, Name: name, Label: label, Kind: types.FieldImage}
}

// landingPage has a hero image, a three-row gallery repeater, a group with
// a nested image, a gallery and an unknown text field.
func landingPage() []types.FieldNode {
	return []types.FieldNode{
		{Key: "field_hero", Name: "hero", Label: "Hero", Kind: types.FieldImage, Value: int64(5)},
		{Key: "field_title", Name: "title", Label: "Title", Kind: "text", Value: "Welcome"},
		{
			Key: "field_rows", Name: "rows", Label: "Rows", Kind: types.FieldRepeater,
			Children: []types.FieldNode{
				imageField("field_photo", "photo", "Photo"),
				{Key: "field_caption", Name: "caption", Label: "Caption", Kind: "text"},
			},
			Value: []any{
				map[string]any{"photo": int64(11), "caption": "first"},
				map[string]any{"photo": nil, "caption": "second"},
				map[string]any{"photo": "", "caption": "third"},
			},
		},
		{
			Key: "field_media", Name: "media", Label: "Media", Kind: types.FieldGroup,
			Children: []types.FieldNode{
				imageField("field_banner", "banner", "Banner"),
			},
			Value: map[string]any{"banner": int64(0), "note": "keep"},
		},
		{Key: "field_gallery", Name: "gallery", Label: "Gallery", Kind: types.FieldGallery},
	}
}

// sectionsPage has an empty repeater with a nested empty repeater and a
// flexible content field without rows; two of its three layouts hold an image.
func sectionsPage() []types.FieldNode {
	return []types.FieldNode{
		{
			Key: "field_sections", Name: "sections", Label: "Sections", Kind: types.FieldRepeater,
			Children: []types.FieldNode{
				imageField("field_cover", "cover", "Cover"),
				{
					Key: "field_slides", Name: "slides", Label: "Slides", Kind: types.FieldRepeater,
					Children: []types.FieldNode{imageField("field_slide", "slide", "Slide")},
				},
			},
		},
		{
			Key: "field_blocks", Name: "blocks", Label: "Blocks", Kind: types.FieldFlexibleContent,
			Layouts: []types.LayoutVariant{
				{Name: "hero_block", Label: "Hero Block", Fields: []types.FieldNode{imageField("field_bg", "background", "Background")}},
				{Name: "quote", Label: "Quote", Fields: []types.FieldNode{{Key: "field_q", Name: "text", Label: "Text", Kind: "text"}}},
				{Name: "card", Label: "Card", Fields: []types.FieldNode{imageField("field_icon", "icon", "Icon")}},
			},
		},
	}
}
