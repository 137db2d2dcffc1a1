package fields

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentops/slotfill/pkg/types"
)

func TestApplyPreservesSiblingRows(t *testing.T) {
	page := landingPage()
	current := TreeFromFields(page)
	plan := Plan(Walk(page), []int{1, 3}, ids(2))

	res := Apply(current, plan)
	require.True(t, res.Success())
	require.Len(t, res.Updates, 1)
	assert.Equal(t, "rows", res.Updates[0].Name)
	assert.Equal(t, "field_rows", res.Updates[0].Key)
	assert.True(t, res.Updates[0].Nested())

	want := []any{
		map[string]any{"photo": int64(100), "caption": "first"},
		map[string]any{"photo": nil, "caption": "second"},
		map[string]any{"photo": int64(101), "caption": "third"},
	}
	if diff := cmp.Diff(want, res.Tree["rows"]); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	// the input tree is untouched
	orig := landingPage()[2].Value
	if diff := cmp.Diff(orig, current["rows"]); diff != "" {
		t.Errorf("current tree was mutated (-want +got):\n%s", diff)
	}
}

func TestApplySimpleSlots(t *testing.T) {
	page := landingPage()
	slots := Walk(page)
	plan := Plan(slots, []int{0, 5}, ids(3))

	res := Apply(TreeFromFields(page), plan)
	require.True(t, res.Success())
	require.Len(t, res.Updates, 2)

	assert.Equal(t, int64(100), res.Tree["hero"])
	assert.Equal(t, []any{int64(101), int64(102)}, res.Tree["gallery"])
	assert.False(t, res.Updates[0].Nested())
	assert.Equal(t, "Welcome", res.Tree["title"])
}

func TestApplyGroupKeepsSiblings(t *testing.T) {
	page := landingPage()
	plan := Plan(Walk(page), []int{4}, ids(1))

	res := Apply(TreeFromFields(page), plan)
	require.True(t, res.Success())

	want := map[string]any{"banner": int64(100), "note": "keep"}
	if diff := cmp.Diff(want, res.Tree["media"]); diff != "" {
		t.Errorf("media mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyTemplateRowsMerge(t *testing.T) {
	page := sectionsPage()
	slots := Walk(page)

	cover := Plan(slots, []int{0}, ids(3))
	slides := Plan(slots, []int{1}, []int64{200, 201})
	res := Apply(TreeFromFields(page), append(cover, slides...))
	require.True(t, res.Success())
	require.Len(t, res.Updates, 1, "one write per container")
	assert.Len(t, res.Updates[0].Instructions, 2)

	want := []any{
		map[string]any{"cover": int64(100), "slides": []any{map[string]any{"slide": int64(200)}}},
		map[string]any{"cover": int64(101), "slides": []any{map[string]any{"slide": int64(201)}}},
		map[string]any{"cover": int64(102)},
	}
	if diff := cmp.Diff(want, res.Tree["sections"]); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyTemplateReplacesStaleValue(t *testing.T) {
	page := sectionsPage()
	slots := Walk(page)
	current := TreeFromFields(page)
	current["sections"] = ""

	res := Apply(current, Plan(slots, []int{0}, ids(1)))
	require.True(t, res.Success())
	assert.Equal(t, []any{map[string]any{"cover": int64(100)}}, res.Tree["sections"])
}

func TestApplyFlexibleTemplate(t *testing.T) {
	page := sectionsPage()
	plan := Plan(Walk(page), []int{2}, ids(2))

	res := Apply(TreeFromFields(page), plan)
	require.True(t, res.Success())

	want := []any{
		map[string]any{types.LayoutField: "hero_block", "background": int64(100)},
		map[string]any{types.LayoutField: "hero_block", "background": int64(101)},
	}
	if diff := cmp.Diff(want, res.Tree["blocks"]); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyFlexibleTwoLayouts(t *testing.T) {
	page := sectionsPage()
	slots := Walk(page)
	hero := Plan(slots, []int{2}, ids(2))
	card := Plan(slots, []int{3}, []int64{200})

	res := Apply(TreeFromFields(page), append(hero, card...))
	require.True(t, res.Success())

	want := []any{
		map[string]any{types.LayoutField: "hero_block", "background": int64(100)},
		map[string]any{types.LayoutField: "hero_block", "background": int64(101)},
		map[string]any{types.LayoutField: "card", "icon": int64(200)},
	}
	if diff := cmp.Diff(want, res.Tree["blocks"]); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}

	got := make(map[string]any)
	for _, e := range res.Updates[0].Fallback {
		got[e.Key] = e.Value
	}
	assert.Equal(t, []any{"hero_block", "hero_block", "card"}, got["blocks"])
	assert.Equal(t, "field_icon", got["_blocks_2_icon"])
	assert.Equal(t, "field_bg", got["_blocks_1_background"])
}

func TestApplyFlexibleAppendsAfterStoredRows(t *testing.T) {
	page := sectionsPage()
	page[1].Value = []any{map[string]any{types.LayoutField: "quote", "text": "hi"}}
	slots := Walk(page)
	require.Len(t, slots, 4)

	res := Apply(TreeFromFields(page), Plan(slots, []int{3}, ids(1)))
	require.True(t, res.Success())

	want := []any{
		map[string]any{types.LayoutField: "quote", "text": "hi"},
		map[string]any{types.LayoutField: "card", "icon": int64(100)},
	}
	if diff := cmp.Diff(want, res.Tree["blocks"]); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyFlexibleLayoutMismatch(t *testing.T) {
	current := ValueTree{"blocks": []any{map[string]any{types.LayoutField: "quote", "text": "hi"}}}
	res := Apply(current, []types.AssignmentInstruction{{
		Key: "field_icon", Name: "icon", Kind: types.SlotRepeaterImage,
		AttachmentIDs: []int64{7},
		Ancestry: []types.AncestryFrame{{
			Key: "field_blocks", Name: "blocks", Kind: types.FieldFlexibleContent,
			RowIndex: intp(0), LayoutName: "card",
		}},
	}})

	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0].Err, ErrPathConflict)
	assert.Empty(t, res.Updates)
	assert.Equal(t, current["blocks"], res.Tree["blocks"])
}

func TestApplyPathConflict(t *testing.T) {
	page := landingPage()
	slots := Walk(page)
	current := TreeFromFields(page)
	current["rows"] = "corrupted"

	res := Apply(current, Plan(slots, []int{0, 1}, ids(2)))
	assert.False(t, res.Success())
	require.Len(t, res.Failures, 1)
	assert.True(t, errors.Is(res.Failures[0].Err, ErrPathConflict))
	assert.Equal(t, "photo", res.Failures[0].Instruction.Name)

	require.Len(t, res.Updates, 1)
	assert.Equal(t, "hero", res.Updates[0].Name)
	assert.Equal(t, "corrupted", res.Tree["rows"])
}

func TestApplyNoAttachments(t *testing.T) {
	res := Apply(ValueTree{}, []types.AssignmentInstruction{
		{Key: "field_hero", Name: "hero", Kind: types.SlotImage},
	})
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0].Err, ErrNoAttachments)
	assert.Empty(t, res.Updates)
}

func TestApplyThenWalk(t *testing.T) {
	page := landingPage()
	slots := Walk(page)
	plan := Plan(slots, []int{2, 3, 4, 5}, ids(5))

	res := Apply(TreeFromFields(page), plan)
	require.True(t, res.Success())

	for i := range page {
		page[i].Value = res.Tree[page[i].Name]
	}
	after := Walk(page)
	require.Len(t, after, len(slots))
	for _, i := range []int{2, 3, 4, 5} {
		assert.True(t, after[i].HasValue, after[i].Label)
	}
	assert.Equal(t, types.PageStats{Total: 6, Filled: 6}, Stats(after))
}

func TestGalleryFirstVersusLast(t *testing.T) {
	nodes := func(galleryFirst bool) []types.FieldNode {
		g := types.FieldNode{Key: "field_g", Name: "g", Label: "G", Kind: types.FieldGallery}
		a := imageField("field_a", "a", "A")
		if galleryFirst {
			return []types.FieldNode{g, a}
		}
		return []types.FieldNode{a, g}
	}

	first := nodes(true)
	res := Apply(TreeFromFields(first), Plan(Walk(first), []int{0, 1}, ids(3)))
	assert.Equal(t, []any{int64(100), int64(101), int64(102)}, res.Tree["g"])
	assert.Nil(t, res.Tree["a"])

	last := nodes(false)
	res = Apply(TreeFromFields(last), Plan(Walk(last), []int{0, 1}, ids(3)))
	assert.Equal(t, int64(100), res.Tree["a"])
	assert.Equal(t, []any{int64(101), int64(102)}, res.Tree["g"])
}

func TestFallbackEntries(t *testing.T) {
	page := landingPage()
	plan := Plan(Walk(page), []int{1}, ids(1))
	res := Apply(TreeFromFields(page), plan)
	require.Len(t, res.Updates, 1)

	got := make(map[string]any)
	for _, e := range res.Updates[0].Fallback {
		got[e.Key] = e.Value
	}
	want := map[string]any{
		"rows":           3,
		"rows_0_caption": "first",
		"rows_0_photo":   int64(100),
		"rows_1_caption": "second",
		"rows_1_photo":   nil,
		"rows_2_caption": "third",
		"rows_2_photo":   "",
		"_rows":          "field_rows",
		"_rows_0_photo":  "field_photo",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fallback mismatch (-want +got):\n%s", diff)
	}
}

func TestFallbackEntriesTemplate(t *testing.T) {
	page := sectionsPage()
	plan := Plan(Walk(page), []int{1, 2}, []int64{7, 8, 9})
	res := Apply(TreeFromFields(page), plan)
	require.Len(t, res.Updates, 1)
	assert.Equal(t, "sections", res.Updates[0].Name)

	got := make(map[string]any)
	for _, e := range res.Updates[0].Fallback {
		got[e.Key] = e.Value
	}
	assert.Equal(t, 3, got["sections"])
	assert.Equal(t, 1, got["sections_2_slides"])
	assert.Equal(t, int64(9), got["sections_2_slides_0_slide"])
	assert.Equal(t, "field_slides", got["_sections_1_slides"])
	assert.Equal(t, "field_slide", got["_sections_2_slides_0_slide"])
}

func TestFallbackFlexibleLayouts(t *testing.T) {
	entries := FallbackEntries("blocks", "field_blocks", []any{
		map[string]any{types.LayoutField: "quote", "text": "hi"},
		map[string]any{types.LayoutField: "hero_block", "background": int64(4)},
	}, nil)

	require.Len(t, entries, 4)
	assert.Equal(t, types.MetaEntry{Key: "blocks", Value: []any{"quote", "hero_block"}}, entries[0])
	assert.Equal(t, types.MetaEntry{Key: "blocks_0_text", Value: "hi"}, entries[1])
	assert.Equal(t, types.MetaEntry{Key: "blocks_1_background", Value: int64(4)}, entries[2])
	assert.Equal(t, types.MetaEntry{Key: "_blocks", Value: "field_blocks"}, entries[3])
}
