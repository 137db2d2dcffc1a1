package fields

import (
	"fmt"
	"maps"
	"slices"

	"github.com/contentops/slotfill/pkg/types"
)

// FallbackEntries addresses a container value as flat meta entries, the way
// the field plugin stores rows on disk:
//
//	gallery_rows            = 2
//	gallery_rows_0_photo    = 41
//	_gallery_rows_0_photo   = field_photo
//	hero_media_banner       = 17
//
// Row containers record their row count, or the ordered layout names for
// flexible content. Entries prefixed with "_" point back at the field key;
// refs carries them for the positions a write touched.
func FallbackEntries(name, key string, value any, refs []types.MetaEntry) []types.MetaEntry {
	b := &metaBuilder{index: make(map[string]int)}
	b.flatten(name, value)
	if key != "" {
		b.put("_"+name, key)
	}
	for _, r := range refs {
		b.put(r.Key, r.Value)
	}
	return b.entries
}

type metaBuilder struct {
	entries []types.MetaEntry
	index   map[string]int
}

// put adds an entry; a later value for the same key replaces the earlier one in place
func (b *metaBuilder) put(key string, value any) {
	if i, ok := b.index[key]; ok {
		b.entries[i].Value = value
		return
	}
	b.index[key] = len(b.entries)
	b.entries = append(b.entries, types.MetaEntry{Key: key, Value: value})
}

func (b *metaBuilder) flatten(prefix string, value any) {
	switch {
	case isRowList(value):
		rows := asRows(value)
		b.put(prefix, rowMarker(rows))
		for i, row := range rows {
			fields := asMap(row)
			for _, k := range sortedKeys(fields) {
				if k == types.LayoutField {
					continue
				}
				b.flatten(fmt.Sprintf("%s_%d_%s", prefix, i, k), fields[k])
			}
		}
	case asMap(value) != nil:
		fields := asMap(value)
		for _, k := range sortedKeys(fields) {
			b.flatten(prefix+"_"+k, fields[k])
		}
	default:
		b.put(prefix, value)
	}
}

func rowMarker(rows []any) any {
	layouts := make([]any, 0, len(rows))
	for _, r := range rows {
		name, ok := asMap(r)[types.LayoutField].(string)
		if !ok {
			return len(rows)
		}
		layouts = append(layouts, name)
	}
	return layouts
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
