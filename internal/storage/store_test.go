package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentops/slotfill/pkg/types"
)

const fixtureYAML = `
attachments:
  - id: 10
    title: Beach
    mime_type: image/jpeg
  - id: 11
    title: Brochure
    mime_type: application/pdf
pages:
  - id: 1
    title: Home
    status: publish
    fields:
      - key: field_hero
        name: hero
        label: Hero
        type: image
        value: 10
      - key: field_rows
        name: rows
        label: Rows
        type: repeater
        sub_fields:
          - key: field_photo
            name: photo
            label: Photo
            type: image
        value:
          - photo: 10
          - photo: ""
  - id: 2
    title: About
    fields: []
`

type storeFactory func(t *testing.T) Store

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "content.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func seeded(t *testing.T, factory storeFactory) Store {
	t.Helper()
	s := factory(t)
	fx, err := ReadFixture(strings.NewReader(fixtureYAML))
	require.NoError(t, err)
	require.NoError(t, fx.Import(context.Background(), s))
	return s
}

func TestStorePages(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := seeded(t, factory)

			pages, err := s.ListPages(ctx)
			require.NoError(t, err)
			require.Len(t, pages, 2)
			assert.Equal(t, "Home", pages[0].Title)
			assert.Equal(t, "publish", pages[0].Status)
			assert.Equal(t, "draft", pages[1].Status)

			_, err = s.GetPage(ctx, 99)
			assert.ErrorIs(t, err, ErrPageNotFound)
			_, err = s.LoadFields(ctx, 99)
			assert.ErrorIs(t, err, ErrPageNotFound)
		})
	}
}

func TestStoreLoadFields(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := seeded(t, factory)

			fields, err := s.LoadFields(ctx, 1)
			require.NoError(t, err)
			require.Len(t, fields, 2)

			assert.Equal(t, types.FieldImage, fields[0].Kind)
			assert.Equal(t, int64(10), fields[0].Value)

			want := []any{
				map[string]any{"photo": int64(10)},
				map[string]any{"photo": ""},
			}
			if diff := cmp.Diff(want, fields[1].Value); diff != "" {
				t.Errorf("rows mismatch (-want +got):\n%s", diff)
			}
			require.Len(t, fields[1].Children, 1)
			assert.Nil(t, fields[1].Children[0].Value)
		})
	}
}

func TestStoreUpdateField(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := seeded(t, factory)

			require.NoError(t, s.UpdateField(ctx, 1, "hero", int64(11)))
			v, err := s.ReadField(ctx, 1, "field_hero")
			require.NoError(t, err)
			assert.Equal(t, int64(11), v)

			// by key
			rows := []any{map[string]any{"photo": int64(12)}}
			require.NoError(t, s.UpdateField(ctx, 1, "field_rows", rows))
			v, err = s.ReadField(ctx, 1, "rows")
			require.NoError(t, err)
			assert.Equal(t, rows, v)

			err = s.UpdateField(ctx, 1, "missing", int64(1))
			assert.ErrorIs(t, err, ErrFieldNotFound)
		})
	}
}

func TestStoreReadIsolated(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := seeded(t, factory)

			v, err := s.ReadField(ctx, 1, "rows")
			require.NoError(t, err)
			v.([]any)[0].(map[string]any)["photo"] = int64(99)

			again, err := s.ReadField(ctx, 1, "rows")
			require.NoError(t, err)
			assert.Equal(t, int64(10), again.([]any)[0].(map[string]any)["photo"])
		})
	}
}

func TestStoreMeta(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := seeded(t, factory)

			require.NoError(t, s.UpdateMeta(ctx, 1, []types.MetaEntry{
				{Key: "rows", Value: 2},
				{Key: "rows_0_photo", Value: int64(10)},
				{Key: "_rows_0_photo", Value: "field_photo"},
			}))
			require.NoError(t, s.UpdateMeta(ctx, 1, []types.MetaEntry{{Key: "rows", Value: 3}}))

			entries, err := s.ReadMeta(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, []types.MetaEntry{
				{Key: "_rows_0_photo", Value: "field_photo"},
				{Key: "rows", Value: int64(3)},
				{Key: "rows_0_photo", Value: int64(10)},
			}, entries)

			assert.ErrorIs(t, s.UpdateMeta(ctx, 42, nil), ErrPageNotFound)
		})
	}
}

func TestStoreAttachments(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := seeded(t, factory)

			tests := []struct {
				id    int64
				image bool
			}{
				{10, true},
				{11, false},
				{12, false},
			}
			for _, tt := range tests {
				ok, err := s.IsImageAsset(ctx, tt.id)
				require.NoError(t, err)
				assert.Equal(t, tt.image, ok, "attachment %d", tt.id)
			}

			all, err := s.ListAttachments(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 2)

			_, err = s.GetAttachment(ctx, 12)
			assert.True(t, errors.Is(err, ErrAttachmentNotFound))
		})
	}
}

func TestStoreTransients(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			stats := map[int64]types.PageStats{1: {Total: 3, Empty: 1, Filled: 2}}
			require.NoError(t, s.SetTransient(ctx, "stats", stats, time.Minute))

			var got map[int64]types.PageStats
			ok, err := s.GetTransient(ctx, "stats", &got)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, stats, got)

			require.NoError(t, s.DeleteTransient(ctx, "stats"))
			ok, err = s.GetTransient(ctx, "stats", &got)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.SetTransient(ctx, "gone", 1, -time.Second))
			var n int
			ok, err = s.GetTransient(ctx, "gone", &n)
			require.NoError(t, err)
			assert.False(t, ok, "expired transient")
		})
	}
}

func TestMemoryStoreFailures(t *testing.T) {
	ctx := context.Background()
	s := seeded(t, stores()["memory"]).(*MemoryStore)
	boom := errors.New("disk full")

	s.FailUpdate("hero", boom)
	assert.ErrorIs(t, s.UpdateField(ctx, 1, "hero", int64(1)), boom)
	require.NoError(t, s.UpdateField(ctx, 1, "field_hero", int64(1)))
	assert.Equal(t, []string{"field_hero"}, s.Updates())

	s.FailMeta(boom)
	assert.ErrorIs(t, s.UpdateMeta(ctx, 1, nil), boom)
}

func TestReadFixtureRejectsUnknownFields(t *testing.T) {
	_, err := ReadFixture(strings.NewReader("pages:\n  - id: 1\n    colour: red\n"))
	assert.Error(t, err)

	_, err = ReadFixture(strings.NewReader("pages:\n  - title: no id\n"))
	assert.Error(t, err)
}
