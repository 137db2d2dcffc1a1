package storage

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/contentops/slotfill/pkg/types"
)

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory implementation of Store for testing
type MemoryStore struct {
	mu          sync.RWMutex
	pages       map[int64]*memoryPage
	attachments map[int64]types.Attachment
	transients  map[string]memoryTransient
	// updateErrors fails UpdateField for the given selectors
	updateErrors map[string]error
	metaErr      error
	updates      []string
	now          func() time.Time
}

type memoryPage struct {
	page   types.Page
	fields []types.FieldNode
	values map[string]any
	meta   map[string]any
}

type memoryTransient struct {
	raw     []byte
	expires time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pages:        make(map[int64]*memoryPage),
		attachments:  make(map[int64]types.Attachment),
		transients:   make(map[string]memoryTransient),
		updateErrors: make(map[string]error),
		now:          time.Now,
	}
}

// FailUpdate makes every UpdateField call for selector return err
func (m *MemoryStore) FailUpdate(selector string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateErrors[selector] = err
}

// FailMeta makes every UpdateMeta call return err
func (m *MemoryStore) FailMeta(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metaErr = err
}

// SetClock replaces the time source used for transient expiry
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Updates returns the selectors of successful UpdateField calls in order
func (m *MemoryStore) Updates() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.updates)
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) ListPages(ctx context.Context) ([]types.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pages := make([]types.Page, 0, len(m.pages))
	for _, p := range m.pages {
		pages = append(pages, p.page)
	}
	slices.SortFunc(pages, func(a, b types.Page) int { return cmp.Compare(a.ID, b.ID) })
	return pages, nil
}

func (m *MemoryStore) GetPage(ctx context.Context, pageID int64) (*types.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPageNotFound, pageID)
	}
	page := p.page
	return &page, nil
}

func (m *MemoryStore) LoadFields(ctx context.Context, pageID int64) ([]types.FieldNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPageNotFound, pageID)
	}
	out := make([]types.FieldNode, len(p.fields))
	for i, f := range p.fields {
		node := schemaOnly(f)
		v, err := normalize(p.values[f.Name])
		if err != nil {
			return nil, err
		}
		node.Value = v
		out[i] = node
	}
	return out, nil
}

func (m *MemoryStore) ReadField(ctx context.Context, pageID int64, selector string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPageNotFound, pageID)
	}
	f, ok := resolveField(p.fields, selector)
	if !ok {
		return nil, fmt.Errorf("%w: %q on page %d", ErrFieldNotFound, selector, pageID)
	}
	return normalize(p.values[f.Name])
}

func (m *MemoryStore) UpdateField(ctx context.Context, pageID int64, selector string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.updateErrors[selector]; ok {
		return err
	}
	p, ok := m.pages[pageID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrPageNotFound, pageID)
	}
	f, ok := resolveField(p.fields, selector)
	if !ok {
		return fmt.Errorf("%w: %q on page %d", ErrFieldNotFound, selector, pageID)
	}
	v, err := normalize(value)
	if err != nil {
		return err
	}
	p.values[f.Name] = v
	p.page.UpdatedAt = m.now()
	m.updates = append(m.updates, selector)
	return nil
}

func (m *MemoryStore) UpdateMeta(ctx context.Context, pageID int64, entries []types.MetaEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.metaErr != nil {
		return m.metaErr
	}
	p, ok := m.pages[pageID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrPageNotFound, pageID)
	}
	for _, e := range entries {
		v, err := normalize(e.Value)
		if err != nil {
			return fmt.Errorf("meta %s: %w", e.Key, err)
		}
		p.meta[e.Key] = v
	}
	return nil
}

func (m *MemoryStore) ReadMeta(ctx context.Context, pageID int64) ([]types.MetaEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pages[pageID]
	if !ok {
		return nil, nil
	}
	keys := make([]string, 0, len(p.meta))
	for k := range p.meta {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	entries := make([]types.MetaEntry, len(keys))
	for i, k := range keys {
		entries[i] = types.MetaEntry{Key: k, Value: p.meta[k]}
	}
	return entries, nil
}

func (m *MemoryStore) ImportPage(ctx context.Context, page types.Page, fields []types.FieldNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if page.Status == "" {
		page.Status = "draft"
	}
	page.UpdatedAt = m.now()

	mp := &memoryPage{
		page:   page,
		fields: make([]types.FieldNode, len(fields)),
		values: make(map[string]any),
		meta:   make(map[string]any),
	}
	if old, ok := m.pages[page.ID]; ok {
		mp.meta = old.meta
	}
	for i, f := range fields {
		mp.fields[i] = schemaOnly(f)
		if f.Value == nil {
			continue
		}
		v, err := normalize(f.Value)
		if err != nil {
			return fmt.Errorf("import value %s: %w", f.Name, err)
		}
		mp.values[f.Name] = v
	}
	m.pages[page.ID] = mp
	return nil
}

func (m *MemoryStore) GetAttachment(ctx context.Context, id int64) (*types.Attachment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.attachments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrAttachmentNotFound, id)
	}
	return &a, nil
}

func (m *MemoryStore) ListAttachments(ctx context.Context) ([]types.Attachment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Attachment, 0, len(m.attachments))
	for _, a := range m.attachments {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b types.Attachment) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *MemoryStore) ImportAttachment(ctx context.Context, a types.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attachments[a.ID] = a
	return nil
}

func (m *MemoryStore) IsImageAsset(ctx context.Context, id int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.attachments[id]
	return ok && isImageMime(a.MimeType), nil
}

func (m *MemoryStore) GetTransient(ctx context.Context, name string, dst any) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.transients[name]
	if !ok || !m.now().Before(t.expires) {
		return false, nil
	}
	if err := json.Unmarshal(t.raw, dst); err != nil {
		return false, fmt.Errorf("decode transient %s: %w", name, err)
	}
	return true, nil
}

func (m *MemoryStore) SetTransient(ctx context.Context, name string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode transient %s: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.transients[name] = memoryTransient{raw: raw, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) DeleteTransient(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transients, name)
	return nil
}
