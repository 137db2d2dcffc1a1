package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/contentops/slotfill/pkg/types"
)

var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft',
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS page_fields (
	page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	field_key TEXT NOT NULL,
	field_name TEXT NOT NULL,
	definition JSON NOT NULL,
	PRIMARY KEY (page_id, field_name)
);

CREATE TABLE IF NOT EXISTS field_values (
	page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
	field_name TEXT NOT NULL,
	value JSON,
	PRIMARY KEY (page_id, field_name)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS post_meta (
	page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
	meta_key TEXT NOT NULL,
	meta_value JSON,
	PRIMARY KEY (page_id, meta_key)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS attachments (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	mime_type TEXT NOT NULL,
	url TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS transients (
	name TEXT PRIMARY KEY,
	value JSON NOT NULL,
	expires_at INTEGER NOT NULL
);
`

// SQLiteStore persists pages, values, attachments and transients in one SQLite database
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (and if needed creates) the database at path
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// single writer; keeps read-modify-write of one container serialized
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Ping checks the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListPages(ctx context.Context) ([]types.Page, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, status, updated_at FROM pages ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []types.Page
	for rows.Next() {
		var p types.Page
		var updated int64
		if err := rows.Scan(&p.ID, &p.Title, &p.Status, &updated); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		p.UpdatedAt = time.Unix(updated, 0).UTC()
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (s *SQLiteStore) GetPage(ctx context.Context, pageID int64) (*types.Page, error) {
	var p types.Page
	var updated int64
	err := s.db.QueryRowContext(ctx, `SELECT id, title, status, updated_at FROM pages WHERE id = ?`, pageID).
		Scan(&p.ID, &p.Title, &p.Status, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrPageNotFound, pageID)
	}
	if err != nil {
		return nil, fmt.Errorf("get page %d: %w", pageID, err)
	}
	p.UpdatedAt = time.Unix(updated, 0).UTC()
	return &p, nil
}

func (s *SQLiteStore) LoadFields(ctx context.Context, pageID int64) ([]types.FieldNode, error) {
	if _, err := s.GetPage(ctx, pageID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.definition, v.value
		FROM page_fields f
		LEFT JOIN field_values v ON v.page_id = f.page_id AND v.field_name = f.field_name
		WHERE f.page_id = ?
		ORDER BY f.position`, pageID)
	if err != nil {
		return nil, fmt.Errorf("load fields for page %d: %w", pageID, err)
	}
	defer rows.Close()

	var fields []types.FieldNode
	for rows.Next() {
		var def string
		var value sql.NullString
		if err := rows.Scan(&def, &value); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		var node types.FieldNode
		if err := json.Unmarshal([]byte(def), &node); err != nil {
			return nil, fmt.Errorf("decode field definition: %w", err)
		}
		if value.Valid {
			if node.Value, err = decodeValue(value.String); err != nil {
				return nil, fmt.Errorf("field %s: %w", node.Name, err)
			}
		}
		fields = append(fields, node)
	}
	return fields, rows.Err()
}

// resolve maps a name or key to the stored field name
func (s *SQLiteStore) resolve(ctx context.Context, pageID int64, selector string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `
		SELECT field_name FROM page_fields
		WHERE page_id = ? AND (field_name = ? OR field_key = ?)
		ORDER BY field_name = ? DESC
		LIMIT 1`, pageID, selector, selector, selector).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %q on page %d", ErrFieldNotFound, selector, pageID)
	}
	if err != nil {
		return "", fmt.Errorf("resolve field %q: %w", selector, err)
	}
	return name, nil
}

func (s *SQLiteStore) ReadField(ctx context.Context, pageID int64, selector string) (any, error) {
	name, err := s.resolve(ctx, pageID, selector)
	if err != nil {
		return nil, err
	}
	var value sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT value FROM field_values WHERE page_id = ? AND field_name = ?`, pageID, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !value.Valid) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read field %s: %w", name, err)
	}
	return decodeValue(value.String)
}

func (s *SQLiteStore) UpdateField(ctx context.Context, pageID int64, selector string, value any) error {
	name, err := s.resolve(ctx, pageID, selector)
	if err != nil {
		return err
	}
	encoded, err := encodeValue(value)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO field_values (page_id, field_name, value) VALUES (?, ?, ?)
		ON CONFLICT (page_id, field_name) DO UPDATE SET value = excluded.value`,
		pageID, name, encoded); err != nil {
		return fmt.Errorf("update field %s: %w", name, err)
	}
	if err := s.touch(ctx, tx, pageID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) UpdateMeta(ctx context.Context, pageID int64, entries []types.MetaEntry) error {
	if _, err := s.GetPage(ctx, pageID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO post_meta (page_id, meta_key, meta_value) VALUES (?, ?, ?)
		ON CONFLICT (page_id, meta_key) DO UPDATE SET meta_value = excluded.meta_value`)
	if err != nil {
		return fmt.Errorf("prepare meta update: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		encoded, err := encodeValue(e.Value)
		if err != nil {
			return fmt.Errorf("meta %s: %w", e.Key, err)
		}
		if _, err := stmt.ExecContext(ctx, pageID, e.Key, encoded); err != nil {
			return fmt.Errorf("write meta %s: %w", e.Key, err)
		}
	}
	if err := s.touch(ctx, tx, pageID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ReadMeta(ctx context.Context, pageID int64) ([]types.MetaEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT meta_key, meta_value FROM post_meta WHERE page_id = ? ORDER BY meta_key`, pageID)
	if err != nil {
		return nil, fmt.Errorf("read meta for page %d: %w", pageID, err)
	}
	defer rows.Close()

	var entries []types.MetaEntry
	for rows.Next() {
		var e types.MetaEntry
		var raw sql.NullString
		if err := rows.Scan(&e.Key, &raw); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		if raw.Valid {
			if e.Value, err = decodeValue(raw.String); err != nil {
				return nil, fmt.Errorf("meta %s: %w", e.Key, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) ImportPage(ctx context.Context, page types.Page, fields []types.FieldNode) error {
	if page.Status == "" {
		page.Status = "draft"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pages (id, title, status, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title, status = excluded.status, updated_at = excluded.updated_at`,
		page.ID, page.Title, page.Status, s.now().Unix()); err != nil {
		return fmt.Errorf("import page %d: %w", page.ID, err)
	}
	for _, table := range []string{"page_fields", "field_values"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE page_id = ?`, page.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, f := range fields {
		def, err := json.Marshal(schemaOnly(f))
		if err != nil {
			return fmt.Errorf("encode field %s: %w", f.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO page_fields (page_id, position, field_key, field_name, definition) VALUES (?, ?, ?, ?, ?)`,
			page.ID, i, f.Key, f.Name, string(def)); err != nil {
			return fmt.Errorf("import field %s: %w", f.Name, err)
		}
		if f.Value == nil {
			continue
		}
		value, err := encodeValue(f.Value)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO field_values (page_id, field_name, value) VALUES (?, ?, ?)`,
			page.ID, f.Name, value); err != nil {
			return fmt.Errorf("import value %s: %w", f.Name, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) touch(ctx context.Context, tx *sql.Tx, pageID int64) error {
	if _, err := tx.ExecContext(ctx, `UPDATE pages SET updated_at = ? WHERE id = ?`, s.now().Unix(), pageID); err != nil {
		return fmt.Errorf("touch page %d: %w", pageID, err)
	}
	return nil
}

func (s *SQLiteStore) GetAttachment(ctx context.Context, id int64) (*types.Attachment, error) {
	var a types.Attachment
	err := s.db.QueryRowContext(ctx, `SELECT id, title, mime_type, url FROM attachments WHERE id = ?`, id).
		Scan(&a.ID, &a.Title, &a.MimeType, &a.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrAttachmentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get attachment %d: %w", id, err)
	}
	return &a, nil
}

func (s *SQLiteStore) ListAttachments(ctx context.Context) ([]types.Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, mime_type, url FROM attachments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	var out []types.Attachment
	for rows.Next() {
		var a types.Attachment
		if err := rows.Scan(&a.ID, &a.Title, &a.MimeType, &a.URL); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ImportAttachment(ctx context.Context, a types.Attachment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (id, title, mime_type, url) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title, mime_type = excluded.mime_type, url = excluded.url`,
		a.ID, a.Title, a.MimeType, a.URL)
	if err != nil {
		return fmt.Errorf("import attachment %d: %w", a.ID, err)
	}
	return nil
}

func (s *SQLiteStore) IsImageAsset(ctx context.Context, id int64) (bool, error) {
	a, err := s.GetAttachment(ctx, id)
	if errors.Is(err, ErrAttachmentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return isImageMime(a.MimeType), nil
}

func (s *SQLiteStore) GetTransient(ctx context.Context, name string, dst any) (bool, error) {
	var raw string
	var expires int64
	err := s.db.QueryRowContext(ctx, `SELECT value, expires_at FROM transients WHERE name = ?`, name).Scan(&raw, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get transient %s: %w", name, err)
	}
	if s.now().Unix() >= expires {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode transient %s: %w", name, err)
	}
	return true, nil
}

func (s *SQLiteStore) SetTransient(ctx context.Context, name string, value any, ttl time.Duration) error {
	raw, err := encodeValue(value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transients (name, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		name, raw, s.now().Add(ttl).Unix())
	if err != nil {
		return fmt.Errorf("set transient %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteTransient(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transients WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete transient %s: %w", name, err)
	}
	return nil
}
