package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/contentops/slotfill/pkg/types"
)

// Fixture is a YAML document describing pages, their fields and the media library
type Fixture struct {
	Attachments []types.Attachment `yaml:"attachments"`
	Pages       []PageFixture      `yaml:"pages"`
}

// PageFixture is one page of a Fixture
type PageFixture struct {
	types.Page `yaml:",inline"`
	Fields     []types.FieldNode `yaml:"fields"`
}

// ReadFixture decodes a fixture document
func ReadFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	for _, p := range f.Pages {
		if p.ID <= 0 {
			return nil, fmt.Errorf("fixture page %q has no id", p.Title)
		}
	}
	return &f, nil
}

// LoadFixtureFile reads a fixture from disk
func LoadFixtureFile(path string) (*Fixture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer file.Close()
	return ReadFixture(file)
}

// Import writes every attachment and page of the fixture into the store
func (f *Fixture) Import(ctx context.Context, store Store) error {
	for _, a := range f.Attachments {
		if err := store.ImportAttachment(ctx, a); err != nil {
			return err
		}
	}
	for _, p := range f.Pages {
		if err := store.ImportPage(ctx, p.Page, p.Fields); err != nil {
			return err
		}
	}
	return nil
}
