// Package catalog serves the category -> sub-category lookup file.
//
// The file is materialized with a fixed default mapping the first time it is
// needed and is never rewritten afterwards.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"expenses/internal/core"
	"expenses/internal/log"
)

const MIMEType = "application/json"

// DefaultContent is written when the catalog file is missing.
const DefaultContent = `{
  "Food": [
    "Groceries",
    "Dining Out"
  ],
  "Transport": [
    "Fuel",
    "Public Transit"
  ],
  "Utilities": [
    "Electricity",
    "Water",
    "Internet"
  ]
}
`

// Category is one catalog entry.
type Category struct {
	Name          string
	SubCategories []string
}

// Document is the catalog as read from disk. Raw is the file content verbatim.
type Document struct {
	Raw        []byte
	Categories []Category
}

type Store struct {
	path   string
	logger *log.Logger
}

func NewStore(path string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	return &Store{path: path, logger: logger.WithComponent(log.ComponentCatalog)}
}

// Load returns the catalog, writing the default file first if it is absent.
func (s *Store) Load(ctx context.Context) (Document, error) {
	const op = "load categories"
	if err := s.ensure(ctx); err != nil {
		return Document{}, core.E(core.KindCatalog, op, err)
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return Document{}, core.E(core.KindCatalog, op, fmt.Errorf("read catalog: %w", err))
	}

	cats, err := parse(raw)
	if err != nil {
		return Document{}, core.E(core.KindCatalog, op, fmt.Errorf("parse %s: %w", s.path, err))
	}
	return Document{Raw: raw, Categories: cats}, nil
}

// ensure creates the file with DefaultContent unless it already exists. The
// content is written to a temporary file and hard-linked into place so a
// concurrent reader never sees a partial file and an existing file is never replaced.
func (s *Store) ensure(ctx context.Context) error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat catalog: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".categories-*.json")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(DefaultContent); err != nil {
		tmp.Close()
		return fmt.Errorf("write default catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp catalog: %w", err)
	}

	if err := os.Link(tmpName, s.path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return fmt.Errorf("install default catalog: %w", err)
	}

	s.logger.InfoContext(ctx, "Wrote default category catalog", "path", s.path)
	return nil
}

// parse decodes the top-level object keeping key order.
func parse(raw []byte) ([]Category, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("catalog must be a JSON object")
	}

	var cats []Category
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var subs []string
		if err := dec.Decode(&subs); err != nil {
			return nil, fmt.Errorf("category %q: %w", name, err)
		}
		cats = append(cats, Category{Name: name, SubCategories: subs})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return cats, nil
}
