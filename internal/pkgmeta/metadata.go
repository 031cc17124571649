// Package pkgmeta models a dependency's declared package metadata: the
// fields the resolver reads, the browser override table, caller overrides
// and the storage collaborators that load manifests and probe directories.
package pkgmeta

import (
	"bytes"
	"encoding/json"

	"github.com/conneroisu/deppack/internal/errors"
)

// ManifestName is the metadata file found at every package root.
const ManifestName = "package.json"

// DefaultMain is the entry used when a package declares none.
const DefaultMain = "index.js"

// BrowserField is the decoded form of a "browser" (or legacy "browserify")
// value. Exactly one of Table or Replacement is set when the field is usable.
type BrowserField struct {
	// Table is the object form: an explicit per-request map.
	Table *Table
	// Replacement is the string form: a file standing in for the entry.
	Replacement string
}

// IsZero reports whether the field carries no override.
func (b BrowserField) IsZero() bool {
	return b.Table == nil && b.Replacement == ""
}

// UnmarshalJSON accepts objects and strings. Booleans, numbers and null are
// decoded as an empty field.
func (b *BrowserField) UnmarshalJSON(data []byte) error {
	*b = BrowserField{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '{':
		t := &Table{}
		if err := t.UnmarshalJSON(data); err != nil {
			return err
		}
		b.Table = t
	case '"':
		return json.Unmarshal(data, &b.Replacement)
	}
	return nil
}

// MarshalJSON writes the field back in its declared form.
func (b BrowserField) MarshalJSON() ([]byte, error) {
	switch {
	case b.Table != nil:
		return b.Table.MarshalJSON()
	case b.Replacement != "":
		return json.Marshal(b.Replacement)
	default:
		return []byte("null"), nil
	}
}

// Metadata is the fixed-shape record the resolver needs from a manifest.
type Metadata struct {
	Name       string       `json:"name"`
	Version    string       `json:"version,omitempty"`
	Main       string       `json:"main,omitempty"`
	Browser    BrowserField `json:"browser"`
	Browserify BrowserField `json:"browserify"`

	raw json.RawMessage
}

// Decode parses a manifest document.
func Decode(root string, doc []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, errors.NewInvalidMetadata(errors.ErrCodeMetadataInvalid, root, "cannot decode package metadata", err)
	}
	m.raw = append(json.RawMessage(nil), doc...)
	return &m, nil
}

// MainOrDefault returns the declared main entry or DefaultMain.
func (m *Metadata) MainOrDefault() string {
	if m.Main == "" {
		return DefaultMain
	}
	return m.Main
}

// BrowserField returns the environment override, preferring "browser" over
// the legacy "browserify" spelling.
func (m *Metadata) BrowserField() BrowserField {
	if !m.Browser.IsZero() {
		return m.Browser
	}
	return m.Browserify
}

// Raw returns the full merged manifest document, including fields the
// record does not model.
func (m *Metadata) Raw() json.RawMessage {
	return m.raw
}
