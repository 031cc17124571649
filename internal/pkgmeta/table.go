package pkgmeta

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Target is the replacement side of one browser mapping: either another
// request (a relative path or a bare package name) or an exclusion.
type Target struct {
	Module   string
	Excluded bool
}

// Mapping is one key/target pair of a browser table.
type Mapping struct {
	Key    string
	Target Target
}

// Table is a browser override table. It keeps declaration order because
// expansion applies relative keys in order.
type Table struct {
	entries []Mapping
	index   map[string]int
}

// NewTable returns a table with the given mappings, later keys replacing
// earlier ones in place.
func NewTable(mappings ...Mapping) *Table {
	t := &Table{}
	for _, m := range mappings {
		t.Set(m.Key, m.Target)
	}
	return t
}

// Set adds or replaces the target for key.
func (t *Table) Set(key string, target Target) {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if i, ok := t.index[key]; ok {
		t.entries[i].Target = target
		return
	}
	t.index[key] = len(t.entries)
	t.entries = append(t.entries, Mapping{Key: key, Target: target})
}

// Get returns the target for key.
func (t *Table) Get(key string) (Target, bool) {
	if t == nil || t.index == nil {
		return Target{}, false
	}
	i, ok := t.index[key]
	if !ok {
		return Target{}, false
	}
	return t.entries[i].Target, true
}

// Len returns the number of mappings.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns the mappings in declaration order.
func (t *Table) Entries() []Mapping {
	if t == nil {
		return nil
	}
	return append([]Mapping(nil), t.entries...)
}

// MarshalJSON writes the table as an object in declaration order, with
// exclusions written as false.
func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range t.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if m.Target.Excluded {
			buf.WriteString("false")
			continue
		}
		val, err := json.Marshal(m.Target.Module)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping key order. String values become
// module targets and false becomes an exclusion; every other value (true,
// null, "", numbers, nested objects) carries no mapping and is skipped.
func (t *Table) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("browser table: expected object, got %v", tok)
	}

	*t = Table{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("browser table: expected key, got %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("browser table: value for %q: %w", key, err)
		}
		if target, ok := decodeTarget(raw); ok {
			t.Set(key, target)
		}
	}
	_, err = dec.Token()
	return err
}

func decodeTarget(raw json.RawMessage) (Target, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return Target{Module: s}, s != ""
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil && !b {
		return Target{Excluded: true}, true
	}
	return Target{}, false
}
