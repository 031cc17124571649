package pkgmeta

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/deppack/internal/errors"
)

// Overrides are caller-supplied partial manifests keyed by package name.
type Overrides map[string]json.RawMessage

// OverridesFromMap encodes decoded configuration values (viper or YAML
// maps) as override documents.
func OverridesFromMap(m map[string]interface{}) (Overrides, error) {
	out := make(Overrides, len(m))
	for name, v := range m {
		doc, err := json.Marshal(normalizeYAML(v))
		if err != nil {
			return nil, fmt.Errorf("override for %q: %w", name, err)
		}
		if len(doc) == 0 || doc[0] != '{' {
			return nil, fmt.Errorf("override for %q must be an object", name)
		}
		out[name] = doc
	}
	return out, nil
}

// LoadOverridesFile reads a YAML (or JSON) file mapping package names to
// partial manifests.
func LoadOverridesFile(fsys afero.Fs, path string) (Overrides, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, errors.NewIOError(path, "cannot read overrides file", err)
	}
	var m map[string]interface{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.NewInvalidMetadata(errors.ErrCodeOverrideInvalid, path, "cannot parse overrides file", err)
	}
	return OverridesFromMap(m)
}

// Merge returns a copy of o with other's entries layered on top. Entries
// for the same package are themselves deep-merged.
func (o Overrides) Merge(other Overrides) (Overrides, error) {
	out := make(Overrides, len(o)+len(other))
	for k, v := range o {
		out[k] = v
	}
	for k, v := range other {
		if prev, ok := out[k]; ok {
			merged, err := MergeOverride(prev, v)
			if err != nil {
				return nil, fmt.Errorf("override for %q: %w", k, err)
			}
			out[k] = merged
			continue
		}
		out[k] = v
	}
	return out, nil
}

// MergeOverride deep-merges patch onto doc: nested objects merge key by
// key, scalars and arrays in patch replace those in doc, and a null in
// patch deletes the key.
func MergeOverride(doc, patch []byte) ([]byte, error) {
	return jsonpatch.MergePatch(doc, patch)
}

// Apply merges the override registered for the manifest's declared name,
// if any, and decodes the result.
func (o Overrides) Apply(root string, doc []byte) (*Metadata, error) {
	var head struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(doc, &head); err != nil {
		return nil, errors.NewInvalidMetadata(errors.ErrCodeMetadataInvalid, root, "cannot decode package metadata", err)
	}

	if patch, ok := o[head.Name]; ok && head.Name != "" {
		merged, err := MergeOverride(doc, patch)
		if err != nil {
			return nil, errors.NewInvalidMetadata(errors.ErrCodeOverrideInvalid, root, "cannot apply override for "+head.Name, err)
		}
		doc = merged
	}
	return Decode(root, doc)
}

// normalizeYAML turns map[interface{}]interface{} values, which some YAML
// decoders produce for nested maps, into JSON-encodable maps.
func normalizeYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return m
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = normalizeYAML(val)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, val := range t {
			s[i] = normalizeYAML(val)
		}
		return s
	default:
		return v
	}
}
