package runtime

import (
	"encoding/json"
	"fmt"
)

// Definition registers name with a module body that exports exp verbatim.
func Definition(name, exp string) string {
	return fmt.Sprintf("require.register(%s, function(exports, require, module) {\n  module.exports = %s;\n});", Quote(name), exp)
}

// AliasDef registers target as a forwarder to source.
func AliasDef(target, source string) string {
	return Definition(target, fmt.Sprintf("require(%s)", Quote(source)))
}

// SimpleShimDef registers name with obj, JSON-encoded, as its exports.
func SimpleShimDef(name string, obj interface{}) (string, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("shim %s: %w", name, err)
	}
	return Definition(name, string(data)), nil
}

// Quote renders s as a double-quoted script string literal.
func Quote(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
