package shims

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindGlobals(t *testing.T) {
	tests := []struct {
		name   string
		source string
		params []string
	}{
		{name: "no globals", source: `module.exports = 1;`},
		{name: "global", source: `var root = global.document;`, params: []string{"global"}},
		{name: "process", source: `if (process.env.NODE_ENV !== "production") {}`, params: []string{"process"}},
		{name: "both in order", source: `process.nextTick(function() { global.x = 1; });`, params: []string{"global", "process"}},
		{name: "member access ignored", source: `foo.global = 1; bar.process();`},
		{name: "longer identifiers ignored", source: `var globalThisish = processor;`},
		{name: "locally declared", source: `var process = require("process/"); process.cwd();`},
		{name: "declared function", source: `function global() {} global();`},
		{name: "start of source", source: `global.a = 1`, params: []string{"global"}},
	}

	var s Scanner
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.FindGlobals(tt.source)
			assert.Equal(t, tt.params, got.Params)
			assert.Equal(t, len(tt.params) == 0, got.IsIdentity())
		})
	}
}

func TestFindGlobalsWrapper(t *testing.T) {
	s := Scanner{Env: map[string]string{"NODE_ENV": "production", "A": "1"}}
	got := s.FindGlobals(`process.env.NODE_ENV`)

	assert.Equal(t, "process", got.ParamList())
	assert.Contains(t, got.Wrapper, `{env: {"A":"1","NODE_ENV":"production"}, browser: true`)
	assert.Contains(t, got.Wrapper, "fn.call(this, ")
}

func TestPolicy(t *testing.T) {
	p := Policy{
		Rename:      map[string]string{"lodash": "lodash-es", "same": "same"},
		FileAliases: map[string]string{"pkg": "pkg/index"},
	}

	assert.True(t, p.ShouldOverrideName("lodash"))
	assert.Equal(t, "lodash-es", p.OverrideName("lodash"))
	assert.False(t, p.ShouldOverrideName("same"))
	assert.Equal(t, "other", p.OverrideName("other"))

	assert.Equal(t,
		"require.register(\"pkg/index\", function(exports, require, module) {\n  module.exports = require(\"pkg\");\n});\n",
		p.ShouldIncludeFileAlias("pkg"))
	assert.Empty(t, p.ShouldIncludeFileAlias("other"))

	var zero Policy
	assert.False(t, zero.ShouldOverrideName("x"))
	assert.Empty(t, zero.ShouldIncludeFileAlias("x"))
}
