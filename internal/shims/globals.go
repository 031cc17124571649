// Package shims provides the default collaborators the wrapper consults
// per file: a scanner that detects host globals a module expects, and a
// naming policy that renames modules and adds extra aliases.
package shims

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// GlobalUsage describes the closure a module body is wrapped in. The body
// becomes function(<Params>) { ... } and is passed to Wrapper, whose result
// is invoked. A zero GlobalUsage wraps in a plain immediate invocation.
type GlobalUsage struct {
	Wrapper string
	Params  []string
}

// IsIdentity reports whether no shim is needed.
func (g GlobalUsage) IsIdentity() bool {
	return g.Wrapper == "" && len(g.Params) == 0
}

// ParamList renders Params for a function signature.
func (g GlobalUsage) ParamList() string {
	return strings.Join(g.Params, ", ")
}

// GlobalFinder inspects a module's source for host globals.
type GlobalFinder interface {
	FindGlobals(source string) GlobalUsage
}

// shimmed lists the globals the scanner provides, in parameter order.
var shimmed = []string{"global", "process"}

var (
	usePattern  = map[string]*regexp.Regexp{}
	declPattern = map[string]*regexp.Regexp{}
)

func init() {
	for _, name := range shimmed {
		usePattern[name] = regexp.MustCompile(`(?:^|[^.\w$])` + name + `\b`)
		declPattern[name] = regexp.MustCompile(`\b(?:var|let|const|class|function)\s+` + name + `\b`)
	}
}

const globalExpr = `typeof global !== "undefined" ? global : typeof window !== "undefined" ? window : this`

// Scanner is the default GlobalFinder. It shims free uses of "global" and
// "process"; a module declaring either name itself is left alone for it.
type Scanner struct {
	// Env is exposed as process.env when no host process exists.
	Env map[string]string
}

// FindGlobals implements GlobalFinder.
func (s Scanner) FindGlobals(source string) GlobalUsage {
	var (
		params []string
		args   []string
	)
	for _, name := range shimmed {
		if !usePattern[name].MatchString(source) || declPattern[name].MatchString(source) {
			continue
		}
		params = append(params, name)
		switch name {
		case "global":
			args = append(args, globalExpr)
		case "process":
			args = append(args, s.processExpr())
		}
	}
	if len(params) == 0 {
		return GlobalUsage{}
	}
	return GlobalUsage{
		Wrapper: fmt.Sprintf("(function(fn) { return function() { return fn.call(this, %s); }; })", strings.Join(args, ", ")),
		Params:  params,
	}
}

func (s Scanner) processExpr() string {
	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		key, _ := json.Marshal(k)
		val, _ := json.Marshal(s.Env[k])
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')

	return `typeof process !== "undefined" ? process : {env: ` + b.String() +
		`, browser: true, argv: [], nextTick: function(cb) { setTimeout(cb, 0); }}`
}
