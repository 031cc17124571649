// Package runtime holds the code shipped inside every bundle: the relative
// resolver factory that reproduces nested dependency lookup over a flat
// registry, and a minimal CommonJS loader providing that registry.
package runtime

import (
	_ "embed"
	"strings"
	"sync"
	"text/template"

	"github.com/conneroisu/deppack/internal/modpath"
)

// NotFoundMarker is the message fragment the loader throws for unknown
// modules. The resolver only recovers from errors carrying it.
const NotFoundMarker = "Cannot find module"

//go:embed assets/relative_require.js.tmpl
var resolverAsset string

//go:embed assets/loader.js
var loaderAsset string

var resolverTmpl = template.Must(template.New("relative_require").Parse(resolverAsset))

var (
	defaultOnce   sync.Once
	defaultSource string
)

// ResolverSource returns the __makeRelativeRequire factory for the default
// dependency directory name.
func ResolverSource() string {
	defaultOnce.Do(func() {
		src, err := ResolverSourceFor(modpath.DefaultReserved)
		if err != nil {
			panic(err)
		}
		defaultSource = src
	})
	return defaultSource
}

// ResolverSourceFor returns the __makeRelativeRequire factory walking the
// given dependency directory name.
func ResolverSourceFor(reserved string) (string, error) {
	if reserved == "" {
		reserved = modpath.DefaultReserved
	}
	var b strings.Builder
	b.WriteString("\n")
	err := resolverTmpl.Execute(&b, struct {
		Reserved string
		NotFound string
	}{reserved, NotFoundMarker})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// LoaderSource returns the CommonJS registry. It leaves an existing
// require.register in place.
func LoaderSource() string {
	return loaderAsset
}
