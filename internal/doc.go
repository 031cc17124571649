// Package internal contains the implementation packages of the deppack CLI.
//
// # Package Organization
//
//   - modpath: string algebra over paths split at the dependency directory
//   - pkgmeta: package metadata decoding, browser tables, caller overrides
//   - resolver: the per-pass Session (entry cache, browser mapping, naming)
//   - runtime: the browser-side resolver and module registry scripts
//   - shims: free-global detection and naming policy
//   - wrapper: turns one source file into its registration
//   - bundle: walks dependency trees and writes a full bundle
//   - watcher: debounced change notification for rebuilds
//   - config, logging, errors, version: ambient support
//
// # Data Flow
//
// A build pass flows one way:
//
//	bundle.Discover -> resolver.Session -> wrapper.Generator -> bundle output
//
// Sessions are never shared between passes. The watcher only triggers new
// passes.
package internal
