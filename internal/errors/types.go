// Package errors defines the typed failures raised while resolving and
// wrapping modules.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind represents different categories of errors.
type ErrorKind string

const (
	KindMetadataNotFound ErrorKind = "metadata_not_found"
	KindInvalidMetadata  ErrorKind = "invalid_metadata"
	KindNotInPackage     ErrorKind = "not_in_package"
	KindInvalidSource    ErrorKind = "invalid_source"
	KindConfig           ErrorKind = "config"
	KindIO               ErrorKind = "io"
)

// Common error codes.
const (
	ErrCodeMetadataNotFound = "ERR_METADATA_NOT_FOUND"
	ErrCodeMetadataInvalid  = "ERR_METADATA_INVALID"
	ErrCodeOverrideInvalid  = "ERR_OVERRIDE_INVALID"
	ErrCodeNotInPackage     = "ERR_NOT_IN_PACKAGE"
	ErrCodeSourceInvalid    = "ERR_SOURCE_INVALID"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeIO               = "ERR_IO"
)

// DeppackError is a structured error type with context.
type DeppackError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Path    string
	Cause   error
}

// Error implements the error interface.
func (e *DeppackError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}
	return result
}

// Unwrap returns the underlying cause error.
func (e *DeppackError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DeppackError of the same kind and code.
func (e *DeppackError) Is(target error) bool {
	var t *DeppackError
	if errors.As(target, &t) {
		return e.Kind == t.Kind && e.Code == t.Code
	}
	return false
}

// Sentinels usable with errors.Is.
var (
	ErrMetadataNotFound = &DeppackError{Kind: KindMetadataNotFound, Code: ErrCodeMetadataNotFound}
	ErrNotInPackage     = &DeppackError{Kind: KindNotInPackage, Code: ErrCodeNotInPackage}
)

// NewMetadataNotFound reports a package root without a manifest.
func NewMetadataNotFound(root string, cause error) *DeppackError {
	return &DeppackError{
		Kind:    KindMetadataNotFound,
		Code:    ErrCodeMetadataNotFound,
		Message: "no package metadata at package root",
		Path:    root,
		Cause:   cause,
	}
}

// NewInvalidMetadata reports a manifest or override that cannot be decoded or merged.
func NewInvalidMetadata(code, root, message string, cause error) *DeppackError {
	return &DeppackError{
		Kind:    KindInvalidMetadata,
		Code:    code,
		Message: message,
		Path:    root,
		Cause:   cause,
	}
}

// NewNotInPackage reports a file path without a reserved dependency directory.
func NewNotInPackage(path string) *DeppackError {
	return &DeppackError{
		Kind:    KindNotInPackage,
		Code:    ErrCodeNotInPackage,
		Message: "path is not inside a dependency package",
		Path:    path,
	}
}

// NewInvalidSource reports source text that cannot be emitted as requested.
func NewInvalidSource(path, message string, cause error) *DeppackError {
	return &DeppackError{
		Kind:    KindInvalidSource,
		Code:    ErrCodeSourceInvalid,
		Message: message,
		Path:    path,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(message string, cause error) *DeppackError {
	return &DeppackError{
		Kind:    KindConfig,
		Code:    ErrCodeConfigInvalid,
		Message: message,
		Cause:   cause,
	}
}

// NewIOError creates an I/O error.
func NewIOError(path, message string, cause error) *DeppackError {
	return &DeppackError{
		Kind:    KindIO,
		Code:    ErrCodeIO,
		Message: message,
		Path:    path,
		Cause:   cause,
	}
}

// IsMetadataNotFound checks if an error reports a missing manifest.
func IsMetadataNotFound(err error) bool {
	return errors.Is(err, ErrMetadataNotFound)
}

// IsNotInPackage checks if an error reports a path outside any package.
func IsNotInPackage(err error) bool {
	return errors.Is(err, ErrNotInPackage)
}

// KindOf returns the kind of the first DeppackError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var de *DeppackError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}
