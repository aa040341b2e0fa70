package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all fatal failure modes
type ErrorCode string

const (
	// ProjectUnreadable indicates the project root does not exist or cannot be listed
	ProjectUnreadable ErrorCode = "PROJECT_UNREADABLE"
	// ManifestNotFound indicates no supported manifest was found under the project root
	ManifestNotFound ErrorCode = "MANIFEST_NOT_FOUND"
	// ManifestInvalid indicates the manifest could not be read or parsed
	ManifestInvalid ErrorCode = "MANIFEST_INVALID"
	// LockfileInvalid indicates a lock file exists but could not be parsed
	LockfileInvalid ErrorCode = "LOCKFILE_INVALID"
	// UnknownDependency indicates a requested dependency is not declared
	UnknownDependency ErrorCode = "UNKNOWN_DEPENDENCY"
	// ConfigInvalid indicates the configuration file is malformed or out of range
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// CacheUnavailable indicates the scan cache could not be opened
	CacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	// InternalError indicates a broken invariant
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditFile suggests editing a file
	EditFile FixActionType = "edit-file"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Path        string        `json:"path,omitempty"`
	Description string        `json:"description,omitempty"`
}

// WhyError represents an error with code, message, and suggestions
type WhyError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a WhyError carrying the default suggested fixes for its code.
func New(code ErrorCode, message string, cause error) *WhyError {
	return &WhyError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...interface{}) *WhyError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *WhyError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *WhyError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *WhyError) WithDetails(details interface{}) *WhyError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first WhyError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var we *WhyError
	if stderrors.As(err, &we) {
		return we.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	ManifestNotFound: {
		{
			Type:        RunCommand,
			Command:     "why analyze --path <project-dir>",
			Description: "Point the analyzer at a directory containing Cargo.toml or package.json",
		},
	},
	ManifestInvalid: {
		{
			Type:        EditFile,
			Path:        "Cargo.toml",
			Description: "Fix the manifest syntax; dependency tables must be TOML tables",
		},
	},
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "why config --output .why.toml",
			Description: "Regenerate a default configuration file",
		},
	},
	UnknownDependency: {
		{
			Type:        RunCommand,
			Command:     "why analyze",
			Description: "List every declared dependency",
		},
	},
	CacheUnavailable: {
		{
			Type:        RunCommand,
			Command:     "why analyze --no-cache",
			Description: "Run without the scan cache",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
