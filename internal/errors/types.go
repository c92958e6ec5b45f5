package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorKind categorizes failures raised while building a proposal
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindFileUnreadable
	KindFileEmpty
	KindUnsupportedType
	KindExtractionFailed
	KindDependencyMissing
	KindPasswordProtected
	KindAssistantCallFailed
	KindIndexParseFailed
	KindTemplateMissing
	KindInputInvalid
)

// String returns a stable name for the kind
func (k ErrorKind) String() string {
	switch k {
	case KindFileUnreadable:
		return "FILE_UNREADABLE"
	case KindFileEmpty:
		return "FILE_EMPTY"
	case KindUnsupportedType:
		return "UNSUPPORTED_TYPE"
	case KindExtractionFailed:
		return "EXTRACTION_FAILED"
	case KindDependencyMissing:
		return "DEPENDENCY_MISSING"
	case KindPasswordProtected:
		return "PASSWORD_PROTECTED"
	case KindAssistantCallFailed:
		return "ASSISTANT_CALL_FAILED"
	case KindIndexParseFailed:
		return "INDEX_PARSE_FAILED"
	case KindTemplateMissing:
		return "TEMPLATE_MISSING"
	case KindInputInvalid:
		return "INPUT_INVALID"
	default:
		return "UNKNOWN"
	}
}

// IsFatal reports whether the kind terminates the whole run.
// Per-file kinds are collected and never abort a run.
func (k ErrorKind) IsFatal() bool {
	switch k {
	case KindDependencyMissing, KindAssistantCallFailed, KindTemplateMissing, KindInputInvalid:
		return true
	default:
		return false
	}
}

// ProposalError carries a kind, the file it concerns (if any) and the cause
type ProposalError struct {
	Kind    ErrorKind
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ProposalError) Error() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(e.Kind.String())
	b.WriteString("] ")
	if e.File != "" {
		b.WriteString(e.File)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil && e.Err.Error() != e.Message {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the underlying cause
func (e *ProposalError) Unwrap() error {
	return e.Err
}

// Reason returns the human readable part without the kind prefix
func (e *ProposalError) Reason() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// New creates a ProposalError with a formatted message
func New(kind ErrorKind, format string, args ...any) *ProposalError {
	return &ProposalError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps err under kind with a short message
func Wrap(kind ErrorKind, err error, message string) *ProposalError {
	return &ProposalError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// WithFile sets the file the error concerns
func (e *ProposalError) WithFile(name string) *ProposalError {
	e.File = name
	return e
}

// KindOf returns the kind of the first ProposalError in err's chain
func KindOf(err error) ErrorKind {
	var pe *ProposalError
	if stderrors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind
func Is(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsFatal reports whether err should terminate the run
func IsFatal(err error) bool {
	return KindOf(err).IsFatal()
}

// FileError is one entry of a run's per-file error list
type FileError struct {
	File   string    `json:"file"`
	Kind   ErrorKind `json:"-"`
	Reason string    `json:"error"`
}

// ErrorCollection accumulates per-file errors in enumeration order
type ErrorCollection struct {
	entries []FileError
}

// NewErrorCollection creates an empty collection
func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{entries: make([]FileError, 0)}
}

// Add records err against file. Errors that are not ProposalErrors
// are recorded with KindUnknown.
func (c *ErrorCollection) Add(file string, err error) {
	entry := FileError{File: file, Kind: KindOf(err), Reason: err.Error()}
	var pe *ProposalError
	if stderrors.As(err, &pe) {
		entry.Reason = pe.Reason()
	}
	c.entries = append(c.entries, entry)
}

// Append records entries that were already classified
func (c *ErrorCollection) Append(entries ...FileError) {
	c.entries = append(c.entries, entries...)
}

// Entries returns a copy of the collected errors
func (c *ErrorCollection) Entries() []FileError {
	out := make([]FileError, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of collected errors
func (c *ErrorCollection) Len() int {
	return len(c.entries)
}

// Summary returns a one-line summary of the collection
func (c *ErrorCollection) Summary() string {
	if len(c.entries) == 0 {
		return "No file errors"
	}
	byKind := make(map[ErrorKind]int)
	for _, e := range c.entries {
		byKind[e.Kind]++
	}
	parts := make([]string, 0, len(byKind))
	for k := KindUnknown; k <= KindInputInvalid; k++ {
		if n := byKind[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", k, n))
		}
	}
	return fmt.Sprintf("Encountered errors in %d file(s) (%s)", len(c.entries), strings.Join(parts, ", "))
}
