// Package errors defines the structured error model for metadata resolution.
// Invariant violations discovered while populating or initialising class
// metadata are definition-time errors: they are fatal, carry a stable code,
// and identify the class (and member) that caused them.
package errors

import (
	"fmt"
	"strings"
)

// Severity represents the severity level of a metadata error
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Severity
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Severity
func (s *Severity) UnmarshalJSON(data []byte) error {
	str := string(data)
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}

	switch str {
	case "info":
		*s = Info
	case "warning":
		*s = Warning
	case "error":
		*s = Error
	case "fatal":
		*s = Fatal
	default:
		*s = Error
	}
	return nil
}

// MetaDataError represents an error in class or member metadata.
// Fatal errors are non-recoverable configuration errors surfaced to the
// caller; Warning-severity errors are reported but do not abort resolution.
type MetaDataError struct {
	Phase    string   // "register", "populate", "initialise", "schemagen"
	Code     string   // "M101", "M205", ...
	Message  string   // Human-readable message
	Class    string   // Fully-qualified class name, if known
	Member   string   // Member name, if the error is member-scoped
	Severity Severity
	Chain    []string // Reference chain for cycle errors
	Hint     string   // Optional remediation hint
}

// Error implements the error interface
func (e *MetaDataError) Error() string {
	var b strings.Builder

	b.WriteString(e.Code)
	b.WriteString(": ")

	if e.Class != "" {
		b.WriteString(e.Class)
		if e.Member != "" {
			b.WriteString(".")
			b.WriteString(e.Member)
		}
		b.WriteString(": ")
	}

	b.WriteString(e.Message)

	if len(e.Chain) > 0 {
		b.WriteString(fmt.Sprintf(" (chain: %s)", strings.Join(e.Chain, " -> ")))
	}

	if e.Hint != "" {
		b.WriteString("\n  hint: ")
		b.WriteString(e.Hint)
	}

	return b.String()
}

// IsFatal reports whether the error aborts metadata resolution
func (e *MetaDataError) IsFatal() bool {
	return e.Severity >= Error
}

// New creates a fatal class-scoped MetaDataError
func New(phase, code, class, message string) *MetaDataError {
	return &MetaDataError{
		Phase:    phase,
		Code:     code,
		Class:    class,
		Message:  message,
		Severity: Fatal,
	}
}

// Newf creates a fatal class-scoped MetaDataError with a formatted message
func Newf(phase, code, class, format string, args ...interface{}) *MetaDataError {
	return New(phase, code, class, fmt.Sprintf(format, args...))
}

// NewMember creates a fatal member-scoped MetaDataError
func NewMember(phase, code, class, member, message string) *MetaDataError {
	return &MetaDataError{
		Phase:    phase,
		Code:     code,
		Class:    class,
		Member:   member,
		Message:  message,
		Severity: Fatal,
	}
}

// NewWarning creates a warning-severity MetaDataError. Warnings are logged
// by the manager rather than returned to the caller.
func NewWarning(phase, code, class, message string) *MetaDataError {
	return &MetaDataError{
		Phase:    phase,
		Code:     code,
		Class:    class,
		Message:  message,
		Severity: Warning,
	}
}

// NewCycle creates a fatal cycle error carrying the full reference chain
func NewCycle(phase, code, class string, chain []string) *MetaDataError {
	return &MetaDataError{
		Phase:    phase,
		Code:     code,
		Class:    class,
		Message:  "circular reference detected",
		Severity: Fatal,
		Chain:    chain,
	}
}

// WithHint attaches a remediation hint and returns the error
func (e *MetaDataError) WithHint(hint string) *MetaDataError {
	e.Hint = hint
	return e
}

// Collector accumulates errors and warnings during a resolution pass
type Collector struct {
	errors   []*MetaDataError
	warnings []*MetaDataError
}

// NewCollector creates an empty Collector
func NewCollector() *Collector {
	return &Collector{
		errors:   make([]*MetaDataError, 0),
		warnings: make([]*MetaDataError, 0),
	}
}

// Add records an error, routing it by severity
func (c *Collector) Add(err *MetaDataError) {
	if err == nil {
		return
	}
	if err.IsFatal() {
		c.errors = append(c.errors, err)
	} else {
		c.warnings = append(c.warnings, err)
	}
}

// Errors returns all fatal errors collected
func (c *Collector) Errors() []*MetaDataError {
	return c.errors
}

// Warnings returns all warnings collected
func (c *Collector) Warnings() []*MetaDataError {
	return c.warnings
}

// Err returns nil if no fatal errors were collected, the single error if
// there was exactly one, and an aggregate otherwise.
func (c *Collector) Err() error {
	switch len(c.errors) {
	case 0:
		return nil
	case 1:
		return c.errors[0]
	}

	msgs := make([]string, len(c.errors))
	for i, err := range c.errors {
		msgs[i] = err.Error()
	}
	return fmt.Errorf("metadata resolution failed with %d errors:\n%s",
		len(c.errors), strings.Join(msgs, "\n"))
}
