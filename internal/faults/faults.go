// Package faults defines the typed error taxonomy shared by the
// normalization pipeline, the safety gate, the guard, and the block
// manager. Every failure that leaves the engine is one of these kinds so
// the external repair loop can pick a strategy without parsing prose.
package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the coarse failure class of an Error.
type Kind int

const (
	// KindSyntax marks code that is still unexecutable after
	// normalization, including modality mismatches.
	KindSyntax Kind = iota
	// KindSecurity marks a disallowed capability in the script body.
	KindSecurity
	// KindEnvironment marks a host graph missing expected members.
	KindEnvironment
	// KindGuard marks an op/time/size budget breach or cancellation.
	KindGuard
	// KindContent marks an upsert whose producer ran but wrote nothing.
	KindContent
	// KindHostAPI marks an individual host call failure. These are
	// swallowed wherever a fallback exists and never abort a run alone.
	KindHostAPI
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "SyntaxDefect"
	case KindSecurity:
		return "SecurityViolation"
	case KindEnvironment:
		return "EnvironmentUnavailable"
	case KindGuard:
		return "GuardExceeded"
	case KindContent:
		return "ContentNotProduced"
	case KindHostAPI:
		return "HostApiFailure"
	default:
		return "Unknown"
	}
}

// Variants refine a Kind where the repair loop needs more than the class.
const (
	VariantModalityMismatch = "modality_mismatch"
	VariantForbiddenSyntax  = "forbidden_syntax"
	VariantOps              = "ops"
	VariantDeadline         = "deadline"
	VariantTextLen          = "text_len"
	VariantTableCells       = "table_cells"
	VariantCancelled        = "cancelled"
)

// Error is a classified engine failure.
type Error struct {
	Kind    Kind
	Variant string
	Message string

	// Snippet names the offending construct or payload class, when known.
	Snippet string
	// Suspicious lists characters or reasons that triggered the failure.
	Suspicious []string

	wrapped error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Variant != "" {
		b.WriteString("/")
		b.WriteString(e.Variant)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Suspicious) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Suspicious, ", "))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.wrapped }

// New builds an Error of the given kind.
func New(kind Kind, variant, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Variant: variant, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a classified error.
func Wrap(kind Kind, variant string, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Variant: variant, Message: fmt.Sprintf(format, args...), wrapped: err}
}

// Syntaxf reports a post-normalization syntax defect.
func Syntaxf(format string, args ...interface{}) *Error {
	return New(KindSyntax, "", format, args...)
}

// ModalityMismatch reports a payload that is valid JSON but not code and
// not a recognized plan: the generator answered in the wrong shape.
func ModalityMismatch(payloadClass string) *Error {
	e := New(KindSyntax, VariantModalityMismatch,
		"payload is a bare %s, not script code; regenerate as code or as a structured plan", payloadClass)
	e.Snippet = payloadClass
	return e
}

// Security reports disallowed capabilities, listing every matched reason.
func Security(reasons []string) *Error {
	e := New(KindSecurity, "", "script requests disallowed capabilities")
	e.Suspicious = reasons
	return e
}

// Environmentf reports a host graph missing expected members.
func Environmentf(format string, args ...interface{}) *Error {
	return New(KindEnvironment, "", format, args...)
}

// GuardExceeded reports a budget breach identified by variant.
func GuardExceeded(variant, format string, args ...interface{}) *Error {
	return New(KindGuard, variant, format, args...)
}

// ContentNotProduced reports a producer that ran but left the span empty.
func ContentNotProduced(blockID string) *Error {
	e := New(KindContent, "", "producer for block %q produced no content", blockID)
	e.Snippet = blockID
	return e
}

// HostAPI wraps an individual host call failure.
func HostAPI(op string, err error) *Error {
	return Wrap(KindHostAPI, "", err, "host call %s failed", op)
}

// IsKind reports whether err (or anything it wraps) is an Error of kind k.
func IsKind(err error, k Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == k
}

// KindOf extracts the Kind of err, if it is classified.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// Classify maps an execution failure onto the repair-loop taxonomy. The
// classes mirror what a script repair service can act on. Unclassified
// runtime errors fall back to prefix-sniffing the ES error class.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if kind, ok := KindOf(err); ok {
		switch kind {
		case KindSyntax:
			return "syntax"
		case KindSecurity:
			return "security"
		case KindEnvironment:
			return "environment"
		case KindContent:
			return "content"
		case KindGuard:
			return "environment"
		case KindHostAPI:
			return "environment"
		}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "SyntaxError"):
		return "syntax"
	case strings.Contains(msg, "ReferenceError"):
		return "reference"
	case strings.Contains(msg, "TypeError"):
		return "type"
	case strings.Contains(msg, "RangeError"):
		return "range"
	default:
		return "syntax"
	}
}
