package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates which decoding stage produced the error
type Phase string

const (
	PhaseHeader      Phase = "header"      // magic and version preamble
	PhaseSection     Phase = "section"     // section framing and dispatch
	PhaseType        Phase = "type"        // value and function types
	PhaseFunction    Phase = "function"    // function section type indices
	PhaseCode        Phase = "code"        // function bodies and locals
	PhaseInstruction Phase = "instruction" // opcodes and operands
)

// Kind categorizes the error
type Kind string

const (
	KindTruncatedInput     Kind = "truncated_input"
	KindTruncatedHeader    Kind = "truncated_header"
	KindBadMagic           Kind = "bad_magic"
	KindUnsupportedVersion Kind = "unsupported_version"
	KindMalformedVarint    Kind = "malformed_varint"
	KindInvalidValueType   Kind = "invalid_value_type"
	KindInvalidFuncTypeTag Kind = "invalid_functype_tag"
	KindInvalidBlockType   Kind = "invalid_block_type"
	KindUnknownSectionID   Kind = "unknown_section_id"
	KindDuplicateSection   Kind = "duplicate_section"
	KindUnknownOpcode      Kind = "unknown_opcode"
	KindUnexpectedElse     Kind = "unexpected_else"
	KindTrailingBytes      Kind = "trailing_bytes"
	KindTooManyLocals      Kind = "too_many_locals"
	KindInvalidUTF8        Kind = "invalid_utf8"
	KindNestingTooDeep     Kind = "nesting_too_deep"
)

// IsTruncation reports whether the kind means the input ended early.
func (k Kind) IsTruncation() bool {
	return k == KindTruncatedInput || k == KindTruncatedHeader
}

// Error is the structured error type returned by the decoder
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
	Offset int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" in ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	fmt.Fprintf(&b, " at offset %d (0x%x)", e.Offset, e.Offset)

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Sentinel returns a kind-only target for use with errors.Is.
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// OffsetOf returns the byte offset recorded in err's chain.
func OffsetOf(err error) (int, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Offset, true
	}
	return 0, false
}

// Within prefixes the location path of a decoder error with segment.
// Errors of other types are returned unchanged.
func Within(err error, segment string) error {
	var e *Error
	if stderrors.As(err, &e) {
		e.Path = append([]string{segment}, e.Path...)
	}
	return err
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// At sets the absolute byte offset
func (b *Builder) At(offset int) *Builder {
	b.err.Offset = offset
	return b
}

// Path sets the location path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Truncated creates an error for input that ends before want more bytes are available
func Truncated(phase Phase, offset, want, have int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTruncatedInput,
		Offset: offset,
		Detail: fmt.Sprintf("need %d bytes, %d available", want, have),
	}
}

// MalformedVarint creates a LEB128 decoding error
func MalformedVarint(phase Phase, offset int, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMalformedVarint,
		Offset: offset,
		Detail: detail,
	}
}

// InvalidValueType creates an error for an unrecognized value type byte
func InvalidValueType(phase Phase, offset int, b byte) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidValueType,
		Offset: offset,
		Detail: fmt.Sprintf("invalid value type 0x%02x", b),
		Value:  b,
	}
}

// InvalidFuncTypeTag creates an error for a function type not starting with 0x60
func InvalidFuncTypeTag(offset int, b byte) *Error {
	return &Error{
		Phase:  PhaseType,
		Kind:   KindInvalidFuncTypeTag,
		Offset: offset,
		Detail: fmt.Sprintf("expected functype tag 0x60, got 0x%02x", b),
		Value:  b,
	}
}

// UnknownOpcode creates an error for an opcode outside every instruction family
func UnknownOpcode(offset int, op byte) *Error {
	return &Error{
		Phase:  PhaseInstruction,
		Kind:   KindUnknownOpcode,
		Offset: offset,
		Detail: fmt.Sprintf("unknown opcode 0x%02x", op),
		Value:  op,
	}
}

// TrailingBytes creates an error for bytes left after a decoded structure
func TrailingBytes(phase Phase, offset, remaining int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTrailingBytes,
		Offset: offset,
		Detail: fmt.Sprintf("%d unconsumed bytes", remaining),
		Value:  remaining,
	}
}
