package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad     Phase = "load"     // guest compilation
	PhaseAttach   Phase = "attach"   // instantiation on the dispatch thread
	PhaseDispatch Phase = "dispatch" // task queue and submission
	PhaseCall     Phase = "call"     // invoking a guest entry point
	PhaseEncode   Phase = "encode"   // Go to guest memory
	PhaseDecode   Phase = "decode"   // guest memory to Go
)

// Kind categorizes the error
type Kind string

const (
	KindNoExport       Kind = "no_export"       // required guest export missing
	KindTrap           Kind = "trap"            // guest call trapped or failed
	KindDenied         Kind = "denied"          // guest reported a negative status
	KindRejected       Kind = "rejected"        // dispatcher no longer accepts tasks
	KindBadPayload     Kind = "bad_payload"     // malformed guest result buffer
	KindAllocation     Kind = "allocation"      // guest allocator failure
	KindOutOfBounds    Kind = "out_of_bounds"   // pointer outside linear memory
	KindNotInitialized Kind = "not_initialized" // component used before setup
	KindInvalidInput   Kind = "invalid_input"
	KindClosed         Kind = "closed"
)

// Error is the structured error type used throughout the library
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string // guest entry point, when one is involved
	Detail string
	Errno  int32 // negated errno for KindDenied, zero otherwise
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if e.Errno != 0 {
		fmt.Fprintf(&b, " (errno %d)", e.Errno)
	}

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

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
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

// Op sets the guest entry point name
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Errno sets the negated errno reported by the guest
func (b *Builder) Errno(errno int32) *Builder {
	b.err.Errno = errno
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

// Load creates a guest load/compile error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidInput,
		Detail: detail,
		Cause:  cause,
	}
}

// NoExport reports a missing required guest export
func NoExport(name string) *Error {
	return &Error{
		Phase:  PhaseAttach,
		Kind:   KindNoExport,
		Op:     name,
		Detail: "guest does not export required function",
	}
}

// Trap reports a guest call that trapped or otherwise failed
func Trap(op string, cause error) *Error {
	return &Error{
		Phase: PhaseCall,
		Kind:  KindTrap,
		Op:    op,
		Cause: cause,
	}
}

// Denied reports a negative status from the guest for a value-returning call
func Denied(op string, errno int32) *Error {
	return &Error{
		Phase: PhaseCall,
		Kind:  KindDenied,
		Op:    op,
		Errno: errno,
	}
}

// Rejected reports a submission refused because shutdown has begun
func Rejected(op string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindRejected,
		Op:     op,
		Detail: "dispatcher is shutting down",
	}
}

// BadPayload reports a malformed result buffer from the guest
func BadPayload(op string, detail string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindBadPayload,
		Op:     op,
		Detail: detail,
	}
}

// AllocationFailed reports a guest allocator failure
func AllocationFailed(op string, size uint32) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindAllocation,
		Op:     op,
		Detail: fmt.Sprintf("guest malloc of %d bytes failed", size),
	}
}

// OutOfBounds reports a guest pointer outside linear memory
func OutOfBounds(phase Phase, op string, ptr, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Op:     op,
		Detail: fmt.Sprintf("buffer [%d, %d) outside linear memory", ptr, ptr+length),
	}
}

// NotInitialized creates a not initialized error
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: component + " not initialized",
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
