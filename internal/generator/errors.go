package generator

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a generation failure.
type Kind int

const (
	// KindGenerationFailed: the backend ran but produced no usable command.
	KindGenerationFailed Kind = iota + 1
	// KindModelLoad: resource acquisition failed.
	KindModelLoad
	// KindUnavailable: the backend is known not to be able to serve.
	KindUnavailable
	// KindTimeout: a deadline elapsed.
	KindTimeout
	// KindInvalidRequest: caller input failed validation.
	KindInvalidRequest
)

func (k Kind) String() string {
	switch k {
	case KindGenerationFailed:
		return "generation failed"
	case KindModelLoad:
		return "model load error"
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindInvalidRequest:
		return "invalid request"
	default:
		return "unknown"
	}
}

// Error is the failure type every backend maps onto.
type Error struct {
	Kind Kind
	// Backend that produced the error, e.g. "embedded" or "remote".
	Backend string
	Detail  string
	// After is the elapsed deadline for KindTimeout.
	After time.Duration
	// Structural errors cannot change on retry (bad model path, bad input).
	Structural bool
	// Transient marks a GenerationFailed that may succeed on retry (e.g. HTTP 5xx).
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Backend != "" {
		b.WriteString(e.Backend)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Kind == KindTimeout && e.After > 0 {
		fmt.Fprintf(&b, " after %s", e.After)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil && !strings.Contains(e.Detail, e.Err.Error()) {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Suggestion is a short actionable hint for the user-facing layer.
func (e *Error) Suggestion() string {
	switch e.Kind {
	case KindModelLoad:
		if e.Structural {
			return "check that the model file exists and is a GGUF model, or download it again"
		}
		return "retry; if it persists free memory or use a smaller model"
	case KindUnavailable:
		if e.Backend == string(BackendRemote) {
			return "ensure the inference server is running, or use the embedded backend"
		}
		return "try a different backend"
	case KindTimeout:
		return "the backend may be overloaded; increase the timeout or use a different backend"
	case KindInvalidRequest:
		return "describe the command you want in a few words"
	default:
		return "simplify the request or use a different backend or model"
	}
}

// WithBackend returns a copy attributed to backend unless already attributed.
func (e *Error) WithBackend(backend string) *Error {
	if e.Backend != "" {
		return e
	}
	c := *e
	c.Backend = backend
	return &c
}

// ErrGenerationFailed reports a backend that ran but produced nothing usable.
func ErrGenerationFailed(detail string, cause error) *Error {
	return &Error{Kind: KindGenerationFailed, Detail: detail, Err: cause}
}

// ErrTransientFailure is a GenerationFailed that a retry may fix.
func ErrTransientFailure(detail string, cause error) *Error {
	return &Error{Kind: KindGenerationFailed, Detail: detail, Transient: true, Err: cause}
}

// ErrModelLoad reports a failed resource acquisition naming the resource.
func ErrModelLoad(resource, reason string, structural bool, cause error) *Error {
	d := reason
	if resource != "" {
		d = resource + ": " + reason
	}
	return &Error{Kind: KindModelLoad, Detail: d, Structural: structural, Err: cause}
}

// ErrUnavailable reports an out-of-band determination of non-service.
func ErrUnavailable(reason string) *Error {
	return &Error{Kind: KindUnavailable, Detail: reason}
}

// ErrTimeout reports an elapsed deadline.
func ErrTimeout(after time.Duration, cause error) *Error {
	return &Error{Kind: KindTimeout, After: after, Err: cause}
}

// ErrInvalidRequest reports caller input that failed validation.
func ErrInvalidRequest(reason string) *Error {
	return &Error{Kind: KindInvalidRequest, Detail: reason, Structural: true}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return 0
}

func IsGenerationFailed(err error) bool { return KindOf(err) == KindGenerationFailed }
func IsModelLoad(err error) bool        { return KindOf(err) == KindModelLoad }
func IsUnavailable(err error) bool      { return KindOf(err) == KindUnavailable }
func IsTimeout(err error) bool          { return KindOf(err) == KindTimeout }
func IsInvalidRequest(err error) bool   { return KindOf(err) == KindInvalidRequest }

// IsStructural reports whether retrying cannot change the outcome.
func IsStructural(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Structural
}

// IsRetryable reports whether a bounded retry may succeed.
func IsRetryable(err error) bool {
	var ge *Error
	if !errors.As(err, &ge) || ge.Structural {
		return false
	}
	switch ge.Kind {
	case KindTimeout, KindUnavailable:
		return true
	case KindGenerationFailed:
		return ge.Transient
	}
	return false
}

// Attempt records one backend's outcome within a fallback chain.
type Attempt struct {
	Backend string
	Err     error
	// Skipped is set when the availability probe ruled the backend out.
	Skipped bool
}

// ExhaustedError is returned when every composed backend failed. It unwraps
// to the last attempt's error, so KindOf and the IsX helpers report the kind
// of the last backend tried.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		msg := a.Err.Error()
		if !strings.HasPrefix(msg, a.Backend+": ") {
			msg = a.Backend + ": " + msg
		}
		if a.Skipped {
			msg += " (skipped)"
		}
		parts = append(parts, msg)
	}
	return fmt.Sprintf("all %d backends failed: %s", len(e.Attempts), strings.Join(parts, "; "))
}

func (e *ExhaustedError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// Last returns the final attempt.
func (e *ExhaustedError) Last() Attempt {
	if len(e.Attempts) == 0 {
		return Attempt{}
	}
	return e.Attempts[len(e.Attempts)-1]
}

func attribute(err error, backend string) error {
	var ge *Error
	if errors.As(err, &ge) && ge.Backend == "" {
		return ge.WithBackend(backend)
	}
	return err
}
