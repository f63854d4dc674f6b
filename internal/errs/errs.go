// Package errs carries the error-kind taxonomy used across Argus's worker
// steps: TRANSIENT, VALIDATION, DATA, FATAL. No third-party
// library in the retrieval pack supplies a typed-error-kind taxonomy —
// every example repo relies on sentinel errors plus errors.Is/errors.As —
// so this stays on the standard library, following that convention.
package errs

import "fmt"

// Kind classifies an error for worker-loop retry/dead-letter decisions.
type Kind int

const (
	// Transient errors (network, vector-store 5xx, DB busy) are retried
	// with backoff at the worker boundary; the queue item stays claimed.
	Transient Kind = iota
	// Validation errors (bad LLM JSON, schema mismatch, invalid entity
	// names) are logged with the raw payload; the producing step returns
	// an empty/partial result and downstream steps proceed.
	Validation
	// Data errors (missing vector, dimension mismatch, near-zero
	// magnitude) are reported inline (e.g. s_vec=0 with a reason) and do
	// not abort processing.
	Data
	// Fatal errors (store corruption, config contradiction) raised during
	// startup (e.g. by llm.NewClient) end the work command. Raised by a
	// queue item's processing step, they make the worker release that item
	// at once and keep polling; the worker does not exit on them.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "TRANSIENT"
	case Validation:
		return "VALIDATION"
	case Data:
		return "DATA"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Error wraps an underlying error with a Kind and optional context fields
// for the diagnostics stream.
type Error struct {
	Kind   Kind
	Err    error
	Fields map[string]any
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v %v", e.Kind, e.Err, e.Fields)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Err: fmt.Errorf(format, args...)}
}

func Transientf(format string, args ...any) *Error { return newErr(Transient, format, args...) }
func Validationf(format string, args ...any) *Error { return newErr(Validation, format, args...) }
func Dataf(format string, args ...any) *Error       { return newErr(Data, format, args...) }
func Fatalf(format string, args ...any) *Error      { return newErr(Fatal, format, args...) }

// WithField attaches a diagnostic field and returns the receiver for
// chaining, e.g. errs.Dataf("near-zero magnitude").WithField("article_id", id).
func (e *Error) WithField(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error; ok is false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if as(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// as walks err's Unwrap chain for an *Error, doing the job of errors.As
// without importing the errors package.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
