package manager

import "fmt"

// validationError signals a malformed or out-of-range request parameter
// for 400 mapping.
type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

// ErrValidation constructs a validationError.
func ErrValidation(format string, args ...any) error {
	return validationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	_, ok := err.(validationError)
	if ok {
		return true
	}
	_, ok = err.(kindMismatchError)
	return ok
}

// kindMismatchError signals a request dispatched against a handle of the
// wrong kind. It is a contract violation surfaced as a validation error,
// never a panic.
type kindMismatchError struct {
	op   string
	want Kind
	got  Kind
}

func (e kindMismatchError) Error() string {
	return fmt.Sprintf("%s requires a %s model, but a %s model is loaded", e.op, e.want, e.got)
}

// IsKindMismatch reports whether err indicates a kind-mismatched dispatch.
func IsKindMismatch(err error) bool {
	_, ok := err.(kindMismatchError)
	return ok
}

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ modelID string }

func (e tooBusyError) Error() string { return "too busy: " + e.modelID }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}

// modelNotFoundError signals an unknown model identifier.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns an error for an identifier absent from the
// registry and the cache.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}

// notLoadedError signals that no handle is active yet.
type notLoadedError struct{}

func (notLoadedError) Error() string { return "no model loaded" }

// IsNotLoaded reports whether err indicates the absence of an active handle.
func IsNotLoaded(err error) bool {
	_, ok := err.(notLoadedError)
	return ok
}

// dependencyUnavailableError signals a missing external dependency (e.g.,
// a native library or build tag) so the HTTP layer can return 503 instead
// of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed
// runtime dependency.
func IsDependencyUnavailable(err error) bool {
	_, ok := err.(dependencyUnavailableError)
	return ok
}

// engineError wraps a failure inside a wrapped inference engine. The
// underlying message is preserved for the 500 payload.
type engineError struct {
	op  string
	err error
}

func (e engineError) Error() string { return e.op + ": " + e.err.Error() }
func (e engineError) Unwrap() error { return e.err }

// ErrEngine wraps err as an engine failure during op.
func ErrEngine(op string, err error) error {
	if err == nil {
		return nil
	}
	return engineError{op: op, err: err}
}

// IsEngine reports whether err originated inside a wrapped engine.
func IsEngine(err error) bool {
	_, ok := err.(engineError)
	return ok
}
