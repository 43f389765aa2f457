package lineart

import "errors"

// Error kinds surfaced by the pipeline. None of them is fatal; each is scoped
// to the operation that returned it.
var (
	// ErrNotReady indicates the extraction primitives are not available yet.
	ErrNotReady = errors.New("lineart: extraction primitives not ready")

	// ErrExtraction indicates a frame that could not be read or processed.
	ErrExtraction = errors.New("lineart: extraction failed")

	// ErrEmptyCapture indicates an export with zero captured frames.
	ErrEmptyCapture = errors.New("lineart: no frames captured")

	// ErrEncoding indicates the artifact encoder rejected its input.
	ErrEncoding = errors.New("lineart: encoding failed")

	// ErrRouting indicates the audio graph could not be built.
	ErrRouting = errors.New("lineart: audio routing failed")

	// ErrParameterBounds indicates a parameter outside its accepted range.
	ErrParameterBounds = errors.New("lineart: parameter out of bounds")
)

// OpError wraps a cause with the operation and error kind. errors.Is matches
// both the kind and the cause.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap builds an OpError; a nil err still records the kind.
func Wrap(op string, kind, err error) error {
	return &OpError{Op: op, Kind: kind, Err: err}
}
