package model

import "errors"

// Error kinds. Match them with errors.Is.
var (
	// ErrConfiguration marks malformed or missing guild rule config. The rule is ignored.
	ErrConfiguration = errors.New("configuration error")
	// ErrStorage marks a failed port call.
	ErrStorage = errors.New("storage error")
	// ErrValidation marks an out-of-range input.
	ErrValidation = errors.New("validation error")
)

// Error carries an error kind together with the failed operation and its cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// StorageError wraps err as a storage failure of op. It returns nil for a nil err.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: ErrStorage, Op: op, Err: err}
}

// ConfigError wraps err as a configuration problem of op.
func ConfigError(op string, err error) error {
	return &Error{Kind: ErrConfiguration, Op: op, Err: err}
}

// ValidationError wraps err as invalid input to op.
func ValidationError(op string, err error) error {
	return &Error{Kind: ErrValidation, Op: op, Err: err}
}
