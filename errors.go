package barney

import (
	"errors"
	"fmt"
)

// CodeModuleNotFound is the code carried by every not-found failure, whether
// it came from NotFound or from a host that could not resolve a reference.
const CodeModuleNotFound = "MODULE_NOT_FOUND"

var (
	// ErrInvalidTarget reports a registration against an empty target.
	ErrInvalidTarget = errors.New("barney: invalid module")
	// ErrInvalidInterceptor reports a nil or non-comparable interceptor.
	ErrInvalidInterceptor = errors.New("barney: invalid interceptor")
	// ErrNotFound matches every not-found failure under errors.Is.
	ErrNotFound = errors.New("barney: module not found")
	// ErrRequireCycle reports a module required again while its own load is
	// still running.
	ErrRequireCycle = errors.New("barney: require cycle")
)

// NotFoundError is the failure shape shared by hosts and NotFound.
type NotFoundError struct {
	Reference string
	Message   string
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = "Module not found"
	}
	if e.Reference == "" {
		return msg
	}
	return fmt.Sprintf("%s: %q", msg, e.Reference)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Code returns CodeModuleNotFound.
func (e *NotFoundError) Code() string {
	return CodeModuleNotFound
}

// NotFound returns a not-found failure indistinguishable by code from the one
// a host returns for a missing module. Interceptors return it to simulate a
// missing dependency. Only the first message is used.
func NotFound(message ...string) error {
	err := &NotFoundError{}
	if len(message) > 0 {
		err.Message = message[0]
	}
	return err
}

// NotFoundFor returns a not-found failure naming reference. Hosts use it when
// resolution fails.
func NotFoundFor(reference string) error {
	return &NotFoundError{Reference: reference, Message: "Cannot find module"}
}

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ErrorCode returns the code tag carried by err, or "" when it has none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	if IsNotFound(err) {
		return CodeModuleNotFound
	}
	return ""
}

// RegistrationError captures the operation and target of a rejected
// registration call.
type RegistrationError struct {
	Op     string
	Target string
	Err    error
}

func (e *RegistrationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Target == "" {
		return fmt.Sprintf("%v (op=%s)", e.Err, e.Op)
	}
	return fmt.Sprintf("%v (op=%s target=%q)", e.Err, e.Op, e.Target)
}

func (e *RegistrationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func registrationError(op, target string, err error) error {
	if err == nil {
		return nil
	}
	return &RegistrationError{Op: op, Target: target, Err: err}
}
