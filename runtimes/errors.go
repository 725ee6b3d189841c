package runtimes

import "github.com/pkg/errors"

// Error taxonomy for the runtime. All errors returned by a Context, Executor
// or registry wrap one of these sentinels, so callers can classify them with
// errors.Is.
var (
	// ErrInvalidArgument indicates a bad shape, dtype or malformed request.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAlreadyExists indicates a duplicate registration, e.g. a function
	// name already present in the registry.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound indicates an unknown device, function or kernel.
	ErrNotFound = errors.New("not found")

	// ErrFailedPrecondition indicates the target is in a state that rejects
	// the call, e.g. an executor with a pending unrecovered error.
	ErrFailedPrecondition = errors.New("failed precondition")

	// ErrResourceExhausted indicates an allocation failure.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrInternal indicates a runtime-implementation failure.
	ErrInternal = errors.New("internal error")

	// ErrUnimplemented indicates a capability not supported by the active
	// runtime family.
	ErrUnimplemented = errors.New("unimplemented")
)

// InvalidArgumentf returns an ErrInvalidArgument annotated with the formatted
// message and a stack trace.
func InvalidArgumentf(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}

// AlreadyExistsf returns an ErrAlreadyExists annotated with the formatted
// message and a stack trace.
func AlreadyExistsf(format string, args ...any) error {
	return errors.Wrapf(ErrAlreadyExists, format, args...)
}

// NotFoundf returns an ErrNotFound annotated with the formatted message and a
// stack trace.
func NotFoundf(format string, args ...any) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

// FailedPreconditionf returns an ErrFailedPrecondition annotated with the
// formatted message and a stack trace.
func FailedPreconditionf(format string, args ...any) error {
	return errors.Wrapf(ErrFailedPrecondition, format, args...)
}

// ResourceExhaustedf returns an ErrResourceExhausted annotated with the
// formatted message and a stack trace.
func ResourceExhaustedf(format string, args ...any) error {
	return errors.Wrapf(ErrResourceExhausted, format, args...)
}

// Internalf returns an ErrInternal annotated with the formatted message and a
// stack trace.
func Internalf(format string, args ...any) error {
	return errors.Wrapf(ErrInternal, format, args...)
}

// Unimplementedf returns an ErrUnimplemented annotated with the formatted
// message and a stack trace.
func Unimplementedf(format string, args ...any) error {
	return errors.Wrapf(ErrUnimplemented, format, args...)
}
