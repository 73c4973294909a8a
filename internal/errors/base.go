package errors

import (
	"errors"
	"fmt"
)

var (
	_ error = (*wrappedError)(nil)
	_ error = (*configError)(nil)
)

func New(text string) error {
	return errors.New(text)
}

func Wrapf(err error, format string, args ...any) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func Wrap(err error, text string) error {
	if err == nil {
		return nil
	}

	if len(text) == 0 {
		return err
	}

	return &wrappedError{
		err: err,
		msg: text,
	}
}

type wrappedError struct {
	err error
	msg string
}

const sep = ", err: "

func (err wrappedError) Error() string {
	if err.err == nil {
		return err.msg
	}

	return err.msg + sep + err.err.Error()
}

func (err wrappedError) Unwrap() error {
	if err.err == nil {
		return errors.New(err.msg)
	}

	return err.err
}

// Config marks a construction/configuration failure. Callers fail fast on
// these instead of degrading to a no-op.
func Config(format string, args ...any) error {
	return &configError{msg: fmt.Sprintf(format, args...)}
}

// IsConfig reports whether err is (or wraps) a configuration error.
func IsConfig(err error) bool {
	var ce *configError
	return errors.As(err, &ce)
}

type configError struct {
	msg string
}

func (err configError) Error() string {
	return "config: " + err.msg
}
