package errors // import "waitmap.dev/cmd/pkg/errors"

import (
	"errors"
	"fmt"
	"runtime"
)

const depth = 10

// E wraps an error together with the program counters of its origin, so a
// failure surfaced far from where it happened can still be located.
type E struct {
	Err error
	pc  []uintptr
}

func (e *E) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *E) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Frames returns the call frames recorded at construction.
func (e *E) Frames() *runtime.Frames {
	if e == nil || len(e.pc) == 0 {
		return nil
	}
	return runtime.CallersFrames(e.pc)
}

func New(format string, args ...any) error {
	e := &E{
		Err: fmt.Errorf(format, args...),
		pc:  make([]uintptr, depth),
	}

	e.pc = e.pc[:runtime.Callers(2, e.pc)]

	return e
}

func Join(err ...error) error {
	return errors.Join(err...)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
