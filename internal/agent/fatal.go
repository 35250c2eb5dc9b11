package agent

import (
	stderrors "errors"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// FatalError is the diagnostic shape for every failure LTX cannot
// recover from: "[file:function:line] <reason>: <expr> = <val>:
// <errno-name>".
type FatalError struct {
	File, Func string
	Line       int
	Reason     string
	Expr       string
	Val        string
	Err        error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("[%s:%s:%d] %s: %s = %s: %s", e.File, e.Func, e.Line, e.Reason, e.Expr, e.Val, errnoName(e.Err))
}

// Unwrap lets errors.Is/errors.As see through to the underlying
// syscall/protocol error.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatalf builds a FatalError, capturing its caller's own source
// location (not Fatalf's), the way an assertion macro captures
// __FILE__/__func__/__LINE__ at the call site.
func Fatalf(reason, expr string, val any, err error) error {
	pc, file, line, _ := runtime.Caller(1)

	name := "?"
	if fn := runtime.FuncForPC(pc); fn != nil {
		name = fn.Name()
	}

	return &FatalError{File: file, Func: name, Line: line, Reason: reason, Expr: expr, Val: fmt.Sprint(val), Err: err}
}

// errnoName renders err as a symbolic EXXX name whenever it wraps a
// syscall.Errno, using x/sys/unix's full errno table rather than a
// hand-picked subset, so the <errno-name> slot never falls back to a
// human-readable sentence like "operation not permitted". An errno
// the table genuinely doesn't know renders as its bare numeric value
// instead of prose.
func errnoName(err error) string {
	if err == nil {
		return "-"
	}

	var errno syscall.Errno
	if stderrors.As(err, &errno) {
		if name := unix.ErrnoName(errno); name != "" {
			return name
		}

		return fmt.Sprintf("errno(%d)", errno)
	}

	return err.Error()
}

// EmitFatal writes the final stderr diagnostic plus a backtrace
// before the process exits 1.
func EmitFatal(log *logrus.Logger, err error) {
	log.WithError(err).Error("fatal")
	fmt.Fprintln(os.Stderr, string(debug.Stack()))
}
