//go:build linux

// Package process launches the child programs Exec messages request.
// Go has no direct fork/exec primitive; os/exec.Cmd is the spawn API
// that accepts explicit fd remapping and close-on-exec, so every
// child is built on top of it rather than raw fork/exec/dup2.
package process

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/pkg/errors"

	"github.com/canonical/ltx/internal/childtable"
	"github.com/canonical/ltx/internal/reactor"
)

// Handle is what the caller needs to keep alive for as long as the
// child runs: the *exec.Cmd itself (so Launch's caller isn't the one
// blocking in Wait — the reactor's signal source reaps children
// asynchronously) and the write end closed immediately in the
// parent, which Launch already does before returning.
type Handle struct {
	Cmd *exec.Cmd
}

// Launch starts path with argv [path] (extra arguments are accepted
// by the protocol but unimplemented in this core), merging its stdout
// and stderr onto one pipe, registers the parent's read end with r
// tagged by slot's tag, and records the child's pid in table.
func Launch(table *childtable.Table, r *reactor.Reactor, slot uint8, tag reactor.Tag, path string) (*Handle, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrap(err, "pipe")
	}

	cmd := exec.Command(path)
	cmd.Stdout = pw
	cmd.Stderr = pw
	cmd.SysProcAttr = &syscall.SysProcAttr{
		// New session, no controlling terminal: LTX's children are
		// headless batch commands, never attached to an interactive
		// tty.
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, errors.Wrapf(err, "exec %q", path)
	}

	// The write end is only needed by the child; the parent's copy
	// must close immediately so the pipe reports EOF once the child
	// (and anything it forked) has exited.
	if err := pw.Close(); err != nil {
		return nil, errors.Wrap(err, "close parent pipe write end")
	}

	if err := unixSetNonblock(pr); err != nil {
		return nil, err
	}

	if err := r.AddLevelReadable(int(pr.Fd()), tag); err != nil {
		return nil, err
	}

	if err := table.Allocate(slot, pr, cmd.Process.Pid); err != nil {
		return nil, err
	}

	return &Handle{Cmd: cmd}, nil
}
