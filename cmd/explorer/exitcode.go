package main

import (
	"errors"

	"github.com/chesscoach/explorer/internal/explorerrors"
)

// exitError pairs an error with the process exit code it should produce.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCodeFor maps a returned error to a process exit code. Errors not
// explicitly classified with withExitCode fall back to exitIOError, since
// the overwhelming majority of unclassified failures in this CLI are
// filesystem or store I/O faults.
func exitCodeFor(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, explorerrors.ErrCancelled) {
		return exitCancelled
	}
	return exitIOError
}
