package main

import (
	"errors"

	"github.com/lunacore/luna/internal/lunaerr"
)

// Exit codes for the CLI surface: 0 success, 1 input error, 2 I/O error,
// 3 backend unavailable.
const (
	exitOK                 = 0
	exitInputError         = 1
	exitIOError            = 2
	exitBackendUnavailable = 3
)

// exitCode maps a returned error to the process exit code it should produce.
// Errors that aren't a *lunaerr.Error (e.g. a config file that failed to
// parse before any Kind could be attached) are treated as I/O errors, since
// every CLI entry point's non-governor failures are config/state I/O.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var lerr *lunaerr.Error
	if !errors.As(err, &lerr) {
		return exitIOError
	}

	switch lerr.Kind {
	case lunaerr.InputValidation:
		return exitInputError
	case lunaerr.BackendUnavailable, lunaerr.BackendMalformed:
		return exitBackendUnavailable
	case lunaerr.StateIOError, lunaerr.ParseError, lunaerr.CFIASplitError:
		return exitIOError
	default:
		return exitIOError
	}
}
