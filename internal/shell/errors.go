package shell

import "errors"

// Sentinel error kinds for the shell.
var (
	ErrParseLine = errors.New("cannot parse command line")
	ErrExit      = errors.New("exit requested")
)
