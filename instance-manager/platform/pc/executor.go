package pc

import (
	"time"
)

// Executor is an open shell session to one host. It is acquired once
// per high level operation and must be closed by the caller.
type Executor interface {
	// Execute runs the command and returns its exit code and captured
	// stdout and stderr. A non-zero exit code is not an error; err is
	// only set if the command could not be run or timed out.
	Execute(command string, timeout time.Duration) (int, string, string, error)
	// WriteFile writes content to path on the host, replacing any
	// existing file.
	WriteFile(path, content string) error
	Close() error
}

var DefaultTimeout = 120 * time.Second
