package pc

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os/exec"
	"time"
)

// LocalClient implements Executor but runs commands locally.
// This is used for servers with the local connect mode, typically a
// development machine running docker and postgres itself.
type LocalClient struct{}

func (s *LocalClient) Execute(command string, timeout time.Duration) (int, string, string, error) {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return -1, stdout.String(), stderr.String(), fmt.Errorf("command timed out after %s", timeout)
	}
	if err == nil {
		return 0, stdout.String(), stderr.String(), nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), stdout.String(), stderr.String(), nil
	}
	return -1, stdout.String(), stderr.String(), err
}

func (s *LocalClient) WriteFile(path, content string) error {
	return ioutil.WriteFile(path, []byte(content), 0644)
}

func (s *LocalClient) Close() error {
	return nil
}
