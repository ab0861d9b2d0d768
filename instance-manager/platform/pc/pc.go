package pc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/saascore/saas-cloud/log"
	"github.com/saascore/saas-cloud/saasproto"
	"github.com/saascore/saas-cloud/util"
)

// Some utility functions

// Run executes cmd and converts a non-zero exit code into a
// RemoteCommandFailure. On success it returns stdout.
func Run(ctx context.Context, client Executor, what, cmd string, timeout time.Duration) (string, error) {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	log.SpanLog(ctx, log.DebugLevelRemote, "run command", "what", what, "cmd", cmd, "timeout", timeout.String())
	code, out, errout, err := client.Execute(cmd, timeout)
	if err != nil {
		return "", fmt.Errorf("error running %s, %v", what, err)
	}
	if code != 0 {
		log.SpanLog(ctx, log.DebugLevelRemote, "command failed", "what", what, "code", code, "stderr", util.TailString(errout, 500))
		return out, saasproto.NewRemoteCommandError(what, code, out, errout)
	}
	return out, nil
}

// WriteFile writes the file contents. Content travels on the session's
// stdin, never through the shell command line.
func WriteFile(ctx context.Context, client Executor, file string, contents string, kind string) error {
	log.SpanLog(ctx, log.DebugLevelRemote, "write file", "kind", kind, "file", file)
	if err := client.WriteFile(file, contents); err != nil {
		return fmt.Errorf("error writing %s %s, %v", kind, file, err)
	}
	return nil
}

func MkdirAll(ctx context.Context, client Executor, dirs ...string) error {
	cmd := "mkdir -p " + quoteAll(dirs)
	_, err := Run(ctx, client, "mkdir", cmd, 0)
	return err
}

// Chown sets ownership recursively, using numeric ids since the
// container's user generally does not exist on the host.
func Chown(ctx context.Context, client Executor, uid, gid int, dirs ...string) error {
	cmd := fmt.Sprintf("chown -R %d:%d %s", uid, gid, quoteAll(dirs))
	_, err := Run(ctx, client, "chown", cmd, 0)
	return err
}

func DeleteDir(ctx context.Context, client Executor, dir string) error {
	log.SpanLog(ctx, log.DebugLevelRemote, "deleting directory", "dir", dir)
	if dir == "" || dir == "/" {
		return fmt.Errorf("refusing to delete directory %q", dir)
	}
	_, err := Run(ctx, client, "rm dir", "rm -rf "+util.ShellQuote(dir), 0)
	return err
}

func quoteAll(args []string) string {
	quoted := make([]string, len(args))
	for ii, arg := range args {
		quoted[ii] = util.ShellQuote(arg)
	}
	return strings.Join(quoted, " ")
}
