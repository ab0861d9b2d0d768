package pc

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/saascore/saas-cloud/log"
	"github.com/saascore/saas-cloud/saasproto"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	ctx := log.StartTestSpan(context.Background())
	client := NewDummyClient("host")
	client.On("fail", DummyResponse{ExitCode: 2, Out: "partial", ErrOut: "boom"})
	client.On("broken", DummyResponse{ExitCode: -1, Err: fmt.Errorf("connection lost")})
	client.On("hostname", DummyResponse{Out: "host1\n"})

	out, err := Run(ctx, client, "hostname", "hostname", 0)
	require.Nil(t, err)
	require.Equal(t, "host1\n", out)

	out, err = Run(ctx, client, "failing step", "fail now", 0)
	require.True(t, errors.Is(err, saasproto.ErrRemoteCommandFailure))
	require.Equal(t, "partial", out)
	var serr *saasproto.Error
	require.True(t, errors.As(err, &serr))
	require.Equal(t, 2, serr.ExitCode)
	require.Equal(t, "boom", serr.Stderr)

	_, err = Run(ctx, client, "broken step", "broken", 0)
	require.NotNil(t, err)
	require.Equal(t, saasproto.ErrorKind(0), saasproto.KindOf(err))
	require.Contains(t, err.Error(), "connection lost")
}

func TestHelpers(t *testing.T) {
	ctx := log.StartTestSpan(context.Background())
	client := NewDummyClient("host")

	require.Nil(t, MkdirAll(ctx, client, "/home/odoo/acme/etc", "/home/odoo/acme/data"))
	require.Nil(t, Chown(ctx, client, 101, 101, "/home/odoo/acme"))
	require.Nil(t, DeleteDir(ctx, client, "/home/odoo/it's"))
	require.NotNil(t, DeleteDir(ctx, client, "/"))
	require.Equal(t, []string{
		"mkdir -p '/home/odoo/acme/etc' '/home/odoo/acme/data'",
		"chown -R 101:101 '/home/odoo/acme'",
		`rm -rf '/home/odoo/it'\''s'`,
	}, client.Cmds)

	require.Nil(t, WriteFile(ctx, client, "/home/odoo/acme/etc/odoo.conf", "[options]\n", "config"))
	require.Equal(t, "[options]\n", client.Files["/home/odoo/acme/etc/odoo.conf"])
	client.WriteErr = fmt.Errorf("disk full")
	err := WriteFile(ctx, client, "/x", "y", "config")
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "disk full")
}

func TestDummySequence(t *testing.T) {
	client := NewDummyClient("host")
	client.On("inspect", DummyResponse{Out: "created"}, DummyResponse{Out: "running"})
	_, out, _, _ := client.Execute("docker inspect x", 0)
	require.Equal(t, "created", out)
	_, out, _, _ = client.Execute("docker inspect x", 0)
	require.Equal(t, "running", out)
	_, out, _, _ = client.Execute("docker inspect x", 0)
	require.Equal(t, "running", out)
	require.Equal(t, 3, len(client.CmdsContaining("inspect")))
	require.Nil(t, client.Close())
	require.True(t, client.Closed)
}

func TestLocalClient(t *testing.T) {
	client := &LocalClient{}
	defer client.Close()

	code, out, errout, err := client.Execute("echo hello; echo oops 1>&2; exit 3", 0)
	require.Nil(t, err)
	require.Equal(t, 3, code)
	require.Equal(t, "hello\n", out)
	require.Equal(t, "oops\n", errout)

	dir, err := ioutil.TempDir("", "pctest")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	file := filepath.Join(dir, "odoo.conf")
	require.Nil(t, client.WriteFile(file, "a = '$HOME'\n"))
	code, out, _, err = client.Execute("cat "+file, 0)
	require.Nil(t, err)
	require.Equal(t, 0, code)
	require.Equal(t, "a = '$HOME'\n", out)
}
