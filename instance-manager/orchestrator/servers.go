package orchestrator

import (
	"context"
	"strings"

	"github.com/saascore/saas-cloud/instance-manager/dockermgmt"
	"github.com/saascore/saas-cloud/instance-manager/platform/pc"
	"github.com/saascore/saas-cloud/log"
	"github.com/saascore/saas-cloud/saasproto"
	"github.com/saascore/saas-cloud/util"
)

const connectionOK = "Connection OK"

// withServer opens a session to the named server for fn.
func (m *Manager) withServer(ctx context.Context, name string, kind saasproto.ServerKind, fn func(client pc.Executor, server *saasproto.Server) error) error {
	server := saasproto.Server{}
	if err := m.store.MustGetServer(ctx, saasproto.ServerKey{Name: name}, &server); err != nil {
		return err
	}
	if kind != "" && server.Kind != kind {
		return saasproto.NewValidationError("server %s is not a %s server", name, kind)
	}
	server.SetDefaults()
	if err := m.clients.CheckServer(ctx, &server); err != nil {
		return err
	}
	client, err := m.clients.NewClient(ctx, &server)
	if err != nil {
		return saasproto.WrapOperational(err, "unable to connect to %s", name)
	}
	defer client.Close()
	return fn(client, &server)
}

// TestConnection opens a session to the server and returns its
// hostname.
func (m *Manager) TestConnection(ctx context.Context, name string) (string, error) {
	hostname := ""
	err := m.withServer(ctx, name, "", func(client pc.Executor, server *saasproto.Server) error {
		out, err := pc.Run(ctx, client, "connection test", `echo "`+connectionOK+`" && hostname`, m.cfg.CommandTimeout())
		if err != nil {
			return err
		}
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) == 0 || strings.TrimSpace(lines[0]) != connectionOK {
			return saasproto.NewRemoteCommandError("connection test", 0, out, "unexpected output")
		}
		hostname = strings.TrimSpace(lines[len(lines)-1])
		return nil
	})
	if err != nil {
		return "", err
	}
	log.SpanLog(ctx, log.DebugLevelRemote, "connection test passed", "server", name, "hostname", hostname)
	return hostname, nil
}

func (m *Manager) ListContainers(ctx context.Context, name string) ([]dockermgmt.Container, error) {
	var containers []dockermgmt.Container
	err := m.withServer(ctx, name, saasproto.ServerKindDocker, func(client pc.Executor, server *saasproto.Server) error {
		var err error
		containers, err = m.docker.ListContainers(ctx, client)
		return err
	})
	return containers, err
}

// StopContainer stops any container on the server by name and returns
// the refreshed listing.
func (m *Manager) StopContainer(ctx context.Context, name, container string) ([]dockermgmt.Container, error) {
	return m.containerAction(ctx, name, container, m.docker.Stop)
}

// RestartContainer restarts any container on the server by name and
// returns the refreshed listing.
func (m *Manager) RestartContainer(ctx context.Context, name, container string) ([]dockermgmt.Container, error) {
	return m.containerAction(ctx, name, container, m.docker.Restart)
}

func (m *Manager) containerAction(ctx context.Context, name, container string, action func(ctx context.Context, client pc.Executor, name string) error) ([]dockermgmt.Container, error) {
	if container == "" || util.DockerSanitize(container) != container {
		return nil, saasproto.NewValidationError("invalid container name %q", container)
	}
	var containers []dockermgmt.Container
	err := m.withServer(ctx, name, saasproto.ServerKindDocker, func(client pc.Executor, server *saasproto.Server) error {
		if err := action(ctx, client, container); err != nil {
			return err
		}
		var err error
		containers, err = m.docker.ListContainers(ctx, client)
		return err
	})
	return containers, err
}
