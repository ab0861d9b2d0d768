package dockermgmt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/saascore/saas-cloud/instance-manager/platform/pc"
	"github.com/saascore/saas-cloud/instance-manager/render"
	"github.com/saascore/saas-cloud/log"
	"github.com/saascore/saas-cloud/saasproto"
	"github.com/saascore/saas-cloud/util"
)

const (
	DefaultComposeCommand = "docker compose"
	ComposeFileName       = "docker-compose.yml"
	ConfFileName          = "odoo.conf"

	StatusRunning = "running"
	StatusExited  = "exited"
	StatusDead    = "dead"

	// lines of container output kept when a container dies at startup
	FailureLogLines = 50
)

// Docker runs docker and docker compose commands on a docker server.
type Docker struct {
	ComposeCommand string
	// Timeout for short commands
	Timeout time.Duration
	// Timeout for database initialization and module installs
	LongTimeout time.Duration
}

func (s *Docker) compose(file string, args string) string {
	cmd := s.ComposeCommand
	if cmd == "" {
		cmd = DefaultComposeCommand
	}
	return fmt.Sprintf("%s -f %s %s", cmd, util.ShellQuote(file), args)
}

func ComposeFile(instanceDir string) string {
	return strings.TrimSuffix(instanceDir, "/") + "/" + ComposeFileName
}

func ConfFile(instanceDir string) string {
	return strings.TrimSuffix(instanceDir, "/") + "/etc/" + ConfFileName
}

func InstanceDirs(instanceDir string) []string {
	dir := strings.TrimSuffix(instanceDir, "/")
	return []string{dir + "/addons", dir + "/etc", dir + "/data"}
}

func (s *Docker) ComposeUp(ctx context.Context, client pc.Executor, file string) error {
	log.SpanLog(ctx, log.DebugLevelDeploy, "running docker compose up", "file", file)
	_, err := pc.Run(ctx, client, "docker compose up", s.compose(file, "up -d"), s.LongTimeout)
	return err
}

// ComposeDown stops and removes the containers and network. With
// volumes set, named volumes and orphaned containers are removed too.
func (s *Docker) ComposeDown(ctx context.Context, client pc.Executor, file string, volumes bool) error {
	args := "down"
	if volumes {
		args = "down -v --remove-orphans"
	}
	log.SpanLog(ctx, log.DebugLevelDeploy, "running docker compose down", "file", file, "volumes", volumes)
	_, err := pc.Run(ctx, client, "docker compose down", s.compose(file, args), s.Timeout)
	return err
}

// InitDatabase runs a one-shot container that creates the database
// schema with the given modules, without demo data, and exits.
func (s *Docker) InitDatabase(ctx context.Context, client pc.Executor, file, dbName string, modules []string) (string, error) {
	args := fmt.Sprintf("run --rm %s odoo -c %s -d %s -i %s --without-demo=all --stop-after-init",
		render.ServiceName, render.ContainerConfPath, util.ShellQuote(dbName), util.ShellQuote(strings.Join(modules, ",")))
	log.SpanLog(ctx, log.DebugLevelDeploy, "initializing database", "db", dbName, "modules", modules)
	return pc.Run(ctx, client, "database initialization", s.compose(file, args), s.LongTimeout)
}

// InstallModules installs modules from inside the running container.
func (s *Docker) InstallModules(ctx context.Context, client pc.Executor, container, dbName string, modules []string) (string, error) {
	cmd := fmt.Sprintf("docker exec %s odoo -c %s -d %s -i %s --stop-after-init --no-http",
		util.ShellQuote(container), render.ContainerConfPath, util.ShellQuote(dbName), util.ShellQuote(strings.Join(modules, ",")))
	log.SpanLog(ctx, log.DebugLevelDeploy, "installing modules", "container", container, "modules", modules)
	return pc.Run(ctx, client, "module installation", cmd, s.LongTimeout)
}

func isNoSuchContainer(err error) bool {
	return err != nil && strings.Contains(err.Error(), "No such container")
}

// Stop stops the container. A container that does not exist is
// already stopped.
func (s *Docker) Stop(ctx context.Context, client pc.Executor, name string) error {
	_, err := pc.Run(ctx, client, "docker stop", "docker stop "+util.ShellQuote(name), s.Timeout)
	if isNoSuchContainer(err) {
		log.SpanLog(ctx, log.DebugLevelDeploy, "container already removed", "name", name)
		return nil
	}
	return err
}

func (s *Docker) Restart(ctx context.Context, client pc.Executor, name string) error {
	_, err := pc.Run(ctx, client, "docker restart", "docker restart "+util.ShellQuote(name), s.Timeout)
	return err
}

// Status returns the container's state as reported by docker inspect,
// e.g. created, running, restarting, exited, dead.
func (s *Docker) Status(ctx context.Context, client pc.Executor, name string) (string, error) {
	cmd := fmt.Sprintf("docker inspect -f '{{.State.Status}}' %s", util.ShellQuote(name))
	out, err := pc.Run(ctx, client, "docker inspect", cmd, s.Timeout)
	return strings.TrimSpace(out), err
}

func (s *Docker) Logs(ctx context.Context, client pc.Executor, name string, tail int) (string, error) {
	cmd := fmt.Sprintf("docker logs --tail %d %s 2>&1", tail, util.ShellQuote(name))
	return pc.Run(ctx, client, "docker logs", cmd, s.Timeout)
}

// WaitRunning polls the container state until it is running. It fails
// at once if the container exits or dies, with the container's last
// log lines in the error, and fails after the given attempts
// otherwise. Inspect failures count as not running yet.
func (s *Docker) WaitRunning(ctx context.Context, client pc.Executor, name string, interval time.Duration, attempts int) error {
	status := ""
	for ii := 0; ii < attempts; ii++ {
		if ii > 0 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		out, err := s.Status(ctx, client, name)
		if err != nil && saasproto.KindOf(err) != saasproto.RemoteCommandFailure {
			return err
		}
		if err != nil {
			log.SpanLog(ctx, log.DebugLevelDeploy, "container status unavailable", "name", name, "attempt", ii+1, "err", err)
			continue
		}
		status = out
		log.SpanLog(ctx, log.DebugLevelDeploy, "container status", "name", name, "status", status, "attempt", ii+1)
		switch status {
		case StatusRunning:
			return nil
		case StatusExited, StatusDead:
			logs, lerr := s.Logs(ctx, client, name, FailureLogLines)
			if lerr != nil {
				logs = fmt.Sprintf("unable to get logs, %v", lerr)
			}
			return saasproto.NewReadinessTimeoutError("container %s %s during startup, logs:\n%s", name, status, strings.TrimSpace(logs))
		}
	}
	return saasproto.NewReadinessTimeoutError("container %s not running after %d checks, last status %q", name, attempts, status)
}

// Container is one row of docker ps.
type Container struct {
	ID      string `json:"id"`
	Image   string `json:"image"`
	Command string `json:"command"`
	Created string `json:"created"`
	Status  string `json:"status"`
	Ports   string `json:"ports"`
	Name    string `json:"name"`
}

const psSeparator = "|||"

var psFormat = strings.Join([]string{
	"{{.ID}}", "{{.Image}}", "{{.Command}}", "{{.CreatedAt}}",
	"{{.Status}}", "{{.Ports}}", "{{.Names}}",
}, psSeparator)

func (s *Docker) ListContainers(ctx context.Context, client pc.Executor) ([]Container, error) {
	cmd := fmt.Sprintf("docker ps -a --format '%s' --no-trunc", psFormat)
	out, err := pc.Run(ctx, client, "docker ps", cmd, s.Timeout)
	if err != nil {
		return nil, err
	}
	return ParseContainers(out), nil
}

// ParseContainers parses docker ps output in psFormat. Malformed lines
// are skipped.
func ParseContainers(out string) []Container {
	containers := []Container{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fs := strings.Split(line, psSeparator)
		if len(fs) < 7 {
			continue
		}
		id := fs[0]
		if len(id) > 12 {
			id = id[:12]
		}
		containers = append(containers, Container{
			ID:      id,
			Image:   fs[1],
			Command: strings.Trim(fs[2], `"`),
			Created: fs[3],
			Status:  fs[4],
			Ports:   fs[5],
			Name:    fs[6],
		})
	}
	return containers
}
