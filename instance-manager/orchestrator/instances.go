package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/saascore/saas-cloud/instance-manager/platform/pc"
	"github.com/saascore/saas-cloud/saasproto"
)

// CreateInstance records a new draft instance. Servers not given are
// chosen by the placement policy. Fields owned by the orchestrator
// are ignored.
func (m *Manager) CreateInstance(ctx context.Context, in *saasproto.Instance) (*saasproto.Instance, error) {
	inst := saasproto.Instance{
		Key:          in.Key,
		BaseDomain:   in.BaseDomain,
		Customer:     in.Customer,
		DockerServer: in.DockerServer,
		DBServer:     in.DBServer,
		OdooVersion:  in.OdooVersion,
		ExtraConfig:  in.ExtraConfig,
		State:        saasproto.StateDraft,
	}
	for _, line := range in.Lines {
		inst.AddLine(saasproto.InstallationLine{
			Sequence: line.Sequence,
			Module:   line.Module,
			Bundle:   line.Bundle,
		})
	}
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	err := m.runOp(ctx, inst.Key, "create", func(ctx context.Context, op *opState) error {
		if inst.DockerServer == "" || inst.DBServer == "" {
			servers, err := m.store.ListServers(ctx)
			if err != nil {
				return err
			}
			if inst.DockerServer == "" {
				inst.DockerServer = m.placement(&inst, saasproto.ServerKindDocker, servers)
			}
			if inst.DBServer == "" {
				inst.DBServer = m.placement(&inst, saasproto.ServerKindDB, servers)
			}
		}
		inst.AppendLog(m.now(), "Created")
		if err := m.store.CreateInstance(ctx, &inst); err != nil {
			return err
		}
		m.publish(ctx, op, &inst, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// UpdateInstance changes the user editable fields of an instance.
// Placement and version can only change before the instance has
// been deployed successfully.
func (m *Manager) UpdateInstance(ctx context.Context, in *saasproto.Instance) (*saasproto.Instance, error) {
	var result *saasproto.Instance
	err := m.runOp(ctx, in.Key, "update", func(ctx context.Context, op *opState) error {
		inst, err := m.loadInstance(ctx, in.Key)
		if err != nil {
			return err
		}
		if inst.State == saasproto.StateCancelled {
			return saasproto.NewValidationError("instance %s is cancelled", inst.Key.Subdomain)
		}
		editable := inst.State == saasproto.StateDraft || inst.State == saasproto.StateFailed
		placementChanged := (in.DockerServer != "" && in.DockerServer != inst.DockerServer) ||
			(in.DBServer != "" && in.DBServer != inst.DBServer) ||
			(in.OdooVersion != "" && in.OdooVersion != inst.OdooVersion) ||
			(in.BaseDomain != "" && in.BaseDomain != inst.BaseDomain)
		if placementChanged && !editable {
			return saasproto.NewValidationError("cannot change servers, version or domain of instance in state %s", inst.State)
		}
		// odoo.conf is only rendered on deploy
		if in.ExtraConfig != nil && !sameConfig(in.ExtraConfig, inst.ExtraConfig) && !editable {
			return saasproto.NewValidationError("cannot change extra config of instance in state %s", inst.State)
		}
		// the role and database already live on the current server
		if in.DBServer != "" && in.DBServer != inst.DBServer && inst.DBUser != "" {
			return saasproto.NewValidationError("cannot move instance %s off database server %s once its database user is provisioned", inst.Key.Subdomain, inst.DBServer)
		}
		upd := *inst
		if in.DockerServer != "" && in.DockerServer != inst.DockerServer {
			// ports are scoped to the docker server
			if inst.HasPorts() {
				if err := m.store.ReleasePorts(ctx, saasproto.ServerKey{Name: inst.DockerServer}, inst.Key.Subdomain); err != nil {
					return err
				}
				upd.HttpPort = 0
				upd.LongpollingPort = 0
			}
			upd.DockerServer = in.DockerServer
		}
		if in.DBServer != "" {
			upd.DBServer = in.DBServer
		}
		if in.OdooVersion != "" {
			upd.OdooVersion = in.OdooVersion
		}
		if in.BaseDomain != "" {
			upd.BaseDomain = in.BaseDomain
		}
		if in.Customer != "" {
			upd.Customer = in.Customer
		}
		if in.ExtraConfig != nil {
			upd.ExtraConfig = in.ExtraConfig
		}
		if err := upd.Validate(); err != nil {
			return err
		}
		result = &upd
		return m.save(ctx, &upd)
	})
	return result, err
}

func sameConfig(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func (m *Manager) GetInstance(ctx context.Context, key saasproto.InstanceKey) (*saasproto.Instance, error) {
	return m.loadInstance(ctx, key)
}

func (m *Manager) ListInstances(ctx context.Context) ([]saasproto.Instance, error) {
	return m.store.ListInstances(ctx)
}

// PurgeInstance removes the record of a cancelled instance.
func (m *Manager) PurgeInstance(ctx context.Context, key saasproto.InstanceKey) error {
	return m.runOp(ctx, key, "purge", func(ctx context.Context, op *opState) error {
		inst, err := m.loadInstance(ctx, key)
		if err != nil {
			return err
		}
		if inst.State != saasproto.StateCancelled {
			return saasproto.NewValidationError("only cancelled instances can be purged, %s is %s", key.Subdomain, inst.State)
		}
		return m.store.DeleteInstance(ctx, key)
	})
}

// AddLine appends a pending installation line.
func (m *Manager) AddLine(ctx context.Context, key saasproto.InstanceKey, in saasproto.InstallationLine) (*saasproto.InstallationLine, error) {
	var result saasproto.InstallationLine
	err := m.runOp(ctx, key, "add-line", func(ctx context.Context, op *opState) error {
		inst, err := m.loadInstance(ctx, key)
		if err != nil {
			return err
		}
		if inst.State == saasproto.StateCancelled {
			return saasproto.NewValidationError("instance %s is cancelled", key.Subdomain)
		}
		if err := in.Validate(); err != nil {
			return err
		}
		result = inst.AddLine(in)
		return m.save(ctx, inst)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// InstallModules installs every pending line into the running
// container. Lines are installed one at a time; a failed line is
// marked failed with its output and the next line is still tried.
func (m *Manager) InstallModules(ctx context.Context, key saasproto.InstanceKey) (*saasproto.Instance, error) {
	var result *saasproto.Instance
	err := m.runOp(ctx, key, "install-modules", func(ctx context.Context, op *opState) error {
		inst, err := m.loadInstance(ctx, key)
		if err != nil {
			return err
		}
		result = inst
		if !saasproto.CanInstallModules(inst.State) {
			return saasproto.NewValidationError("modules can only be installed on a running instance, %s is %s", key.Subdomain, inst.State)
		}
		pending := inst.PendingLines()
		if len(pending) == 0 {
			return nil
		}
		dockerServer, err := m.loadServer(ctx, inst.DockerServer, saasproto.ServerKindDocker, "docker")
		if err != nil {
			return err
		}
		sessions, closeAll, err := m.openSessions(ctx, dockerServer)
		if err != nil {
			return saasproto.WrapOperational(err, "unable to connect to %s", dockerServer.Key.Name)
		}
		defer closeAll()
		client := sessions[dockerServer.Key.Name].client

		for _, ii := range pending {
			line := &inst.Lines[ii]
			m.installLine(ctx, inst, line, client)
			if err := m.save(ctx, inst); err != nil {
				return err
			}
		}
		m.publish(ctx, op, inst, nil)
		return nil
	})
	return result, err
}

func (m *Manager) installLine(ctx context.Context, inst *saasproto.Instance, line *saasproto.InstallationLine, client pc.Executor) {
	names, err := m.resolver.InstallSet(ctx, inst.OdooVersion, line)
	if err != nil {
		line.State = saasproto.LineFailed
		line.Log = m.tail(err.Error())
		m.logStep(ctx, inst, fmt.Sprintf("Cannot install %s: %v", lineName(line), err))
		return
	}
	m.logStep(ctx, inst, fmt.Sprintf("Installing %s: %s", lineName(line), strings.Join(names, ",")))
	out, err := m.docker.InstallModules(ctx, client, inst.ContainerName(), inst.DBName(), names)
	if err != nil {
		line.State = saasproto.LineFailed
		line.Log = m.tail(failureLog(out, err))
		m.logStep(ctx, inst, fmt.Sprintf("Install of %s failed", lineName(line)))
		return
	}
	line.State = saasproto.LineInstalled
	line.Log = ""
	inst.AddInstalled(names...)
	m.logStep(ctx, inst, fmt.Sprintf("Installed %s", lineName(line)))
}

func lineName(line *saasproto.InstallationLine) string {
	if line.Bundle != "" {
		return "bundle " + line.Bundle
	}
	return "module " + line.Module
}

// failureLog is the captured output of a failed command, or the error
// if nothing was captured.
func failureLog(out string, err error) string {
	if s := outputOf(err); s != "" {
		return s
	}
	if s := strings.TrimSpace(out); s != "" {
		return s + "\n" + err.Error()
	}
	return err.Error()
}
