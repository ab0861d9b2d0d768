package orchestrator

import (
	"context"

	"github.com/saascore/saas-cloud/saasproto"
)

// Stop stops the container. The instance keeps its resources and can
// be restarted.
func (m *Manager) Stop(ctx context.Context, key saasproto.InstanceKey) (*saasproto.Instance, error) {
	return m.containerOp(ctx, key, "stop", saasproto.EventStop)
}

// Restart restarts the container in place.
func (m *Manager) Restart(ctx context.Context, key saasproto.InstanceKey) (*saasproto.Instance, error) {
	return m.containerOp(ctx, key, "restart", saasproto.EventRestart)
}

// Redeploy recreates the container from the compose file, keeping the
// data volumes.
func (m *Manager) Redeploy(ctx context.Context, key saasproto.InstanceKey) (*saasproto.Instance, error) {
	return m.containerOp(ctx, key, "redeploy", saasproto.EventRedeploy)
}

// Suspend stops the container and marks the instance suspended.
func (m *Manager) Suspend(ctx context.Context, key saasproto.InstanceKey) (*saasproto.Instance, error) {
	return m.containerOp(ctx, key, "suspend", saasproto.EventSuspend)
}

// containerOp runs an operation whose effects only touch the
// container. State is unchanged if any effect fails.
func (m *Manager) containerOp(ctx context.Context, key saasproto.InstanceKey, name string, ev saasproto.Event) (*saasproto.Instance, error) {
	var result *saasproto.Instance
	err := m.runOp(ctx, key, name, func(ctx context.Context, op *opState) error {
		inst, err := m.loadInstance(ctx, key)
		if err != nil {
			return err
		}
		result = inst
		_, effects, err := saasproto.Apply(inst.State, ev)
		if err != nil {
			return err
		}
		dockerServer, err := m.loadServer(ctx, inst.DockerServer, saasproto.ServerKindDocker, "docker")
		if err != nil {
			return err
		}
		d := &deployment{
			op:           op,
			inst:         inst,
			dockerServer: dockerServer,
			dir:          instanceDir(dockerServer, inst),
		}
		if err := m.runEffects(ctx, d, effects); err != nil {
			return saasproto.WrapOperational(err, "%s of %s failed", name, inst.Key.Subdomain)
		}
		return m.commit(ctx, op, inst, ev, nil)
	})
	return result, err
}

// Delete tears down the container, instance directory, database and
// DNS record, releases the ports and marks the instance cancelled.
// Only removal of the instance directory is fatal; the other steps
// are logged and skipped on failure.
func (m *Manager) Delete(ctx context.Context, key saasproto.InstanceKey) (*saasproto.Instance, error) {
	var result *saasproto.Instance
	err := m.runOp(ctx, key, "delete", func(ctx context.Context, op *opState) error {
		inst, err := m.loadInstance(ctx, key)
		if err != nil {
			return err
		}
		result = inst
		_, effects, err := saasproto.Apply(inst.State, saasproto.EventDelete)
		if err != nil {
			return err
		}
		d := &deployment{
			op:   op,
			inst: inst,
		}
		// instances never placed have nothing remote to tear down
		if inst.DockerServer != "" {
			if d.dockerServer, err = m.loadServer(ctx, inst.DockerServer, saasproto.ServerKindDocker, "docker"); err != nil {
				return err
			}
			d.dir = instanceDir(d.dockerServer, inst)
		}
		if inst.DBServer != "" {
			if d.dbServer, err = m.loadServer(ctx, inst.DBServer, saasproto.ServerKindDB, "database"); err != nil {
				return err
			}
		}
		if inst.BaseDomain != "" {
			domain := saasproto.BaseDomain{}
			found, err := m.store.GetBaseDomain(ctx, saasproto.DomainKey{Name: inst.BaseDomain}, &domain)
			if err != nil {
				return err
			}
			if found {
				d.domain = &domain
			}
		}
		m.logStep(ctx, inst, "Deleting instance "+inst.Fqdn())
		if err := m.runEffects(ctx, d, effects); err != nil {
			m.logStep(ctx, inst, "Delete failed: "+m.tail(err.Error()))
			if serr := m.save(ctx, inst); serr != nil {
				return serr
			}
			return saasproto.WrapOperational(err, "delete of %s failed", inst.Key.Subdomain)
		}
		m.logStep(ctx, inst, "Instance deleted")
		return m.commit(ctx, op, inst, saasproto.EventDelete, nil)
	})
	return result, err
}

// Reset returns a failed or cancelled instance to draft so it can be
// edited and deployed again.
func (m *Manager) Reset(ctx context.Context, key saasproto.InstanceKey) (*saasproto.Instance, error) {
	var result *saasproto.Instance
	err := m.runOp(ctx, key, "reset", func(ctx context.Context, op *opState) error {
		inst, err := m.loadInstance(ctx, key)
		if err != nil {
			return err
		}
		result = inst
		if _, _, err := saasproto.Apply(inst.State, saasproto.EventReset); err != nil {
			return err
		}
		m.logStep(ctx, inst, "Reset to draft")
		return m.commit(ctx, op, inst, saasproto.EventReset, nil)
	})
	return result, err
}

// RotateCredentials clears the database and master passwords so the
// next deploy generates new ones.
func (m *Manager) RotateCredentials(ctx context.Context, key saasproto.InstanceKey) (*saasproto.Instance, error) {
	var result *saasproto.Instance
	err := m.runOp(ctx, key, "rotate-credentials", func(ctx context.Context, op *opState) error {
		inst, err := m.loadInstance(ctx, key)
		if err != nil {
			return err
		}
		result = inst
		if inst.State != saasproto.StateDraft && inst.State != saasproto.StateFailed {
			return saasproto.NewValidationError("cannot rotate credentials of instance in state %s", inst.State)
		}
		inst.DBPassword = ""
		inst.AdminPassword = ""
		m.logStep(ctx, inst, "Credentials cleared, new ones are generated on next deploy")
		return m.save(ctx, inst)
	})
	return result, err
}
