package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/saascore/saas-cloud/instance-manager/dockermgmt"
	"github.com/saascore/saas-cloud/instance-manager/platform/pc"
	"github.com/saascore/saas-cloud/instance-manager/render"
	"github.com/saascore/saas-cloud/log"
	"github.com/saascore/saas-cloud/saasproto"
	"github.com/saascore/saas-cloud/util"
)

// deployment holds everything resolved for running the effects of one
// lifecycle operation on an instance.
type deployment struct {
	op           *opState
	inst         *saasproto.Instance
	dockerServer *saasproto.Server
	dbServer     *saasproto.Server
	version      *saasproto.OdooVersion
	domain       *saasproto.BaseDomain
	dir          string
	docker       pc.Executor
	db           pc.Executor
}

func (d *deployment) composeFile() string {
	return dockermgmt.ComposeFile(d.dir)
}

// validateDeploy checks every reference and connectivity precondition
// of a deploy. It makes no changes and no remote calls.
func (m *Manager) validateDeploy(ctx context.Context, inst *saasproto.Instance) (*deployment, error) {
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(inst.Customer) == "" {
		return nil, saasproto.NewValidationError("customer is required to deploy instance %s", inst.Key.Subdomain)
	}
	if inst.BaseDomain == "" {
		return nil, saasproto.NewValidationError("base domain is required to deploy instance %s", inst.Key.Subdomain)
	}
	domain := saasproto.BaseDomain{}
	found, err := m.store.GetBaseDomain(ctx, saasproto.DomainKey{Name: inst.BaseDomain}, &domain)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, saasproto.NewValidationError("base domain %s not found", inst.BaseDomain)
	}
	dockerServer, err := m.loadServer(ctx, inst.DockerServer, saasproto.ServerKindDocker, "docker")
	if err != nil {
		return nil, err
	}
	dbServer, err := m.loadServer(ctx, inst.DBServer, saasproto.ServerKindDB, "database")
	if err != nil {
		return nil, err
	}
	if inst.OdooVersion == "" {
		return nil, saasproto.NewValidationError("version is required to deploy instance %s", inst.Key.Subdomain)
	}
	version := saasproto.OdooVersion{}
	found, err = m.store.GetOdooVersion(ctx, saasproto.VersionKey{Name: inst.OdooVersion}, &version)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, saasproto.NewValidationError("version %s not found", inst.OdooVersion)
	}
	if err := version.Validate(); err != nil {
		return nil, err
	}
	for _, server := range []*saasproto.Server{dockerServer, dbServer} {
		if err := m.clients.CheckServer(ctx, server); err != nil {
			return nil, err
		}
	}
	if _, err := dbServer.DBHost(); err != nil {
		return nil, err
	}
	return &deployment{
		inst:         inst,
		dockerServer: dockerServer,
		dbServer:     dbServer,
		version:      &version,
		domain:       &domain,
		dir:          instanceDir(dockerServer, inst),
	}, nil
}

// ensureCredentials fills in credentials that were never generated.
// Existing credentials are left untouched.
func (m *Manager) ensureCredentials(inst *saasproto.Instance) error {
	if inst.DBUser == "" {
		inst.DBUser = inst.DBName()
	}
	var err error
	if inst.DBPassword == "" {
		if inst.DBPassword, err = util.RandPassword(m.cfg.PasswordLength); err != nil {
			return err
		}
	}
	if inst.AdminPassword == "" {
		if inst.AdminPassword, err = util.RandPassword(m.cfg.PasswordLength); err != nil {
			return err
		}
	}
	return nil
}

// Deploy provisions the instance's database and container and starts
// it. On failure the instance is left in the failed state with the
// error appended to its log, and deploy may be run again.
func (m *Manager) Deploy(ctx context.Context, key saasproto.InstanceKey) (*saasproto.Instance, error) {
	var result *saasproto.Instance
	err := m.runOp(ctx, key, "deploy", func(ctx context.Context, op *opState) error {
		inst, err := m.loadInstance(ctx, key)
		if err != nil {
			return err
		}
		result = inst
		_, effects, err := saasproto.Apply(inst.State, saasproto.EventDeploy)
		if err != nil {
			return err
		}
		d, err := m.validateDeploy(ctx, inst)
		if err != nil {
			return err
		}
		d.op = op
		inst.ResetLog()
		m.logStep(ctx, inst, fmt.Sprintf("Deploying %s on %s", inst.Fqdn(), d.dockerServer.Key.Name))
		if err := m.commit(ctx, op, inst, saasproto.EventDeploy, nil); err != nil {
			return err
		}

		err = m.provision(ctx, d, effects)
		if err != nil {
			m.logStep(ctx, inst, "Deploy failed: "+m.tail(err.Error()))
			err = saasproto.WrapOperational(err, "deploy of %s failed", inst.Key.Subdomain)
			if cerr := m.commit(ctx, op, inst, saasproto.EventDeployFailed, err); cerr != nil {
				log.SpanLog(ctx, log.DebugLevelDeploy, "failed to record deploy failure", "err", cerr)
			}
			return err
		}
		m.logStep(ctx, inst, "Instance running at "+inst.URL())
		return m.commit(ctx, op, inst, saasproto.EventDeploySucceeded, nil)
	})
	return result, err
}

// provision fills in credentials, reserves the port pair and runs the
// deploy effects.
func (m *Manager) provision(ctx context.Context, d *deployment, effects []saasproto.Effect) error {
	inst := d.inst
	if err := m.ensureCredentials(inst); err != nil {
		return saasproto.WrapOperational(err, "failed to generate credentials")
	}
	start := d.dockerServer.StartingPort
	if start == 0 {
		start = m.cfg.StartingPort
	}
	ports, err := m.store.ReservePorts(ctx, d.dockerServer.Key, inst, start)
	if err != nil {
		return err
	}
	inst.HttpPort = ports.Http
	inst.LongpollingPort = ports.Longpolling
	m.logStep(ctx, inst, fmt.Sprintf("Reserved ports %d/%d", inst.HttpPort, inst.LongpollingPort))
	return m.runEffects(ctx, d, effects)
}

// runEffects opens the sessions the effects need, runs the effects in
// order and stops at the first failure.
func (m *Manager) runEffects(ctx context.Context, d *deployment, effects []saasproto.Effect) error {
	sessions, closeAll, err := m.openSessions(ctx, d.dockerServer, d.dbServer)
	if err != nil {
		return err
	}
	defer closeAll()
	if d.dockerServer != nil {
		d.docker = sessions[d.dockerServer.Key.Name].client
	}
	if d.dbServer != nil {
		d.db = sessions[d.dbServer.Key.Name].client
	}
	for _, eff := range effects {
		log.SpanLog(ctx, log.DebugLevelDeploy, "run effect", "effect", eff, "instance", d.inst.Key.Subdomain)
		if err := m.runEffect(ctx, d, eff); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) runEffect(ctx context.Context, d *deployment, eff saasproto.Effect) error {
	inst := d.inst
	switch eff {
	case saasproto.EffectPrepareDirs:
		m.logStep(ctx, inst, "Creating directories in "+d.dir)
		if err := pc.MkdirAll(ctx, d.docker, dockermgmt.InstanceDirs(d.dir)...); err != nil {
			return err
		}
		return pc.Chown(ctx, d.docker, m.cfg.ContainerUID, m.cfg.ContainerUID, d.dir)
	case saasproto.EffectWriteConfig:
		return m.writeConfig(ctx, d)
	case saasproto.EffectEnsureDatabase:
		m.logStep(ctx, inst, fmt.Sprintf("Provisioning database %s on %s", inst.DBName(), d.dbServer.Key.Name))
		psql := m.psql
		psql.Port = d.dbServer.PsqlPort
		return psql.Ensure(ctx, d.db, inst.DBUser, inst.DBPassword, inst.DBName())
	case saasproto.EffectInitDatabase:
		return m.initDatabase(ctx, d)
	case saasproto.EffectStartContainer:
		m.logStep(ctx, inst, "Starting container "+inst.ContainerName())
		return m.docker.ComposeUp(ctx, d.docker, d.composeFile())
	case saasproto.EffectWaitReady:
		m.logStep(ctx, inst, "Waiting for container to be running")
		return m.docker.WaitRunning(ctx, d.docker, inst.ContainerName(), m.cfg.PollInterval(), m.cfg.PollAttempts)
	case saasproto.EffectPublishDNS:
		m.publishDNS(ctx, d)
		return nil
	case saasproto.EffectStopContainer:
		m.logStep(ctx, inst, "Stopping container "+inst.ContainerName())
		return m.docker.Stop(ctx, d.docker, inst.ContainerName())
	case saasproto.EffectRestartContainer:
		m.logStep(ctx, inst, "Restarting container "+inst.ContainerName())
		return m.docker.Restart(ctx, d.docker, inst.ContainerName())
	case saasproto.EffectRecreateContainer:
		m.logStep(ctx, inst, "Recreating container "+inst.ContainerName())
		if err := m.docker.ComposeDown(ctx, d.docker, d.composeFile(), false); err != nil {
			return err
		}
		return m.docker.ComposeUp(ctx, d.docker, d.composeFile())
	case saasproto.EffectTeardownContainer:
		if d.docker == nil {
			return nil
		}
		m.logStep(ctx, inst, "Removing container and network")
		if err := m.docker.ComposeDown(ctx, d.docker, d.composeFile(), true); err != nil {
			m.logStep(ctx, inst, "Ignoring container removal failure: "+m.tail(err.Error()))
		}
		return nil
	case saasproto.EffectRemoveDir:
		if d.docker == nil {
			return nil
		}
		m.logStep(ctx, inst, "Removing "+d.dir)
		return pc.DeleteDir(ctx, d.docker, d.dir)
	case saasproto.EffectDropDatabase:
		if d.db == nil {
			return nil
		}
		m.logStep(ctx, inst, fmt.Sprintf("Dropping database %s", inst.DBName()))
		psql := m.psql
		psql.Port = d.dbServer.PsqlPort
		user := inst.DBUser
		if user == "" {
			user = inst.DBName()
		}
		for _, warning := range psql.Drop(ctx, d.db, user, inst.DBName()) {
			m.logStep(ctx, inst, "Warning: "+m.tail(warning))
		}
		return nil
	case saasproto.EffectRemoveDNS:
		m.removeDNS(ctx, d)
		return nil
	case saasproto.EffectReleasePorts:
		if d.dockerServer == nil {
			return nil
		}
		if err := m.store.ReleasePorts(ctx, d.dockerServer.Key, inst.Key.Subdomain); err != nil {
			return err
		}
		inst.HttpPort = 0
		inst.LongpollingPort = 0
		return nil
	}
	return fmt.Errorf("unknown effect %s", eff)
}

func (m *Manager) writeConfig(ctx context.Context, d *deployment) error {
	inst := d.inst
	dbHost, err := d.dbServer.DBHost()
	if err != nil {
		return err
	}
	confArgs := render.OdooConfArgs{
		AdminPassword: inst.AdminPassword,
		DBHost:        dbHost,
		DBPort:        d.dbServer.PsqlPort,
		DBUser:        inst.DBUser,
		DBPassword:    inst.DBPassword,
		DBName:        inst.DBName(),
		ExtraConfig:   inst.ExtraConfig,
	}
	conf, err := m.renderer.Render(render.TemplateOdooConf, confArgs.Context())
	if err != nil {
		return saasproto.WrapOperational(err, "failed to render odoo configuration")
	}
	composeArgs := render.ComposeArgs{
		Image:           d.version.ImagePath(),
		ContainerName:   inst.ContainerName(),
		NetworkName:     inst.NetworkName(),
		HttpPort:        inst.HttpPort,
		LongpollingPort: inst.LongpollingPort,
		InstanceDir:     d.dir,
	}
	if dbHost == saasproto.DockerHostGateway {
		composeArgs.ExtraHosts = []string{dbHost + ":host-gateway"}
	}
	compose, err := m.renderer.Render(render.TemplateCompose, composeArgs.Context())
	if err != nil {
		return saasproto.WrapOperational(err, "failed to render compose file")
	}
	m.logStep(ctx, inst, "Writing configuration")
	if err := pc.WriteFile(ctx, d.docker, dockermgmt.ConfFile(d.dir), conf, "odoo config"); err != nil {
		return err
	}
	return pc.WriteFile(ctx, d.docker, d.composeFile(), compose, "compose file")
}

// initDatabase creates the schema with base plus every pending line,
// and marks those lines installed.
func (m *Manager) initDatabase(ctx context.Context, d *deployment) error {
	inst := d.inst
	idx := inst.PendingLines()
	lines := make([]*saasproto.InstallationLine, 0, len(idx))
	for _, ii := range idx {
		lines = append(lines, &inst.Lines[ii])
	}
	names, err := m.resolver.ResolveAll(ctx, inst.OdooVersion, lines)
	if err != nil {
		return err
	}
	m.logStep(ctx, inst, "Initializing database with modules "+strings.Join(names, ","))
	out, err := m.docker.InitDatabase(ctx, d.docker, d.composeFile(), inst.DBName(), names)
	if err != nil {
		if output := outputOf(err); output != "" {
			m.logStep(ctx, inst, "Database initialization output: "+m.tail(output))
		}
		return err
	}
	log.SpanLog(ctx, log.DebugLevelDeploy, "database initialized", "out", util.TailString(out, 200))
	for _, line := range lines {
		line.State = saasproto.LineInstalled
		line.Log = ""
	}
	inst.AddInstalled(names...)
	return nil
}

func (m *Manager) manageDNS(d *deployment) bool {
	return m.dns != nil && d.domain != nil && d.domain.ManageDNS && d.inst.BaseDomain != ""
}

func (m *Manager) publishDNS(ctx context.Context, d *deployment) {
	if !m.manageDNS(d) {
		return
	}
	ip := d.dockerServer.PublicIP
	if ip == "" {
		m.logStep(ctx, d.inst, "Skipping DNS record, docker server has no public IP")
		return
	}
	if err := m.dns.UpsertA(ctx, d.inst.BaseDomain, d.inst.Fqdn(), ip); err != nil {
		m.logStep(ctx, d.inst, "Warning: DNS update failed: "+m.tail(err.Error()))
		return
	}
	m.logStep(ctx, d.inst, fmt.Sprintf("DNS record %s -> %s", d.inst.Fqdn(), ip))
}

func (m *Manager) removeDNS(ctx context.Context, d *deployment) {
	if !m.manageDNS(d) {
		return
	}
	if err := m.dns.DeleteRecords(ctx, d.inst.BaseDomain, d.inst.Fqdn()); err != nil {
		m.logStep(ctx, d.inst, "Warning: DNS removal failed: "+m.tail(err.Error()))
	}
}
