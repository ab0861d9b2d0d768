// Package orchestrator drives instances through their lifecycle. It
// owns the instance state machine and runs every remote step of
// deploy, stop, restart, redeploy, suspend, delete and module
// installation.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/saascore/saas-cloud/instance-manager/dockermgmt"
	"github.com/saascore/saas-cloud/instance-manager/moduledeps"
	"github.com/saascore/saas-cloud/instance-manager/pgmgmt"
	"github.com/saascore/saas-cloud/instance-manager/platform/pc"
	"github.com/saascore/saas-cloud/instance-manager/render"
	"github.com/saascore/saas-cloud/instance-manager/store"
	"github.com/saascore/saas-cloud/log"
	"github.com/saascore/saas-cloud/rediscache"
	"github.com/saascore/saas-cloud/saasproto"
	"github.com/saascore/saas-cloud/util"
	"github.com/saascore/saas-cloud/util/tasks"
)

// Locker serializes operations on an instance across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev *rediscache.InstanceEvent) error
}

type DNSProvider interface {
	UpsertA(ctx context.Context, zone, name, ip string) error
	DeleteRecords(ctx context.Context, zone, name string) error
}

type Manager struct {
	cfg       *Config
	store     *store.Store
	clients   ClientFactory
	renderer  render.Renderer
	resolver  *moduledeps.Resolver
	placement PlacementPolicy
	locker    Locker
	events    EventPublisher
	dns       DNSProvider
	docker    dockermgmt.Docker
	psql      pgmgmt.Psql
	workers   tasks.KeyWorkers
	now       func() time.Time
}

type Option func(m *Manager)

func WithRenderer(r render.Renderer) Option {
	return func(m *Manager) { m.renderer = r }
}

func WithPlacement(p PlacementPolicy) Option {
	return func(m *Manager) { m.placement = p }
}

func WithLocker(l Locker) Option {
	return func(m *Manager) { m.locker = l }
}

func WithEvents(e EventPublisher) Option {
	return func(m *Manager) { m.events = e }
}

func WithDNS(d DNSProvider) Option {
	return func(m *Manager) { m.dns = d }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(cfg *Config, st *store.Store, clients ClientFactory, opts ...Option) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m := &Manager{
		cfg:       cfg,
		store:     st,
		clients:   clients,
		renderer:  render.NewRenderer(),
		resolver:  moduledeps.NewResolver(st),
		placement: LowestSequence,
		now:       time.Now,
	}
	m.docker = dockermgmt.Docker{
		ComposeCommand: cfg.ComposeCommand,
		Timeout:        cfg.CommandTimeout(),
		LongTimeout:    cfg.LongTimeout(),
	}
	m.psql = pgmgmt.Psql{
		Command: cfg.PsqlCommand,
		Timeout: cfg.CommandTimeout(),
	}
	m.workers.Init("instance")
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Store() *store.Store {
	return m.store
}

// opState carries the per operation context.
type opState struct {
	name string
	id   string
}

// runOp runs fn on the instance's worker, holding the distributed
// instance lock if one is configured. Operations on one instance run
// one at a time and in submission order.
func (m *Manager) runOp(ctx context.Context, key saasproto.InstanceKey, name string, fn func(ctx context.Context, op *opState) error) error {
	if err := key.Validate(); err != nil {
		return err
	}
	op := &opState{
		name: name,
		id:   uuid.New().String(),
	}
	return m.workers.Run(ctx, key.Subdomain, func(ctx context.Context) error {
		log.SetContextTags(ctx, map[string]string{
			"instance":  key.Subdomain,
			"operation": name,
			"opid":      op.id,
		})
		log.SpanLog(ctx, log.DebugLevelApi, "start operation", "op", name, "instance", key.Subdomain)
		if m.locker != nil {
			unlock, err := m.locker.Lock(ctx, "instance/"+key.Subdomain)
			if err != nil {
				return saasproto.WrapOperational(err, "unable to lock instance %s", key.Subdomain)
			}
			defer unlock()
		}
		err := fn(ctx, op)
		log.SpanLog(ctx, log.DebugLevelApi, "finished operation", "op", name, "instance", key.Subdomain, "err", err)
		return err
	})
}

// loadInstance reads the instance or returns a ValidationFailure.
func (m *Manager) loadInstance(ctx context.Context, key saasproto.InstanceKey) (*saasproto.Instance, error) {
	inst := saasproto.Instance{}
	found, err := m.store.GetInstance(ctx, key, &inst)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, saasproto.NewValidationError("instance %s not found", key.Subdomain)
	}
	return &inst, nil
}

func (m *Manager) loadServer(ctx context.Context, name string, kind saasproto.ServerKind, role string) (*saasproto.Server, error) {
	if name == "" {
		return nil, saasproto.NewValidationError("%s server not set", role)
	}
	server := saasproto.Server{}
	if err := m.store.MustGetServer(ctx, saasproto.ServerKey{Name: name}, &server); err != nil {
		return nil, err
	}
	if server.Kind != kind {
		return nil, saasproto.NewValidationError("server %s is not a %s server", name, kind)
	}
	server.SetDefaults()
	return &server, nil
}

func (m *Manager) save(ctx context.Context, inst *saasproto.Instance) error {
	if err := m.store.PutInstance(ctx, inst); err != nil {
		log.SpanLog(ctx, log.DebugLevelApi, "failed to save instance", "instance", inst.Key.Subdomain, "err", err)
		return err
	}
	return nil
}

// commit applies ev to the instance, saves it and publishes the new
// state.
func (m *Manager) commit(ctx context.Context, op *opState, inst *saasproto.Instance, ev saasproto.Event, opErr error) error {
	if err := inst.Apply(ev); err != nil {
		return err
	}
	if err := m.save(ctx, inst); err != nil {
		return err
	}
	m.publish(ctx, op, inst, opErr)
	return nil
}

func (m *Manager) publish(ctx context.Context, op *opState, inst *saasproto.Instance, opErr error) {
	if m.events == nil {
		return
	}
	ev := rediscache.InstanceEvent{
		Key:         inst.Key.Subdomain,
		State:       string(inst.State),
		Operation:   op.name,
		OperationID: op.id,
		Time:        m.now(),
	}
	if opErr != nil {
		ev.Error = opErr.Error()
	}
	if err := m.events.Publish(ctx, &ev); err != nil {
		log.SpanLog(ctx, log.DebugLevelEvents, "failed to publish instance event", "instance", inst.Key.Subdomain, "err", err)
	}
}

func (m *Manager) logStep(ctx context.Context, inst *saasproto.Instance, msg string) {
	log.SpanLog(ctx, log.DebugLevelDeploy, msg, "instance", inst.Key.Subdomain)
	inst.AppendLog(m.now(), msg)
}

func (m *Manager) tail(s string) string {
	return util.TailString(s, m.cfg.LogTail)
}

// outputOf returns the captured output carried by a remote failure.
func outputOf(err error) string {
	var rerr *saasproto.Error
	if errors.As(err, &rerr) && rerr.Kind == saasproto.RemoteCommandFailure {
		return strings.TrimSpace(rerr.Stdout + "\n" + rerr.Stderr)
	}
	return ""
}

// session is an open client to a server for the duration of one
// operation.
type session struct {
	server *saasproto.Server
	client pc.Executor
}

// openSessions opens one client per distinct server. The returned
// func closes all of them.
func (m *Manager) openSessions(ctx context.Context, servers ...*saasproto.Server) (map[string]*session, func(), error) {
	sessions := make(map[string]*session)
	closeAll := func() {
		for name, s := range sessions {
			if err := s.client.Close(); err != nil {
				log.SpanLog(ctx, log.DebugLevelRemote, "close session failed", "server", name, "err", err)
			}
		}
	}
	for _, server := range servers {
		if server == nil {
			continue
		}
		if _, found := sessions[server.Key.Name]; found {
			continue
		}
		client, err := m.clients.NewClient(ctx, server)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		sessions[server.Key.Name] = &session{server: server, client: client}
	}
	return sessions, closeAll, nil
}

func instanceDir(server *saasproto.Server, inst *saasproto.Instance) string {
	return strings.TrimSuffix(server.DockerBasePath, "/") + "/" + inst.Key.Subdomain
}
