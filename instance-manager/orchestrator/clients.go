package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/saascore/saas-cloud/instance-manager/platform/pc"
	"github.com/saascore/saas-cloud/instance-manager/store"
	"github.com/saascore/saas-cloud/log"
	"github.com/saascore/saas-cloud/saasproto"
	"github.com/saascore/saas-cloud/vault"
	"golang.org/x/crypto/ssh"
)

// ClientFactory opens sessions to servers.
type ClientFactory interface {
	// CheckServer verifies the server can be connected to without
	// connecting, i.e. it has an address and usable key material.
	CheckServer(ctx context.Context, server *saasproto.Server) error
	NewClient(ctx context.Context, server *saasproto.Server) (pc.Executor, error)
}

// KeySource looks up a server's private key by name.
type KeySource interface {
	GetPrivateKey(ctx context.Context, name string) ([]byte, error)
}

// VaultKeySource reads keys stored in vault.
type VaultKeySource struct {
	Config *vault.Config
}

func (s *VaultKeySource) GetPrivateKey(ctx context.Context, name string) ([]byte, error) {
	key, err := vault.GetSSHKey(s.Config, name)
	if err != nil {
		return nil, err
	}
	return []byte(key.PrivateKey), nil
}

// StoreKeySource reads base64 encoded keys from SSHKeyPair records.
type StoreKeySource struct {
	Store *store.Store
}

func (s *StoreKeySource) GetPrivateKey(ctx context.Context, name string) ([]byte, error) {
	keypair := saasproto.SSHKeyPair{}
	found, err := s.Store.GetSSHKeyPair(ctx, saasproto.SSHKeyPairKey{Name: name}, &keypair)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, saasproto.NewValidationError("ssh key %s not found", name)
	}
	if keypair.PrivateKey == "" {
		return nil, saasproto.NewValidationError("ssh key %s has no private key in the store", name)
	}
	out, err := base64.StdEncoding.DecodeString(keypair.PrivateKey)
	if err != nil {
		return nil, saasproto.NewValidationError("ssh key %s is not valid base64, %v", name, err)
	}
	return out, nil
}

// KeySources tries each source in order and returns the first key
// found.
type KeySources []KeySource

func (s KeySources) GetPrivateKey(ctx context.Context, name string) ([]byte, error) {
	var errs []string
	for _, src := range s {
		key, err := src.GetPrivateKey(ctx, name)
		if err == nil {
			return key, nil
		}
		errs = append(errs, err.Error())
	}
	if len(errs) == 0 {
		return nil, saasproto.NewValidationError("no ssh key sources configured")
	}
	return nil, saasproto.NewValidationError("ssh key %s not available, %v", name, errs)
}

// SSHClientFactory connects over SSH, or runs commands locally for
// servers in the local connect mode.
type SSHClientFactory struct {
	Keys           KeySource
	ConnectTimeout time.Duration
}

func (s *SSHClientFactory) signerKey(ctx context.Context, server *saasproto.Server) ([]byte, error) {
	if server.SSHKey == "" {
		return nil, saasproto.NewValidationError("server %s has no ssh key", server.Key.Name)
	}
	if s.Keys == nil {
		return nil, saasproto.NewValidationError("no ssh key source for server %s", server.Key.Name)
	}
	key, err := s.Keys.GetPrivateKey(ctx, server.SSHKey)
	if err != nil {
		return nil, err
	}
	if _, err := ssh.ParsePrivateKey(key); err != nil {
		return nil, saasproto.NewValidationError("ssh key %s for server %s is not a valid private key, %v", server.SSHKey, server.Key.Name, err)
	}
	return key, nil
}

func (s *SSHClientFactory) CheckServer(ctx context.Context, server *saasproto.Server) error {
	if server.ConnectUsing == saasproto.ConnectLocal {
		return nil
	}
	if _, err := server.SSHAddress(); err != nil {
		return err
	}
	_, err := s.signerKey(ctx, server)
	return err
}

func (s *SSHClientFactory) NewClient(ctx context.Context, server *saasproto.Server) (pc.Executor, error) {
	if server.ConnectUsing == saasproto.ConnectLocal {
		log.SpanLog(ctx, log.DebugLevelRemote, "using local client", "server", server.Key.Name)
		return &pc.LocalClient{}, nil
	}
	addr, err := server.SSHAddress()
	if err != nil {
		return nil, err
	}
	key, err := s.signerKey(ctx, server)
	if err != nil {
		return nil, err
	}
	log.SpanLog(ctx, log.DebugLevelRemote, "connecting", "server", server.Key.Name, "addr", addr, "user", server.SSHUser)
	return pc.NewSSHClient(pc.SSHConfig{
		Host:           addr,
		Port:           server.SSHPort,
		User:           server.SSHUser,
		PrivateKey:     key,
		ConnectTimeout: s.ConnectTimeout,
	})
}

// DummyClientFactory hands out scripted clients for unit tests. A
// client is created per server on first use and reused afterwards.
type DummyClientFactory struct {
	Clients    map[string]*pc.DummyClient
	ConnectErr map[string]error
	// number of sessions opened per server
	Opened map[string]int
	mux    sync.Mutex
}

func NewDummyClientFactory() *DummyClientFactory {
	return &DummyClientFactory{
		Clients:    make(map[string]*pc.DummyClient),
		ConnectErr: make(map[string]error),
		Opened:     make(map[string]int),
	}
}

// Client returns the scripted client for the server.
func (s *DummyClientFactory) Client(name string) *pc.DummyClient {
	s.mux.Lock()
	defer s.mux.Unlock()
	client, found := s.Clients[name]
	if !found {
		client = pc.NewDummyClient(name)
		s.Clients[name] = client
	}
	return client
}

func (s *DummyClientFactory) CheckServer(ctx context.Context, server *saasproto.Server) error {
	if server.ConnectUsing == saasproto.ConnectLocal {
		return nil
	}
	_, err := server.SSHAddress()
	return err
}

func (s *DummyClientFactory) NewClient(ctx context.Context, server *saasproto.Server) (pc.Executor, error) {
	s.mux.Lock()
	err := s.ConnectErr[server.Key.Name]
	s.mux.Unlock()
	if err != nil {
		return nil, fmt.Errorf("ssh connect to %s failed, %v", server.Key.Name, err)
	}
	client := s.Client(server.Key.Name)
	s.mux.Lock()
	s.Opened[server.Key.Name]++
	s.mux.Unlock()
	return client, nil
}
