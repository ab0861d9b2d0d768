package saasproto

import (
	"github.com/saascore/saas-cloud/util"
)

type ServerKind string

const (
	ServerKindDocker ServerKind = "docker"
	ServerKindDB     ServerKind = "db"
)

type ConnectMode string

const (
	ConnectPublicIP  ConnectMode = "public_ip"
	ConnectPrivateIP ConnectMode = "private_ip"
	// ConnectLocal runs commands on the manager host itself.
	ConnectLocal ConnectMode = "local"
)

const (
	DefaultSSHUser        = "root"
	DefaultSSHPort        = 22
	DefaultDockerBasePath = "/home/odoo"
	DefaultPsqlPort       = 5432
	DefaultServerSequence = 10
)

type ServerKey struct {
	Name string `json:"name"`
}

func (k ServerKey) GetKeyString() string {
	return k.Name
}

func (k ServerKey) Validate() error {
	if !util.ValidName(k.Name) {
		return NewValidationError("invalid server name %q", k.Name)
	}
	return nil
}

// Server is a docker host or a database host reached over SSH.
type Server struct {
	Key          ServerKey   `json:"key"`
	Kind         ServerKind  `json:"kind"`
	Sequence     int         `json:"sequence"`
	SSHKey       string      `json:"ssh_key,omitempty"`
	SSHUser      string      `json:"ssh_user,omitempty"`
	SSHPort      int         `json:"ssh_port,omitempty"`
	PublicIP     string      `json:"public_ip,omitempty"`
	PrivateIP    string      `json:"private_ip,omitempty"`
	ConnectUsing ConnectMode `json:"connect_using"`
	// docker hosts only
	DockerBasePath string `json:"docker_base_path,omitempty"`
	StartingPort   int32  `json:"starting_port,omitempty"`
	// database hosts only
	PsqlPort int `json:"psql_port,omitempty"`
}

func (s *Server) GetKey() ServerKey {
	return s.Key
}

func (s *Server) SetDefaults() {
	if s.Sequence == 0 {
		s.Sequence = DefaultServerSequence
	}
	if s.SSHUser == "" {
		s.SSHUser = DefaultSSHUser
	}
	if s.SSHPort == 0 {
		s.SSHPort = DefaultSSHPort
	}
	if s.ConnectUsing == "" {
		s.ConnectUsing = ConnectPublicIP
	}
	if s.Kind == ServerKindDocker && s.DockerBasePath == "" {
		s.DockerBasePath = DefaultDockerBasePath
	}
	if s.Kind == ServerKindDB && s.PsqlPort == 0 {
		s.PsqlPort = DefaultPsqlPort
	}
}

func (s *Server) Validate() error {
	if err := s.Key.Validate(); err != nil {
		return err
	}
	if s.Kind != ServerKindDocker && s.Kind != ServerKindDB {
		return NewValidationError("server %s has invalid kind %q", s.Key.Name, s.Kind)
	}
	switch s.ConnectUsing {
	case ConnectPublicIP, ConnectPrivateIP, ConnectLocal, "":
	default:
		return NewValidationError("server %s has invalid connect mode %q", s.Key.Name, s.ConnectUsing)
	}
	if s.PublicIP != "" && !util.ValidIPv4(s.PublicIP) {
		return NewValidationError("server %s has invalid public IP %q", s.Key.Name, s.PublicIP)
	}
	if s.PrivateIP != "" && !util.ValidIPv4(s.PrivateIP) {
		return NewValidationError("server %s has invalid private IP %q", s.Key.Name, s.PrivateIP)
	}
	if s.SSHPort < 0 || s.SSHPort > 65535 || s.PsqlPort < 0 || s.PsqlPort > 65535 {
		return NewValidationError("server %s has invalid port", s.Key.Name)
	}
	if s.StartingPort < 0 || s.StartingPort > 65534 {
		return NewValidationError("server %s has invalid starting port %d", s.Key.Name, s.StartingPort)
	}
	return nil
}

// SSHAddress returns the IP to open SSH sessions to, according to
// the configured connect mode.
func (s *Server) SSHAddress() (string, error) {
	switch s.ConnectUsing {
	case ConnectLocal:
		return "localhost", nil
	case ConnectPrivateIP:
		if s.PrivateIP == "" {
			return "", NewValidationError("private IP address is required on server %s when SSH is set to use private IP", s.Key.Name)
		}
		return s.PrivateIP, nil
	default:
		if s.PublicIP == "" {
			return "", NewValidationError("public IP address is required on server %s", s.Key.Name)
		}
		return s.PublicIP, nil
	}
}

// DockerHostGateway resolves to the docker host from inside a
// container when mapped to host-gateway.
const DockerHostGateway = "host.docker.internal"

// DBHost is the address application containers use to reach the
// database on this server.
func (s *Server) DBHost() (string, error) {
	if s.ConnectUsing == ConnectLocal {
		if s.PrivateIP != "" {
			return s.PrivateIP, nil
		}
		if s.PublicIP != "" {
			return s.PublicIP, nil
		}
		return DockerHostGateway, nil
	}
	return s.SSHAddress()
}
