package saasproto

import (
	"encoding/base64"

	"github.com/saascore/saas-cloud/util"
)

type VersionKey struct {
	Name string `json:"name"`
}

func (k VersionKey) GetKeyString() string {
	return k.Name
}

func (k VersionKey) Validate() error {
	if !util.ValidName(k.Name) {
		return NewValidationError("invalid version name %q", k.Name)
	}
	return nil
}

// OdooVersion names the container image used for a version.
type OdooVersion struct {
	Key      VersionKey `json:"key"`
	Image    string     `json:"image"`
	ImageTag string     `json:"image_tag"`
}

func (s *OdooVersion) GetKey() VersionKey {
	return s.Key
}

func (s *OdooVersion) Validate() error {
	if err := s.Key.Validate(); err != nil {
		return err
	}
	if s.Image == "" {
		return NewValidationError("version %s has no docker image", s.Key.Name)
	}
	return nil
}

func (s *OdooVersion) ImagePath() string {
	if s.ImageTag == "" {
		return s.Image
	}
	return s.Image + ":" + s.ImageTag
}

type ModuleKey struct {
	Version       string `json:"version"`
	TechnicalName string `json:"technical_name"`
}

func (k ModuleKey) GetKeyString() string {
	return k.Version + "/" + k.TechnicalName
}

func (k ModuleKey) Validate() error {
	if !util.ValidName(k.Version) {
		return NewValidationError("invalid module version %q", k.Version)
	}
	if !util.ValidTechnicalName(k.TechnicalName) {
		return NewValidationError("invalid module technical name %q", k.TechnicalName)
	}
	return nil
}

type Module struct {
	Key      ModuleKey `json:"key"`
	Name     string    `json:"name,omitempty"`
	Summary  string    `json:"summary,omitempty"`
	Category string    `json:"category,omitempty"`
	Author   string    `json:"author,omitempty"`
	// Technical names of direct dependencies, same version.
	Dependencies []string `json:"dependencies,omitempty"`
}

func (s *Module) GetKey() ModuleKey {
	return s.Key
}

func (s *Module) Validate() error {
	if err := s.Key.Validate(); err != nil {
		return err
	}
	for _, dep := range s.Dependencies {
		if !util.ValidTechnicalName(dep) {
			return NewValidationError("module %s has invalid dependency %q", s.Key.TechnicalName, dep)
		}
	}
	return nil
}

type BundleKey struct {
	Version string `json:"version"`
	Name    string `json:"name"`
}

func (k BundleKey) GetKeyString() string {
	return k.Version + "/" + k.Name
}

func (k BundleKey) Validate() error {
	if !util.ValidName(k.Version) {
		return NewValidationError("invalid bundle version %q", k.Version)
	}
	if !util.ValidName(k.Name) {
		return NewValidationError("invalid bundle name %q", k.Name)
	}
	return nil
}

// Bundle is a named set of modules installed together.
type Bundle struct {
	Key         BundleKey `json:"key"`
	Description string    `json:"description,omitempty"`
	Modules     []string  `json:"modules"`
}

func (s *Bundle) GetKey() BundleKey {
	return s.Key
}

func (s *Bundle) Validate() error {
	if err := s.Key.Validate(); err != nil {
		return err
	}
	for _, mod := range s.Modules {
		if !util.ValidTechnicalName(mod) {
			return NewValidationError("bundle %s has invalid module %q", s.Key.Name, mod)
		}
	}
	return nil
}

type DomainKey struct {
	Name string `json:"name"`
}

func (k DomainKey) GetKeyString() string {
	return k.Name
}

func (k DomainKey) Validate() error {
	if !util.ValidDomain(k.Name) {
		return NewValidationError("invalid domain %q", k.Name)
	}
	return nil
}

// BaseDomain is a parent domain under which instance subdomains are
// created.
type BaseDomain struct {
	Key DomainKey `json:"key"`
	// ManageDNS enables A record management for instances.
	ManageDNS bool `json:"manage_dns,omitempty"`
}

func (s *BaseDomain) GetKey() DomainKey {
	return s.Key
}

type SSHKeyType string

const (
	SSHKeyRSA     SSHKeyType = "rsa"
	SSHKeyDSA     SSHKeyType = "dsa"
	SSHKeyECDSA   SSHKeyType = "ecdsa"
	SSHKeyED25519 SSHKeyType = "ed25519"
)

type SSHKeyPairKey struct {
	Name string `json:"name"`
}

func (k SSHKeyPairKey) GetKeyString() string {
	return k.Name
}

func (k SSHKeyPairKey) Validate() error {
	if !util.ValidName(k.Name) {
		return NewValidationError("invalid ssh key pair name %q", k.Name)
	}
	return nil
}

// SSHKeyPair holds a base64 encoded private key.
type SSHKeyPair struct {
	Key        SSHKeyPairKey `json:"key"`
	Type       SSHKeyType    `json:"type"`
	PrivateKey string        `json:"private_key"`
	PublicKey  string        `json:"public_key,omitempty"`
}

func (s *SSHKeyPair) GetKey() SSHKeyPairKey {
	return s.Key
}

func (s *SSHKeyPair) Validate() error {
	if err := s.Key.Validate(); err != nil {
		return err
	}
	switch s.Type {
	case SSHKeyRSA, SSHKeyDSA, SSHKeyECDSA, SSHKeyED25519:
	case "":
		s.Type = SSHKeyRSA
	default:
		return NewValidationError("ssh key pair %s has unsupported type %q", s.Key.Name, s.Type)
	}
	if s.PrivateKey == "" {
		return NewValidationError("ssh key pair %s has no private key", s.Key.Name)
	}
	if _, err := base64.StdEncoding.DecodeString(s.PrivateKey); err != nil {
		return NewValidationError("ssh key pair %s private key is not base64", s.Key.Name)
	}
	return nil
}
