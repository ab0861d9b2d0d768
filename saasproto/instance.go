package saasproto

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/saascore/saas-cloud/util"
)

type InstanceState string

const (
	StateDraft        InstanceState = "draft"
	StateProvisioning InstanceState = "provisioning"
	StateRunning      InstanceState = "running"
	StateStopped      InstanceState = "stopped"
	StateFailed       InstanceState = "failed"
	StateSuspended    InstanceState = "suspended"
	StateCancelled    InstanceState = "cancelled"
)

type LineState string

const (
	LinePending   LineState = "pending"
	LineInstalled LineState = "installed"
	LineFailed    LineState = "failed"
)

const DefaultLineSequence = 10

// BaseModule is installed on every instance.
const BaseModule = "base"

const LogTimeFormat = "2006-01-02 15:04:05"

type InstanceKey struct {
	Subdomain string `json:"subdomain"`
}

func (k InstanceKey) GetKeyString() string {
	return k.Subdomain
}

func (k InstanceKey) Validate() error {
	if !util.ValidSubdomain(k.Subdomain) {
		return NewValidationError("invalid subdomain %q, must be a lower case DNS label", k.Subdomain)
	}
	return nil
}

// InstallationLine requests installation of exactly one of Module or
// Bundle.
type InstallationLine struct {
	ID       int64     `json:"id"`
	Sequence int       `json:"sequence"`
	Module   string    `json:"module,omitempty"`
	Bundle   string    `json:"bundle,omitempty"`
	State    LineState `json:"state"`
	Log      string    `json:"log,omitempty"`
}

func (l *InstallationLine) Validate() error {
	if l.Module == "" && l.Bundle == "" {
		return NewValidationError("installation line %d must reference a module or a bundle", l.ID)
	}
	if l.Module != "" && l.Bundle != "" {
		return NewValidationError("installation line %d cannot reference both module %s and bundle %s", l.ID, l.Module, l.Bundle)
	}
	if l.Module != "" && !util.ValidTechnicalName(l.Module) {
		return NewValidationError("invalid module technical name %q", l.Module)
	}
	return nil
}

type Instance struct {
	Key          InstanceKey `json:"key"`
	BaseDomain   string      `json:"base_domain"`
	Customer     string      `json:"customer"`
	DockerServer string      `json:"docker_server"`
	DBServer     string      `json:"db_server"`
	OdooVersion  string      `json:"odoo_version"`
	// Ports are owned by the orchestrator.
	HttpPort        int32              `json:"http_port,omitempty"`
	LongpollingPort int32              `json:"longpolling_port,omitempty"`
	AdminPassword   string             `json:"admin_password,omitempty"`
	DBUser          string             `json:"db_user,omitempty"`
	DBPassword      string             `json:"db_password,omitempty"`
	Lines           []InstallationLine `json:"lines,omitempty"`
	NextLineID      int64              `json:"next_line_id,omitempty"`
	// Sorted set of installed module technical names.
	InstalledModules []string          `json:"installed_modules,omitempty"`
	State            InstanceState     `json:"state"`
	ProvisioningLog  string            `json:"provisioning_log,omitempty"`
	ExtraConfig      map[string]string `json:"extra_config,omitempty"`
}

func (s *Instance) GetKey() InstanceKey {
	return s.Key
}

func (s *Instance) Fqdn() string {
	if s.BaseDomain == "" {
		return s.Key.Subdomain
	}
	return s.Key.Subdomain + "." + s.BaseDomain
}

func (s *Instance) URL() string {
	if s.BaseDomain == "" {
		return ""
	}
	return "https://" + s.Fqdn()
}

// DBName is the database (and role) name derived from the subdomain.
func (s *Instance) DBName() string {
	return util.DBNameSanitize(s.Key.Subdomain)
}

func (s *Instance) ContainerName() string {
	return util.DockerSanitize(s.Key.Subdomain) + "_odoo"
}

func (s *Instance) NetworkName() string {
	return util.DockerSanitize(s.Key.Subdomain) + "_net"
}

func (s *Instance) HasPorts() bool {
	return s.HttpPort != 0 && s.LongpollingPort != 0
}

// Validate checks user supplied fields. References to other objects
// are checked by the orchestrator against the store.
func (s *Instance) Validate() error {
	if err := s.Key.Validate(); err != nil {
		return err
	}
	if s.BaseDomain != "" && !util.ValidDomain(s.BaseDomain) {
		return NewValidationError("invalid base domain %q", s.BaseDomain)
	}
	for ii := range s.Lines {
		if err := s.Lines[ii].Validate(); err != nil {
			return err
		}
	}
	for k := range s.ExtraConfig {
		if k == "" || strings.ContainsAny(k, "=\n[]") {
			return NewValidationError("invalid extra config key %q", k)
		}
	}
	for k, v := range s.ExtraConfig {
		if strings.Contains(v, "\n") {
			return NewValidationError("extra config value for %s cannot contain newlines", k)
		}
	}
	return nil
}

// AppendLog appends a timestamped line to the provisioning log.
func (s *Instance) AppendLog(now time.Time, msg string) {
	s.ProvisioningLog += fmt.Sprintf("[%s] %s\n", now.Format(LogTimeFormat), msg)
}

func (s *Instance) ResetLog() {
	s.ProvisioningLog = ""
}

// AddLine appends a pending line and assigns it the next id.
func (s *Instance) AddLine(line InstallationLine) InstallationLine {
	s.NextLineID++
	line.ID = s.NextLineID
	if line.Sequence == 0 {
		line.Sequence = DefaultLineSequence
	}
	line.State = LinePending
	line.Log = ""
	s.Lines = append(s.Lines, line)
	return line
}

// SortLines orders lines by sequence, then id.
func (s *Instance) SortLines() {
	sort.SliceStable(s.Lines, func(i, j int) bool {
		if s.Lines[i].Sequence != s.Lines[j].Sequence {
			return s.Lines[i].Sequence < s.Lines[j].Sequence
		}
		return s.Lines[i].ID < s.Lines[j].ID
	})
}

// PendingLines returns the indexes of pending lines in install order.
func (s *Instance) PendingLines() []int {
	s.SortLines()
	idx := []int{}
	for ii := range s.Lines {
		if s.Lines[ii].State == LinePending {
			idx = append(idx, ii)
		}
	}
	return idx
}

func (s *Instance) AddInstalled(names ...string) {
	set := make(map[string]struct{})
	for _, n := range s.InstalledModules {
		set[n] = struct{}{}
	}
	for _, n := range names {
		set[n] = struct{}{}
	}
	s.InstalledModules = make([]string, 0, len(set))
	for n := range set {
		s.InstalledModules = append(s.InstalledModules, n)
	}
	sort.Strings(s.InstalledModules)
}

// ServerRefs tracks the ports reserved on one docker server.
type ServerRefs struct {
	Key ServerKey `json:"key"`
	// port -> instance subdomain
	Ports map[int32]string `json:"ports,omitempty"`
}

// UsedPorts returns the ports held by instances other than exclude.
func (s *ServerRefs) UsedPorts(exclude string) map[int32]struct{} {
	used := make(map[int32]struct{})
	for port, owner := range s.Ports {
		if owner == exclude {
			continue
		}
		used[port] = struct{}{}
	}
	return used
}

// Release frees every port held by owner.
func (s *ServerRefs) Release(owner string) {
	for port, o := range s.Ports {
		if o == owner {
			delete(s.Ports, port)
		}
	}
}
