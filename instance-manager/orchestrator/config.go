package orchestrator

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/saascore/saas-cloud/instance-manager/dockermgmt"
	"github.com/saascore/saas-cloud/instance-manager/pgmgmt"
	"github.com/saascore/saas-cloud/instance-manager/portalloc"
)

// Config tunes the orchestrator. Durations are given in seconds so
// the same struct decodes from yaml files and environment variables.
type Config struct {
	StartingPort      int32  `mapstructure:"starting_port"`
	PollIntervalSec   int    `mapstructure:"poll_interval_sec"`
	PollAttempts      int    `mapstructure:"poll_attempts"`
	CommandTimeoutSec int    `mapstructure:"command_timeout_sec"`
	LongTimeoutSec    int    `mapstructure:"long_timeout_sec"`
	ConnectTimeoutSec int    `mapstructure:"connect_timeout_sec"`
	LogTail           int    `mapstructure:"log_tail"`
	ContainerUID      int    `mapstructure:"container_uid"`
	ComposeCommand    string `mapstructure:"compose_command"`
	PsqlCommand       string `mapstructure:"psql_command"`
	PasswordLength    int    `mapstructure:"password_length"`
	DNSTTL            int    `mapstructure:"dns_ttl"`
}

func DefaultConfig() *Config {
	return &Config{
		StartingPort:      portalloc.DefaultStartingPort,
		PollIntervalSec:   2,
		PollAttempts:      30,
		CommandTimeoutSec: 120,
		LongTimeoutSec:    1800,
		ConnectTimeoutSec: 30,
		LogTail:           1000,
		ContainerUID:      101,
		ComposeCommand:    dockermgmt.DefaultComposeCommand,
		PsqlCommand:       pgmgmt.DefaultPsqlCommand,
		PasswordLength:    24,
	}
}

// DefaultConfigMap returns the defaults keyed like the mapstructure
// tags, for seeding a config loader.
func DefaultConfigMap() map[string]interface{} {
	cfg := DefaultConfig()
	return map[string]interface{}{
		"starting_port":       cfg.StartingPort,
		"poll_interval_sec":   cfg.PollIntervalSec,
		"poll_attempts":       cfg.PollAttempts,
		"command_timeout_sec": cfg.CommandTimeoutSec,
		"long_timeout_sec":    cfg.LongTimeoutSec,
		"connect_timeout_sec": cfg.ConnectTimeoutSec,
		"log_tail":            cfg.LogTail,
		"container_uid":       cfg.ContainerUID,
		"compose_command":     cfg.ComposeCommand,
		"psql_command":        cfg.PsqlCommand,
		"password_length":     cfg.PasswordLength,
		"dns_ttl":             cfg.DNSTTL,
	}
}

// DecodeConfig builds a Config from generic settings, starting from
// the defaults. Unknown keys are an error.
func DecodeConfig(settings map[string]interface{}) (*Config, error) {
	cfg := DefaultConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("invalid orchestrator config, %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *Config) Validate() error {
	if s.StartingPort <= 0 || s.StartingPort >= portalloc.MaxPort {
		return fmt.Errorf("invalid starting port %d", s.StartingPort)
	}
	if s.PollAttempts <= 0 {
		return fmt.Errorf("poll attempts must be positive")
	}
	if s.PollIntervalSec < 0 {
		return fmt.Errorf("poll interval cannot be negative")
	}
	if s.CommandTimeoutSec <= 0 || s.LongTimeoutSec <= 0 || s.ConnectTimeoutSec <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if s.PasswordLength < 8 {
		return fmt.Errorf("password length %d too short", s.PasswordLength)
	}
	if s.LogTail <= 0 {
		return fmt.Errorf("log tail must be positive")
	}
	return nil
}

func (s *Config) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSec) * time.Second
}

func (s *Config) CommandTimeout() time.Duration {
	return time.Duration(s.CommandTimeoutSec) * time.Second
}

func (s *Config) LongTimeout() time.Duration {
	return time.Duration(s.LongTimeoutSec) * time.Second
}

func (s *Config) ConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeoutSec) * time.Second
}
