package vault

import (
	"fmt"
	"strings"
)

// SSHKeyPathPrefix is where server SSH keys are stored.
var SSHKeyPathPrefix = "secret/data/saas/sshkeys/"

// SSHKey is a private key for logging into servers.
type SSHKey struct {
	Type       string `mapstructure:"type"`
	PrivateKey string `mapstructure:"private_key"`
	PublicKey  string `mapstructure:"public_key"`
}

func SSHKeyPath(name string) string {
	return SSHKeyPathPrefix + name
}

func GetSSHKey(config *Config, name string) (*SSHKey, error) {
	key := &SSHKey{}
	if err := GetData(config, SSHKeyPath(name), 0, key); err != nil {
		return nil, fmt.Errorf("failed to get ssh key %s from vault, %v", name, err)
	}
	if strings.TrimSpace(key.PrivateKey) == "" {
		return nil, fmt.Errorf("ssh key %s in vault has no private key", name)
	}
	return key, nil
}

func PutSSHKey(config *Config, name string, key *SSHKey) error {
	client, err := config.Login()
	if err != nil {
		return err
	}
	return PutKV(client, SSHKeyPath(name), map[string]interface{}{
		"type":        key.Type,
		"private_key": key.PrivateKey,
		"public_key":  key.PublicKey,
	})
}

func DeleteSSHKey(config *Config, name string) error {
	client, err := config.Login()
	if err != nil {
		return err
	}
	return DeleteKV(client, SSHKeyPath(name))
}
