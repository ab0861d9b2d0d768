package vault

import (
	"fmt"
	"os"

	"github.com/hashicorp/vault/api"
)

type Config struct {
	Addr string
	Auth Auth
}

// BestConfig picks the auth method from the environment. An empty
// address means no vault.
func BestConfig(addr string, ops ...BestOp) (*Config, error) {
	cfg := &Config{
		Addr: addr,
		Auth: &NoAuth{},
	}
	if addr == "" {
		return cfg, nil
	}
	auth, err := BestAuth(ops...)
	if err != nil {
		return cfg, err
	}
	cfg.Auth = auth
	return cfg, nil
}

func NewConfig(addr string, auth Auth) *Config {
	return &Config{
		Addr: addr,
		Auth: auth,
	}
}

func (s *Config) Login() (*api.Client, error) {
	if s.Auth == nil {
		return nil, fmt.Errorf("No vault Auth specified")
	}
	client, err := NewClient(s.Addr)
	if err != nil {
		return nil, err
	}
	err = s.Auth.Login(client)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func NewClient(addr string) (*api.Client, error) {
	client, err := api.NewClient(nil)
	if err != nil {
		return nil, err
	}
	err = client.SetAddress(addr)
	if err != nil {
		return nil, err
	}
	return client, nil
}

type BestOptions struct {
	getenv func(string) string
}

type BestOp func(opts *BestOptions)

func WithEnvMap(vars map[string]string) BestOp {
	return func(opts *BestOptions) {
		opts.getenv = func(key string) string { return vars[key] }
	}
}

func ApplyOps(ops ...BestOp) *BestOptions {
	opts := BestOptions{}
	for _, op := range ops {
		op(&opts)
	}
	if opts.getenv == nil {
		opts.getenv = os.Getenv
	}
	return &opts
}
