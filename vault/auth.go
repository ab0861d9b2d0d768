package vault

import (
	"fmt"

	"github.com/hashicorp/vault/api"
)

type Auth interface {
	// Login to vault and set the vault token on the client
	Login(client *api.Client) error
	// Return auth type
	Type() string
}

// BestAuth determines the best auth to use based on the environment.
func BestAuth(ops ...BestOp) (Auth, error) {
	opts := ApplyOps(ops...)

	roleID := opts.getenv("VAULT_ROLE_ID")
	secretID := opts.getenv("VAULT_SECRET_ID")
	if roleID != "" && secretID != "" {
		return NewAppRoleAuth(roleID, secretID), nil
	}
	token := opts.getenv("VAULT_TOKEN")
	if token != "" {
		return NewTokenAuth(token), nil
	}
	return nil, fmt.Errorf("No appropriate Vault auth found, please set VAULT_ROLE_ID and VAULT_SECRET_ID for approle auth, or VAULT_TOKEN for token auth")
}

type AppRoleAuth struct {
	roleID   string
	secretID string
}

func NewAppRoleAuth(roleID, secretID string) *AppRoleAuth {
	return &AppRoleAuth{
		roleID:   roleID,
		secretID: secretID,
	}
}

func (s *AppRoleAuth) Login(client *api.Client) error {
	data := map[string]interface{}{
		"role_id":   s.roleID,
		"secret_id": s.secretID,
	}
	resp, err := client.Logical().Write("auth/approle/login", data)
	if err != nil {
		return err
	}
	if resp == nil {
		return fmt.Errorf("Empty response from Vault for approle login, possible 404 not found")
	}
	if resp.Auth == nil {
		return fmt.Errorf("no auth info returned")
	}
	client.SetToken(resp.Auth.ClientToken)
	return nil
}

func (s *AppRoleAuth) Type() string {
	return "approle"
}

type TokenAuth struct {
	token string
}

func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{token: token}
}

func (s *TokenAuth) Login(client *api.Client) error {
	client.SetToken(s.token)
	return nil
}

func (s *TokenAuth) Type() string {
	return "token"
}

// NoAuth skips any auth. It is used for unit testing against a fake httptest server.
type NoAuth struct{}

func (s *NoAuth) Login(client *api.Client) error {
	return nil
}

func (s *NoAuth) Type() string {
	return "none"
}
