package vault

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/vault/api"
	"github.com/mitchellh/mapstructure"
)

// Paths are for a v2 key value engine, i.e. "secret/data/...".

func GetKV(client *api.Client, path string, version int) (map[string]interface{}, error) {
	var extra map[string][]string
	if version > 0 {
		extra = map[string][]string{
			"version": []string{strconv.Itoa(version)},
		}
	}
	secret, err := client.Logical().ReadWithData(path, extra)
	if err != nil {
		return nil, err
	}
	if secret == nil {
		return nil, fmt.Errorf("no secrets at path %s", path)
	}
	if secret.Data == nil {
		if len(secret.Warnings) > 0 {
			return nil, fmt.Errorf("No data: %s", strings.Join(secret.Warnings, ";"))
		}
		return nil, fmt.Errorf("No data at path %s", path)
	}
	return secret.Data, nil
}

// PutKV writes data as the next version of the secret.
func PutKV(client *api.Client, path string, data map[string]interface{}) error {
	_, err := client.Logical().Write(path, map[string]interface{}{
		"data": data,
	})
	return err
}

func DeleteKV(client *api.Client, path string) error {
	_, err := client.Logical().Delete(path)
	return err
}

// GetData decodes the secret's data section into data.
func GetData(config *Config, path string, version int, data interface{}) error {
	if config == nil {
		return fmt.Errorf("no vault Config specified")
	}
	client, err := config.Login()
	if err != nil {
		return err
	}
	vdat, err := GetKV(client, path, version)
	if err != nil {
		return err
	}
	return mapstructure.WeakDecode(vdat["data"], data)
}
