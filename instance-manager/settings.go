package main

import (
	"fmt"
	"strings"

	"github.com/saascore/saas-cloud/instance-manager/orchestrator"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SAAS"

// Settings for the manager process itself. Orchestrator tuning lives
// under the "orchestrator" section of the config file.
type Settings struct {
	ApiAddr          string
	Region           uint32
	EtcdUrls         string
	RedisAddr        string
	VaultAddr        string
	CloudflareUser   string
	CloudflareApiKey string
	DebugLevels      string
	Orchestrator     *orchestrator.Config
}

func addFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "yaml config file")
	flags.String("apiAddr", "127.0.0.1:8080", "API listener address")
	flags.Uint32("region", 1, "region number for the object store")
	flags.String("etcdUrls", "", "etcd client listener URLs, in-memory store if empty")
	flags.String("redisAddr", "", "redis address for cross-process locks and instance events")
	flags.String("vaultAddr", "", "vault address for ssh keys")
	flags.String("cloudflareUser", "", "cloudflare account email for DNS updates")
	flags.String("cloudflareApiKey", "", "cloudflare API key for DNS updates")
	flags.StringP("debug", "d", "", "comma separated list of debug levels")
}

// newViper binds flags and SAAS_ prefixed environment variables, so
// e.g. SAAS_ORCHESTRATOR_STARTING_PORT overrides orchestrator.starting_port.
func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}
	for key, val := range orchestrator.DefaultConfigMap() {
		v.SetDefault("orchestrator."+key, val)
	}
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s, %v", file, err)
		}
	}
	return v, nil
}

func loadSettings(v *viper.Viper) (*Settings, error) {
	// file keys plus every default, so env overrides are seen
	orchSettings := map[string]interface{}{}
	for key := range v.GetStringMap("orchestrator") {
		orchSettings[key] = v.Get("orchestrator." + key)
	}
	for key := range orchestrator.DefaultConfigMap() {
		orchSettings[key] = v.Get("orchestrator." + key)
	}
	cfg, err := orchestrator.DecodeConfig(orchSettings)
	if err != nil {
		return nil, err
	}
	settings := &Settings{
		ApiAddr:          v.GetString("apiAddr"),
		Region:           uint32(v.GetInt("region")),
		EtcdUrls:         v.GetString("etcdUrls"),
		RedisAddr:        v.GetString("redisAddr"),
		VaultAddr:        v.GetString("vaultAddr"),
		CloudflareUser:   v.GetString("cloudflareUser"),
		CloudflareApiKey: v.GetString("cloudflareApiKey"),
		DebugLevels:      v.GetString("debug"),
		Orchestrator:     cfg,
	}
	if settings.Region == 0 {
		return nil, fmt.Errorf("region must be non-zero")
	}
	if (settings.CloudflareUser == "") != (settings.CloudflareApiKey == "") {
		return nil, fmt.Errorf("cloudflareUser and cloudflareApiKey must be set together")
	}
	return settings, nil
}
