// Package render produces the docker compose manifest and odoo.conf
// written for each instance.
package render

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/mitchellh/mapstructure"
	yaml "gopkg.in/yaml.v2"
)

const (
	TemplateCompose  = "docker-compose"
	TemplateOdooConf = "odoo-conf"
)

// Paths and ports inside the odoo container.
const (
	ContainerAddonsPath = "/mnt/extra-addons"
	ContainerConfDir    = "/etc/odoo"
	ContainerConfPath   = "/etc/odoo/odoo.conf"
	ContainerDataPath   = "/var/lib/odoo"
	ContainerHttpPort   = 8069
	ContainerLPPort     = 8072
	ServiceName         = "odoo"
)

// Renderer turns a template id and context into file contents. It
// must have no side effects.
type Renderer interface {
	Render(templateID string, ctx map[string]interface{}) (string, error)
}

type ComposeArgs struct {
	Image           string   `mapstructure:"image"`
	ContainerName   string   `mapstructure:"container_name"`
	NetworkName     string   `mapstructure:"network_name"`
	HttpPort        int32    `mapstructure:"http_port"`
	LongpollingPort int32    `mapstructure:"longpolling_port"`
	InstanceDir     string   `mapstructure:"instance_dir"`
	ExtraHosts      []string `mapstructure:"extra_hosts"`
}

func (s *ComposeArgs) Context() map[string]interface{} {
	return map[string]interface{}{
		"image":            s.Image,
		"container_name":   s.ContainerName,
		"network_name":     s.NetworkName,
		"http_port":        s.HttpPort,
		"longpolling_port": s.LongpollingPort,
		"instance_dir":     s.InstanceDir,
		"extra_hosts":      s.ExtraHosts,
	}
}

type OdooConfArgs struct {
	AdminPassword string            `mapstructure:"admin_passwd"`
	DBHost        string            `mapstructure:"db_host"`
	DBPort        int               `mapstructure:"db_port"`
	DBUser        string            `mapstructure:"db_user"`
	DBPassword    string            `mapstructure:"db_password"`
	DBName        string            `mapstructure:"db_name"`
	ExtraConfig   map[string]string `mapstructure:"extra_config"`
}

func (s *OdooConfArgs) Context() map[string]interface{} {
	return map[string]interface{}{
		"admin_passwd": s.AdminPassword,
		"db_host":      s.DBHost,
		"db_port":      s.DBPort,
		"db_user":      s.DBUser,
		"db_password":  s.DBPassword,
		"db_name":      s.DBName,
		"extra_config": s.ExtraConfig,
	}
}

// TemplateRenderer is the built-in Renderer.
type TemplateRenderer struct{}

func NewRenderer() *TemplateRenderer {
	return &TemplateRenderer{}
}

func (s *TemplateRenderer) Render(templateID string, ctx map[string]interface{}) (string, error) {
	switch templateID {
	case TemplateCompose:
		args := ComposeArgs{}
		if err := decode(ctx, &args); err != nil {
			return "", err
		}
		return Compose(&args)
	case TemplateOdooConf:
		args := OdooConfArgs{}
		if err := decode(ctx, &args); err != nil {
			return "", err
		}
		return OdooConf(&args)
	}
	return "", fmt.Errorf("unknown template %q", templateID)
}

func decode(ctx map[string]interface{}, result interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           result,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(ctx); err != nil {
		return fmt.Errorf("invalid template context, %v", err)
	}
	return nil
}

type composeFile struct {
	Version  string                    `yaml:"version"`
	Services map[string]composeService `yaml:"services"`
	Networks map[string]composeNetwork `yaml:"networks"`
}

type composeService struct {
	Image         string   `yaml:"image"`
	ContainerName string   `yaml:"container_name"`
	Restart       string   `yaml:"restart"`
	Ports         []string `yaml:"ports"`
	Volumes       []string `yaml:"volumes"`
	Networks      []string `yaml:"networks"`
	ExtraHosts    []string `yaml:"extra_hosts,omitempty"`
}

type composeNetwork struct {
	Name string `yaml:"name"`
}

// Compose renders the docker compose manifest for one instance.
func Compose(args *ComposeArgs) (string, error) {
	if args.Image == "" || args.ContainerName == "" || args.NetworkName == "" || args.InstanceDir == "" {
		return "", fmt.Errorf("image, container name, network and instance dir are required")
	}
	if args.HttpPort == 0 || args.LongpollingPort == 0 {
		return "", fmt.Errorf("ports not allocated")
	}
	dir := strings.TrimSuffix(args.InstanceDir, "/")
	cf := composeFile{
		Version: "3.5",
		Services: map[string]composeService{
			ServiceName: composeService{
				Image:         args.Image,
				ContainerName: args.ContainerName,
				Restart:       "unless-stopped",
				Ports: []string{
					fmt.Sprintf("%d:%d", args.HttpPort, ContainerHttpPort),
					fmt.Sprintf("%d:%d", args.LongpollingPort, ContainerLPPort),
				},
				Volumes: []string{
					dir + "/addons:" + ContainerAddonsPath,
					dir + "/etc:" + ContainerConfDir,
					dir + "/data:" + ContainerDataPath,
				},
				Networks:   []string{args.NetworkName},
				ExtraHosts: args.ExtraHosts,
			},
		},
		Networks: map[string]composeNetwork{
			args.NetworkName: composeNetwork{Name: args.NetworkName},
		},
	}
	out, err := yaml.Marshal(&cf)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

type confOption struct {
	Key   string
	Value string
}

var odooConfTemplate = template.Must(template.New("odooconf").Parse(`[options]
{{- range .}}
{{.Key}} = {{.Value}}
{{- end}}
`))

// OdooConf renders odoo.conf. Extra config entries override the
// generated options of the same name; others are appended sorted.
func OdooConf(args *OdooConfArgs) (string, error) {
	options := []confOption{
		{"admin_passwd", args.AdminPassword},
		{"db_host", args.DBHost},
		{"db_port", fmt.Sprintf("%d", args.DBPort)},
		{"db_user", args.DBUser},
		{"db_password", args.DBPassword},
		{"db_name", args.DBName},
		{"dbfilter", "^" + args.DBName + "$"},
		{"list_db", "False"},
		{"addons_path", ContainerAddonsPath},
		{"data_dir", ContainerDataPath},
		{"proxy_mode", "True"},
	}
	extraKeys := []string{}
	for k := range args.ExtraConfig {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		v := args.ExtraConfig[k]
		if strings.ContainsAny(k, "\n=[]") || strings.Contains(v, "\n") {
			return "", fmt.Errorf("invalid extra config %q", k)
		}
		replaced := false
		for ii := range options {
			if options[ii].Key == k {
				options[ii].Value = v
				replaced = true
			}
		}
		if !replaced {
			options = append(options, confOption{k, v})
		}
	}
	for _, opt := range options {
		if strings.Contains(opt.Value, "\n") {
			return "", fmt.Errorf("invalid value for %s", opt.Key)
		}
	}
	buf := bytes.Buffer{}
	if err := odooConfTemplate.Execute(&buf, options); err != nil {
		return "", err
	}
	return buf.String(), nil
}
