// Package config loads netmodel's settings from a YAML file, NETMODEL_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/atvirokodosprendimai/netmodel/pkg/device"
	"github.com/atvirokodosprendimai/netmodel/pkg/topology"
)

const (
	EnvPrefix  = "NETMODEL"
	ConfigName = "netmodel"

	TransferSSH = "ssh"
	TransferDir = "dir"
)

type GNS3 struct {
	URL           string  `mapstructure:"url" validate:"required,url"`
	TemplateID    string  `mapstructure:"template_id"`
	ProjectName   string  `mapstructure:"project_name"`
	ProjectID     string  `mapstructure:"project_id"`
	RatePerSecond float64 `mapstructure:"rate_per_second" validate:"gte=0"`
}

type Simulator struct {
	FirstAdapter    int    `mapstructure:"first_adapter" validate:"gte=0"`
	Adapters        int    `mapstructure:"adapters" validate:"gte=1"`
	PortsPerAdapter int    `mapstructure:"ports_per_adapter" validate:"gte=1"`
	InterfaceFormat string `mapstructure:"interface_format" validate:"required"`
}

type Topology struct {
	ExcludePrefixLengths []int    `mapstructure:"exclude_prefix_lengths" validate:"dive,gte=0,lte=32"`
	ExcludePatterns      []string `mapstructure:"exclude_patterns"`
}

type SSH struct {
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	AskPassword bool   `mapstructure:"ask_password"`
	Port        int    `mapstructure:"port" validate:"gte=1,lte=65535"`
}

type Transfer struct {
	Mode      string `mapstructure:"mode" validate:"oneof=ssh dir"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port" validate:"gte=1,lte=65535"`
	User      string `mapstructure:"user"`
	Dir       string `mapstructure:"dir" validate:"required_if=Mode dir"`
	ConfigDir string `mapstructure:"config_dir"`
}

type Timeouts struct {
	Device   time.Duration `mapstructure:"device"`
	Node     time.Duration `mapstructure:"node"`
	Link     time.Duration `mapstructure:"link"`
	Transfer time.Duration `mapstructure:"transfer"`
	Ready    time.Duration `mapstructure:"ready"`
}

type Neo4j struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type Config struct {
	GNS3        GNS3            `mapstructure:"gns3"`
	Simulator   Simulator       `mapstructure:"simulator"`
	Topology    Topology        `mapstructure:"topology"`
	SSH         SSH             `mapstructure:"ssh"`
	Transfer    Transfer        `mapstructure:"transfer"`
	Devices     []device.Device `mapstructure:"devices" validate:"dive"`
	SnapshotDir string          `mapstructure:"snapshot_dir"`
	Timeouts    Timeouts        `mapstructure:"timeouts"`
	Retries     uint64          `mapstructure:"retries"`
	Concurrency int             `mapstructure:"concurrency" validate:"gte=0"`
	Neo4j       Neo4j           `mapstructure:"neo4j"`
}

func setDefaults(v *viper.Viper) {
	alloc := topology.DefaultAllocOptions()
	opts := topology.DefaultOptions()

	v.SetDefault("gns3.url", "http://localhost:3080")
	v.SetDefault("gns3.rate_per_second", 10)
	v.SetDefault("simulator.first_adapter", alloc.FirstAdapter)
	v.SetDefault("simulator.adapters", alloc.Adapters)
	v.SetDefault("simulator.ports_per_adapter", alloc.PortsPerAdapter)
	v.SetDefault("simulator.interface_format", alloc.InterfaceFormat)
	v.SetDefault("topology.exclude_prefix_lengths", opts.ExcludePrefixLengths)
	v.SetDefault("topology.exclude_patterns", opts.ExcludePatterns)
	v.SetDefault("ssh.port", device.DefaultSSHPort)
	v.SetDefault("transfer.mode", TransferSSH)
	v.SetDefault("transfer.port", 22)
	v.SetDefault("transfer.config_dir", "configs")
	v.SetDefault("timeouts.device", 30*time.Second)
	v.SetDefault("timeouts.node", 30*time.Second)
	v.SetDefault("timeouts.link", 15*time.Second)
	v.SetDefault("timeouts.transfer", 30*time.Second)
	v.SetDefault("timeouts.ready", time.Minute)
	v.SetDefault("retries", 3)
	v.SetDefault("concurrency", 8)
	v.SetDefault("neo4j.uri", "neo4j://localhost:7687")
	v.SetDefault("neo4j.user", "neo4j")
	v.SetDefault("neo4j.database", "neo4j")
}

// Load reads path, or ./netmodel.yaml when path is empty and such a file
// exists, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// TopologyOptions returns the modeling options the config describes.
func (c *Config) TopologyOptions() topology.Options {
	return topology.Options{
		Alloc: topology.AllocOptions{
			FirstAdapter:    c.Simulator.FirstAdapter,
			Adapters:        c.Simulator.Adapters,
			PortsPerAdapter: c.Simulator.PortsPerAdapter,
			InterfaceFormat: c.Simulator.InterfaceFormat,
		},
		ExcludePrefixLengths: c.Topology.ExcludePrefixLengths,
		ExcludePatterns:      c.Topology.ExcludePatterns,
	}
}
