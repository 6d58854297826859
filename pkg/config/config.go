package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/rackmon/pkg/ceph"
	"github.com/cuemby/rackmon/pkg/kube"
	"github.com/cuemby/rackmon/pkg/registry"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RACKMON_SERVER_ADDRESS
const EnvPrefix = "RACKMON"

// Registry backends
const (
	BackendConfigMap = "configmap"
	BackendBolt      = "bolt"
)

// Config is the rackmon service configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Kubernetes KubernetesConfig `mapstructure:"kubernetes"`
	Ceph       CephConfig       `mapstructure:"ceph"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig configures the HTTP and gRPC listeners
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	GRPCAddress     string        `mapstructure:"grpc_address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// UpdateRate limits PATCH requests per second; 0 disables the limit
	UpdateRate  float64 `mapstructure:"update_rate"`
	UpdateBurst int     `mapstructure:"update_burst"`
}

// KubernetesConfig configures node discovery
type KubernetesConfig struct {
	Kubeconfig   string `mapstructure:"kubeconfig"`
	ZoneLabel    string `mapstructure:"zone_label"`
	MasterPrefix string `mapstructure:"master_prefix"`
	WorkerPrefix string `mapstructure:"worker_prefix"`
}

// CephConfig configures the storage cluster queries
type CephConfig struct {
	Host          string        `mapstructure:"host"`
	StoragePrefix string        `mapstructure:"storage_prefix"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// RegistryConfig locates the critical service records
type RegistryConfig struct {
	Backend     string `mapstructure:"backend"`
	Namespace   string `mapstructure:"namespace"`
	StaticName  string `mapstructure:"static_name"`
	DynamicName string `mapstructure:"dynamic_name"`
	Key         string `mapstructure:"key"`
	DataDir     string `mapstructure:"data_dir"`
}

// LoggingConfig configures the global logger
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			UpdateRate:      1,
			UpdateBurst:     5,
		},
		Kubernetes: KubernetesConfig{
			ZoneLabel:    kube.DefaultZoneLabel,
			MasterPrefix: kube.DefaultMasterPrefix,
			WorkerPrefix: kube.DefaultWorkerPrefix,
		},
		Ceph: CephConfig{
			Host:          "ncn-m001",
			StoragePrefix: ceph.DefaultStoragePrefix,
			Timeout:       30 * time.Second,
		},
		Registry: RegistryConfig{
			Backend:     BackendConfigMap,
			Namespace:   registry.DefaultNamespace,
			StaticName:  registry.DefaultStaticName,
			DynamicName: registry.DefaultDynamicName,
			Key:         registry.DefaultKey,
			DataDir:     "/var/lib/rackmon",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return errors.New("server.address is required")
	}
	if c.Server.UpdateRate < 0 {
		return errors.New("server.update_rate must not be negative")
	}
	if c.Server.UpdateRate > 0 && c.Server.UpdateBurst <= 0 {
		return errors.New("server.update_burst must be positive when update_rate is set")
	}
	if c.Kubernetes.ZoneLabel == "" {
		return errors.New("kubernetes.zone_label is required")
	}
	if c.Kubernetes.MasterPrefix == "" || c.Kubernetes.WorkerPrefix == "" {
		return errors.New("kubernetes.master_prefix and kubernetes.worker_prefix are required")
	}
	if c.Ceph.Host == "" {
		return errors.New("ceph.host is required")
	}
	switch c.Registry.Backend {
	case BackendConfigMap:
	case BackendBolt:
		if c.Registry.DataDir == "" {
			return errors.New("registry.data_dir is required for the bolt backend")
		}
	default:
		return fmt.Errorf("registry.backend must be one of: %s, %s", BackendConfigMap, BackendBolt)
	}
	if c.Registry.Namespace == "" || c.Registry.StaticName == "" || c.Registry.DynamicName == "" || c.Registry.Key == "" {
		return errors.New("registry.namespace, static_name, dynamic_name and key are required")
	}
	return nil
}

// Classifier returns the node classifier described by the kubernetes section
func (c KubernetesConfig) Classifier() kube.NodeClassifier {
	return kube.NodeClassifier{
		ZoneLabel:    c.ZoneLabel,
		MasterPrefix: c.MasterPrefix,
		WorkerPrefix: c.WorkerPrefix,
	}
}

// Records returns the record locations described by the registry section
func (c RegistryConfig) Records() registry.Config {
	return registry.Config{
		Namespace:   c.Namespace,
		StaticName:  c.StaticName,
		DynamicName: c.DynamicName,
		Key:         c.Key,
	}
}

// Load reads configuration from an optional YAML file and RACKMON_*
// environment variables. Environment variables take precedence over the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so that AutomaticEnv can override it
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("server.grpc_address", d.Server.GRPCAddress)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.update_rate", d.Server.UpdateRate)
	v.SetDefault("server.update_burst", d.Server.UpdateBurst)

	v.SetDefault("kubernetes.kubeconfig", d.Kubernetes.Kubeconfig)
	v.SetDefault("kubernetes.zone_label", d.Kubernetes.ZoneLabel)
	v.SetDefault("kubernetes.master_prefix", d.Kubernetes.MasterPrefix)
	v.SetDefault("kubernetes.worker_prefix", d.Kubernetes.WorkerPrefix)

	v.SetDefault("ceph.host", d.Ceph.Host)
	v.SetDefault("ceph.storage_prefix", d.Ceph.StoragePrefix)
	v.SetDefault("ceph.timeout", d.Ceph.Timeout)

	v.SetDefault("registry.backend", d.Registry.Backend)
	v.SetDefault("registry.namespace", d.Registry.Namespace)
	v.SetDefault("registry.static_name", d.Registry.StaticName)
	v.SetDefault("registry.dynamic_name", d.Registry.DynamicName)
	v.SetDefault("registry.key", d.Registry.Key)
	v.SetDefault("registry.data_dir", d.Registry.DataDir)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.json", d.Logging.JSON)
}
