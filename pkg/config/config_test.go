package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "topology.kubernetes.io/zone", cfg.Kubernetes.ZoneLabel)
	assert.Equal(t, "rrs-mon-static", cfg.Registry.StaticName)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rackmon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9000"
  read_timeout: 5s
ceph:
  host: ncn-m002
registry:
  backend: bolt
  data_dir: /tmp/rackmon
logging:
  level: debug
  json: true
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "ncn-m002", cfg.Ceph.Host)
	assert.Equal(t, "ncn-s", cfg.Ceph.StoragePrefix)
	assert.Equal(t, BackendBolt, cfg.Registry.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.JSON)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rackmon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ceph:\n  host: ncn-m002\n"), 0600))
	t.Setenv("RACKMON_CEPH_HOST", "ncn-m003")
	t.Setenv("RACKMON_KUBERNETES_ZONE_LABEL", "rack")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ncn-m003", cfg.Ceph.Host)
	assert.Equal(t, "rack", cfg.Kubernetes.ZoneLabel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "no address", mutate: func(c *Config) { c.Server.Address = "" }, wantErr: "server.address"},
		{name: "negative rate", mutate: func(c *Config) { c.Server.UpdateRate = -1 }, wantErr: "update_rate"},
		{name: "rate without burst", mutate: func(c *Config) { c.Server.UpdateBurst = 0 }, wantErr: "update_burst"},
		{name: "unlimited without burst", mutate: func(c *Config) { c.Server.UpdateRate = 0; c.Server.UpdateBurst = 0 }},
		{name: "no zone label", mutate: func(c *Config) { c.Kubernetes.ZoneLabel = "" }, wantErr: "zone_label"},
		{name: "no ceph host", mutate: func(c *Config) { c.Ceph.Host = "" }, wantErr: "ceph.host"},
		{name: "unknown backend", mutate: func(c *Config) { c.Registry.Backend = "etcd" }, wantErr: "registry.backend"},
		{name: "bolt without dir", mutate: func(c *Config) { c.Registry.Backend = BackendBolt; c.Registry.DataDir = "" }, wantErr: "data_dir"},
		{name: "no key", mutate: func(c *Config) { c.Registry.Key = "" }, wantErr: "registry.namespace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()

	c := cfg.Kubernetes.Classifier()
	assert.Equal(t, "ncn-m", c.MasterPrefix)

	r := cfg.Registry.Records()
	assert.Equal(t, "rack-resiliency/rrs-mon-dynamic/critical-service-config.json", r.Dynamic().String())
}
