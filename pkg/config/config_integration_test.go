package config_test

import (
	"os"
	"testing"

	"github.com/tagpool/tagpool/pkg/config"
)

func TestConfigWithEnvOverrides(t *testing.T) {
	// Create temporary YAML file
	yamlContent := `
pool:
  generic: 4
  groups:
    ingest: 2
    reports: 1
server:
  metrics_port: 9100
`
	tmpFile := "test_config.yaml"
	if err := os.WriteFile(tmpFile, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile)

	// Set environment variables
	os.Setenv("APP_POOL_GENERIC", "8")
	os.Setenv("APP_SERVER_METRICSPORT", "9999")
	defer os.Unsetenv("APP_POOL_GENERIC")
	defer os.Unsetenv("APP_SERVER_METRICSPORT")

	type TestConfig struct {
		Pool struct {
			Generic int            `yaml:"generic" json:"generic"`
			Groups  map[string]int `yaml:"groups" json:"groups"`
		} `yaml:"pool" json:"pool"`
		Server struct {
			MetricsPort int `yaml:"metrics_port" json:"metricsPort"`
		} `yaml:"server" json:"server"`
	}

	var cfg TestConfig
	if err := config.LoadWithEnv(tmpFile, "APP", &cfg); err != nil {
		t.Fatalf("LoadWithEnv failed: %v", err)
	}

	// Environment variables should override file values
	if cfg.Pool.Generic != 8 {
		t.Errorf("Pool.Generic = %v, want 8", cfg.Pool.Generic)
	}
	if cfg.Server.MetricsPort != 9999 {
		t.Errorf("Server.MetricsPort = %v, want 9999", cfg.Server.MetricsPort)
	}
	// Groups should remain from file (no env override for maps)
	if cfg.Pool.Groups["ingest"] != 2 {
		t.Errorf("Pool.Groups[ingest] = %v, want 2", cfg.Pool.Groups["ingest"])
	}
}
