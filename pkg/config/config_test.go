package config

import (
	"os"
	"testing"
)

type testPoolCfg struct {
	Pool struct {
		Generic int            `yaml:"generic" json:"generic"`
		Groups  map[string]int `yaml:"groups" json:"groups"`
	} `yaml:"pool" json:"pool"`
	Server struct {
		MetricsPort int `yaml:"metrics_port" json:"metrics_port"`
	} `yaml:"server" json:"server"`
}

func TestLoadYAML(t *testing.T) {
	yamlContent := `
pool:
  generic: 4
  groups:
    urgent: 2
server:
  metrics_port: 9100
`
	tmpFile := createTempFile(t, "test.yaml", yamlContent)
	defer os.Remove(tmpFile)

	var cfg testPoolCfg
	if err := LoadYAML(tmpFile, &cfg); err != nil {
		t.Fatalf("LoadYAML failed: %v", err)
	}

	if cfg.Pool.Generic != 4 {
		t.Errorf("Pool.Generic = %v, want 4", cfg.Pool.Generic)
	}
	if cfg.Pool.Groups["urgent"] != 2 {
		t.Errorf("Pool.Groups[urgent] = %v, want 2", cfg.Pool.Groups["urgent"])
	}
	if cfg.Server.MetricsPort != 9100 {
		t.Errorf("Server.MetricsPort = %v, want 9100", cfg.Server.MetricsPort)
	}
}

func TestLoadJSON(t *testing.T) {
	jsonContent := `{
  "pool": {
    "generic": 4,
    "groups": {"urgent": 2}
  },
  "server": {
    "metrics_port": 9100
  }
}`
	tmpFile := createTempFile(t, "test.json", jsonContent)
	defer os.Remove(tmpFile)

	var cfg testPoolCfg
	if err := LoadJSON(tmpFile, &cfg); err != nil {
		t.Fatalf("LoadJSON failed: %v", err)
	}

	if cfg.Pool.Generic != 4 {
		t.Errorf("Pool.Generic = %v, want 4", cfg.Pool.Generic)
	}
	if cfg.Pool.Groups["urgent"] != 2 {
		t.Errorf("Pool.Groups[urgent] = %v, want 2", cfg.Pool.Groups["urgent"])
	}
}

func TestRequiredFields(t *testing.T) {
	var cfg testPoolCfg
	cfg.Pool.Generic = 0

	validator := RequiredFields("Pool.Generic")
	if err := validator.Validate(&cfg); err == nil {
		t.Error("RequiredFields should fail for zero-value Generic")
	}

	cfg.Pool.Generic = 4
	if err := validator.Validate(&cfg); err != nil {
		t.Errorf("RequiredFields should pass for non-zero Generic: %v", err)
	}
}

func TestRangeValidator(t *testing.T) {
	var cfg testPoolCfg
	cfg.Pool.Generic = 0

	validator := RangeValidator("Pool.Generic", 1, 64)
	if err := validator.Validate(&cfg); err == nil {
		t.Error("RangeValidator should fail for value below minimum")
	}

	cfg.Pool.Generic = 4
	if err := validator.Validate(&cfg); err != nil {
		t.Errorf("RangeValidator should pass for value in range: %v", err)
	}
}

func createTempFile(t *testing.T, name, content string) string {
	tmpFile := name
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	return tmpFile
}
