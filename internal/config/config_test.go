package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewConfigDefaultsWhenMissing(t *testing.T) {
	workDir := t.TempDir()
	c, err := NewConfig(workDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Settings.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Settings.Version)
	}
	if c.BaseURL() != "http://localhost:8080" {
		t.Fatalf("wrong default base url: %s", c.BaseURL())
	}
	if c.DebounceWindow() != 300*time.Millisecond {
		t.Fatalf("wrong default debounce: %v", c.DebounceWindow())
	}
	if c.MaxSearchResults() != 5 {
		t.Fatalf("wrong default max results: %d", c.MaxSearchResults())
	}
	if c.PageSize() != 25 {
		t.Fatalf("wrong default page size: %d", c.PageSize())
	}
}

func TestNewConfigParsesYaml(t *testing.T) {
	workDir := t.TempDir()
	crewdeckDir := filepath.Join(workDir, CrewdeckDir)
	if err := os.MkdirAll(crewdeckDir, 0755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
api:
  base_url: https://staffing.example.com/
  key: dev-token
  timeout_ms: 5000
search:
  debounce_ms: 150
  max_results: 8
  large_pool_threshold: 20
list:
  page_size: 10
department: structures
`)
	if err := os.WriteFile(filepath.Join(crewdeckDir, "config.yaml"), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := NewConfig(workDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.BaseURL() != "https://staffing.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %s", c.BaseURL())
	}
	if c.APIKey() != "dev-token" {
		t.Fatalf("wrong api key: %s", c.APIKey())
	}
	if c.APITimeout() != 5*time.Second {
		t.Fatalf("wrong timeout: %v", c.APITimeout())
	}
	if c.DebounceWindow() != 150*time.Millisecond {
		t.Fatalf("wrong debounce: %v", c.DebounceWindow())
	}
	if c.MaxSearchResults() != 8 {
		t.Fatalf("wrong max results: %d", c.MaxSearchResults())
	}
	if c.LargePoolThreshold() != 20 {
		t.Fatalf("wrong pool threshold: %d", c.LargePoolThreshold())
	}
	if c.PageSize() != 10 {
		t.Fatalf("wrong page size: %d", c.PageSize())
	}
	if c.Department() != "structures" {
		t.Fatalf("wrong department: %s", c.Department())
	}
}

func TestNewConfigValidation(t *testing.T) {
	workDir := t.TempDir()
	crewdeckDir := filepath.Join(workDir, CrewdeckDir)
	if err := os.MkdirAll(crewdeckDir, 0755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
api:
  base_url: ftp://not-a-backend
`)
	if err := os.WriteFile(filepath.Join(crewdeckDir, "config.yaml"), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewConfig(workDir); err == nil {
		t.Fatalf("expected validation error but got none")
	}
}

func TestInitCrewdeckDirWritesDefaultConfig(t *testing.T) {
	workDir := t.TempDir()
	if err := InitCrewdeckDir(workDir); err != nil {
		t.Fatalf("InitCrewdeckDir returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(workDir, CrewdeckDir, "logs")); err != nil {
		t.Fatalf("logs dir missing: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(workDir, CrewdeckDir, "config.yaml"))
	if err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	if !strings.Contains(string(data), "debounce_ms: 300") {
		t.Fatalf("default config missing search settings:\n%s", data)
	}

	// A second init must not clobber an edited config.
	edited := strings.Replace(string(data), "page_size: 25", "page_size: 10", 1)
	if err := os.WriteFile(filepath.Join(workDir, CrewdeckDir, "config.yaml"), []byte(edited), 0644); err != nil {
		t.Fatal(err)
	}
	if err := InitCrewdeckDir(workDir); err != nil {
		t.Fatalf("second InitCrewdeckDir returned error: %v", err)
	}
	after, err := os.ReadFile(filepath.Join(workDir, CrewdeckDir, "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(after), "page_size: 10") {
		t.Fatalf("init overwrote existing config")
	}
}
