package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "vault")
	path := writeFile(t, "name: ${SAMPLE_NAME}\n")

	cfg := &sample{Port: 8080}
	if err := Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "vault" {
		t.Errorf("Name = %q, want vault", cfg.Name)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want default 8080", cfg.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "absent.yaml"), &sample{Port: 1})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeFile(t, "port: [1, 2\n")
	err := Load(path, &sample{Port: 1})
	if err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Fatalf("err = %v, want parse error", err)
	}
}

func TestLoad_RunsValidation(t *testing.T) {
	path := writeFile(t, "port: 0\n")
	err := Load(path, &sample{Port: 1})
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestLoadOptional(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	cfg := &sample{Name: "default", Port: 8080}
	if err := LoadOptional(missing, cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Name != "default" {
		t.Errorf("Name = %q, want default", cfg.Name)
	}

	if err := LoadOptional(missing, &sample{}); err == nil {
		t.Error("expected invalid defaults to be rejected")
	}

	path := writeFile(t, "port: 9090\n")
	cfg = &sample{Port: 8080}
	if err := LoadOptional(path, cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
}
