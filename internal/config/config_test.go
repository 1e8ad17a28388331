package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWithNoPathOrOverride(t *testing.T) {
	settings, err := Load("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(settings.Layers) != 1 || settings.Layers[0] != "." {
		t.Errorf("expected default layers [.], got %v", settings.Layers)
	}
	if settings.HTTP.TimeoutSeconds != 30 || settings.HTTP.MaxRetries != 3 {
		t.Errorf("unexpected http defaults: %+v", settings.HTTP)
	}
	if settings.History.DSN != "pardon-history.db" {
		t.Errorf("unexpected history default: %+v", settings.History)
	}
	if settings.Server.Port != ":8080" {
		t.Errorf("unexpected server default: %+v", settings.Server)
	}
}

func TestLoad_MissingPathFallsBackToDefaults(t *testing.T) {
	settings, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	if err != nil {
		t.Fatalf("unexpected error for a missing config file: %v", err)
	}
	if settings.HTTP.MaxRetries != 3 {
		t.Errorf("expected defaults to survive a missing file, got %+v", settings.HTTP)
	}
}

func TestLoad_YAMLFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pardon.yaml")
	body := "layers: [\"./layer-a\", \"./layer-b\"]\nhttp:\n  timeoutSeconds: 5\n  debug: true\nhistory:\n  dsn: /tmp/custom.db\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	settings, err := Load(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(settings.Layers) != 2 || settings.Layers[0] != "./layer-a" {
		t.Errorf("expected layers from file, got %v", settings.Layers)
	}
	if settings.HTTP.TimeoutSeconds != 5 || !settings.HTTP.Debug {
		t.Errorf("expected http settings from file, got %+v", settings.HTTP)
	}
	if settings.HTTP.MaxRetries != 3 {
		t.Errorf("expected untouched http field to keep its default, got %d", settings.HTTP.MaxRetries)
	}
	if settings.History.DSN != "/tmp/custom.db" {
		t.Errorf("expected history dsn from file, got %q", settings.History.DSN)
	}
}

func TestLoad_OverrideWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pardon.yaml")
	if err := os.WriteFile(path, []byte("history:\n  dsn: /tmp/from-file.db\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	settings, err := Load(path, map[string]any{"history": map[string]any{"dsn": "/tmp/from-flag.db"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.History.DSN != "/tmp/from-flag.db" {
		t.Errorf("expected override to win, got %q", settings.History.DSN)
	}
}

func TestLoad_ValidationRejectsEmptyLayers(t *testing.T) {
	_, err := Load("", map[string]any{"layers": []string{}})
	if err == nil {
		t.Fatal("expected a validation error for an empty layer list")
	}
}
